package ui

import (
	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

// PromptPassword asks for a secret without echoing it.
func PromptPassword(title string) (string, error) {
	var secret string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&secret),
		),
	)
	if err := form.Run(); err != nil {
		return "", promptError(err)
	}
	return secret, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, promptError(err)
	}
	return ok, nil
}

func promptError(err error) error {
	if err == huh.ErrUserAborted {
		return errors.New(errors.ErrConfig, "Cancelled", "")
	}
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Interactive prompt failed",
		"Run from a terminal, or put the value in .env instead.")
}
