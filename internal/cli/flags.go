package cli

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

// ParseIdleTimeout parses the --idle-timeout flag. Empty means "use config".
func ParseIdleTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			"--idle-timeout must be positive",
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
