package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
)

// HostChoice is one ~/.ssh/config entry offered by the picker.
type HostChoice struct {
	Alias       string // Host pattern as written in ssh config
	Hostname    string
	User        string
	Description string // user@hostname:port summary
}

// hostItem implements list.Item for the Bubbles list component.
type hostItem struct {
	host HostChoice
}

func (i hostItem) Title() string       { return i.host.Alias }
func (i hostItem) Description() string { return i.host.Description }

func (i hostItem) FilterValue() string {
	values := []string{i.host.Alias}
	if i.host.Hostname != "" {
		values = append(values, i.host.Hostname)
	}
	if i.host.User != "" {
		values = append(values, i.host.User)
	}
	return strings.Join(values, " ")
}

// HostPickerModel is a Bubble Tea model for selecting an SSH host.
type HostPickerModel struct {
	list     list.Model
	selected *HostChoice
	quitting bool
}

type hostPickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var hostPickerKeys = hostPickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "connect"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewHostPickerModel creates the picker over hosts.
func NewHostPickerModel(hosts []HostChoice) HostPickerModel {
	items := make([]list.Item, len(hosts))
	for i, h := range hosts {
		items[i] = hostItem{host: h}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Select an SSH host"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return HostPickerModel{list: l}
}

// Init implements tea.Model.
func (m HostPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Typed letters belong to the filter while it's open.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, hostPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				m.selected = &item.host
			}
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, hostPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m HostPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the selected host, or nil if cancelled.
func (m HostPickerModel) Selected() *HostChoice {
	return m.selected
}

// PickHost shows the picker on the terminal. A nil result means the user
// cancelled.
func PickHost(hosts []HostChoice) (*HostChoice, error) {
	return PickHostWithIO(hosts, os.Stderr, os.Stdin)
}

// PickHostWithIO runs the picker with custom I/O.
func PickHostWithIO(hosts []HostChoice, output io.Writer, input io.Reader) (*HostChoice, error) {
	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No hosts to pick from",
			"Add Host entries to ~/.ssh/config, or set HOST in .env.")
	}
	if len(hosts) == 1 {
		return &hosts[0], nil
	}

	p := tea.NewProgram(
		NewHostPickerModel(hosts),
		tea.WithOutput(output),
		tea.WithInput(input),
	)
	final, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Host picker failed",
			"Pass the host directly: ssh2shell run --host <alias>")
	}
	if m, ok := final.(HostPickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}
