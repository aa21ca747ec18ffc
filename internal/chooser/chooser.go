// Package chooser is the terminal screen that lists discovered Home Assistant
// instances and lets the user pick one.
package chooser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stacklok/hass-onboard/internal/discovery"
)

var (
	// ErrAborted is returned when the user leaves the screen without choosing
	ErrAborted = errors.New("selection aborted")

	// ErrManualEntry is returned when the user asks to type an address instead
	ErrManualEntry = errors.New("manual address entry requested")
)

const manualEntryLabel = "Enter address manually"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	emptyStyle    = lipgloss.NewStyle().Italic(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Model is the bubbletea model of the chooser screen. The last row is always the
// manual entry option.
type Model struct {
	instances []discovery.Info
	cursor    int
	chosen    int
	done      bool
	aborted   bool
}

// NewModel creates a chooser over instances, which are shown in the given order
func NewModel(instances []discovery.Info) Model {
	return Model{instances: instances, chosen: -1}
}

// Init implements tea.Model
func (Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.instances) {
			m.cursor++
		}
	case "enter":
		m.chosen = m.cursor
		m.done = true
		return m, tea.Quit
	case "m":
		m.chosen = len(m.instances)
		m.done = true
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.aborted = true
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Select your Home Assistant server"))
	b.WriteString("\n")

	if len(m.instances) == 0 {
		b.WriteString(emptyStyle.Render("No servers were found on this network."))
		b.WriteString("\n")
	}
	for i, info := range m.instances {
		b.WriteString(m.row(i, info.LocationName))
		b.WriteString(" ")
		b.WriteString(detailStyle.Render(info.BaseURL))
		b.WriteString("\n")
	}
	b.WriteString(m.row(len(m.instances), manualEntryLabel))
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("up/down: move  enter: select  m: manual  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) row(i int, label string) string {
	if i == m.cursor {
		return cursorStyle.Render("> ") + selectedStyle.Render(label)
	}
	return "  " + label
}

// Result returns the chosen instance, ErrManualEntry, or ErrAborted
func (m Model) Result() (discovery.Info, error) {
	switch {
	case m.aborted || m.chosen < 0:
		return discovery.Info{}, ErrAborted
	case m.chosen >= len(m.instances):
		return discovery.Info{}, ErrManualEntry
	default:
		return m.instances[m.chosen], nil
	}
}

// Choose runs the chooser on in and out until the user picks an instance
func Choose(ctx context.Context, instances []discovery.Info, in io.Reader, out io.Writer) (discovery.Info, error) {
	p := tea.NewProgram(NewModel(instances),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return discovery.Info{}, ctx.Err()
		}
		return discovery.Info{}, fmt.Errorf("chooser failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return discovery.Info{}, fmt.Errorf("unexpected chooser model %T", final)
	}
	return m.Result()
}
