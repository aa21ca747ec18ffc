package chooser

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/hass-onboard/internal/discovery"
)

var instances = []discovery.Info{
	{LocationName: "Attic", BaseURL: "http://attic.local:8123"},
	{LocationName: "Garage", BaseURL: "http://garage.local:8123"},
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_Selection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keys    []tea.KeyMsg
		want    string
		wantErr error
	}{
		{name: "first by default", keys: []tea.KeyMsg{keyEnter}, want: "Attic"},
		{name: "move down", keys: []tea.KeyMsg{keyDown, keyEnter}, want: "Garage"},
		{name: "vim keys", keys: []tea.KeyMsg{runeKey('j'), runeKey('j'), runeKey('k'), keyEnter}, want: "Garage"},
		{name: "up clamps at top", keys: []tea.KeyMsg{keyUp, keyUp, keyEnter}, want: "Attic"},
		{name: "manual row", keys: []tea.KeyMsg{keyDown, keyDown, keyDown, keyDown, keyEnter}, wantErr: ErrManualEntry},
		{name: "manual shortcut", keys: []tea.KeyMsg{runeKey('m')}, wantErr: ErrManualEntry},
		{name: "quit", keys: []tea.KeyMsg{runeKey('q')}, wantErr: ErrAborted},
		{name: "escape", keys: []tea.KeyMsg{keyDown, keyEsc}, wantErr: ErrAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, cmd := press(t, NewModel(instances), tt.keys...)
			require.NotNil(t, cmd, "final key should quit")

			info, err := m.Result()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.LocationName)
		})
	}
}

func TestModel_ResultBeforeChoice(t *testing.T) {
	t.Parallel()

	m, cmd := press(t, NewModel(instances), keyDown)
	assert.Nil(t, cmd)

	_, err := m.Result()
	assert.ErrorIs(t, err, ErrAborted)
}

func TestModel_View(t *testing.T) {
	t.Parallel()

	view := NewModel(instances).View()
	assert.Contains(t, view, "Attic")
	assert.Contains(t, view, "http://garage.local:8123")
	assert.Contains(t, view, manualEntryLabel)

	empty := NewModel(nil).View()
	assert.Contains(t, empty, "No servers were found")

	m, _ := press(t, NewModel(instances), keyEnter)
	assert.Empty(t, m.View())
}

func TestModel_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	m := NewModel(instances)
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Nil(t, cmd)
	assert.Equal(t, m, next)
}
