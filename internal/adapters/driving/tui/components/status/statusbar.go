// Package status draws the one-line bar at the foot of the review TUI: the
// queue size or the last outcome on the left, key hints on the right.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/memex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/styles"
)

type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateError    State = "error"
	StateResolved State = "resolved"
	StatePreview  State = "preview"
)

type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	hints  help.Model

	state   State
	message string
	pending int
	width   int
}

func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	hints := help.New()
	hints.ShortSeparator = " | "
	hints.Styles.ShortKey = s.Help
	hints.Styles.ShortDesc = s.Muted
	hints.Styles.ShortSeparator = s.Muted

	return &Bar{styles: s, keymap: km, hints: hints, state: StateReady, width: 80}
}

func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the app drives the bar through its setters.
func (s *Bar) Update(tea.Msg) (*Bar, tea.Cmd) {
	return s, nil
}

func (s *Bar) View() string {
	left := s.summary()
	right := s.hints.ShortHelpView(s.bindings())

	gap := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *Bar) summary() string {
	switch s.state {
	case StateLoading:
		return s.styles.Muted.Render("Loading...")
	case StateError:
		if s.message == "" {
			return s.styles.Error.Render("Error")
		}
		return s.styles.Error.Render("Error: " + s.message)
	case StateResolved:
		return s.styles.Success.Render(s.message)
	}

	switch s.pending {
	case 0:
		return s.styles.Muted.Render("No pending proposals")
	case 1:
		return s.styles.Normal.Render("1 pending proposal")
	default:
		return s.styles.Normal.Render(fmt.Sprintf("%d pending proposals", s.pending))
	}
}

func (s *Bar) bindings() []key.Binding {
	if s.state == StatePreview {
		return s.keymap.PreviewHelp()
	}
	return s.keymap.ShortHelp()
}

func (s *Bar) SetState(state State) { s.state = state }
func (s *Bar) State() State { return s.state }
func (s *Bar) SetMessage(message string) { s.message = message }
func (s *Bar) Message() string { return s.message }

// SetPending sets the queue size shown when nothing else is.
func (s *Bar) SetPending(count int) { s.pending = count }
func (s *Bar) Pending() int { return s.pending }

func (s *Bar) SetWidth(width int) { s.width = width }
func (s *Bar) Width() int { return s.width }

// Clear drops the state and message. The pending count survives.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
}
