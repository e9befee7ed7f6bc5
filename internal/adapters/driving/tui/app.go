package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/memex/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/views/preview"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/views/proposals"
	"github.com/custodia-labs/memex/internal/core/domain"
)

// App is the proposal review application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	listView    *proposals.View
	previewView *preview.View
	statusBar   *status.Bar
	help        help.Model

	// previous is the view to return to when help closes.
	previous    messages.ViewType
	currentView messages.ViewType

	reviewed int
	err      error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new review application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, ErrInvalidPorts
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		listView:    proposals.NewView(s, km, ports.Proposals),
		previewView: preview.NewView(s, km, ports.Archives),
		statusBar:   status.NewBar(s, km),
		help:        help.New(),
		currentView: messages.ViewList,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.statusBar.SetState(status.StateLoading)
	return tea.Batch(
		tea.SetWindowTitle("memex - review proposals"),
		a.listView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ProposalsLoaded:
		a.listView, cmd = a.listView.Update(msg)
		if msg.Err != nil {
			a.setError(msg.Err)
		} else {
			a.statusBar.Clear()
		}
		a.syncPending()
		return a, cmd

	case messages.ProposalSelected:
		a.currentView = messages.ViewPreview
		a.statusBar.Clear()
		a.statusBar.SetState(status.StatePreview)
		return a, a.previewView.SetProposal(msg.Proposal)

	case messages.ArchiveLoaded:
		a.previewView, cmd = a.previewView.Update(msg)
		return a, cmd

	case messages.ResolveRequested:
		return a, a.listView.Resolve(msg.ProposalID, msg.Approve)

	case messages.ProposalResolved:
		a.listView, cmd = a.listView.Update(msg)
		if msg.Err != nil {
			a.setError(msg.Err)
			return a, cmd
		}
		a.reviewed++
		a.statusBar.SetState(status.StateResolved)
		a.statusBar.SetMessage(resolvedMessage(msg.Proposal))
		a.syncPending()
		if a.currentView == messages.ViewPreview {
			a.currentView = messages.ViewList
		}
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		a.statusBar.Clear()
		if msg.View == messages.ViewPreview {
			a.statusBar.SetState(status.StatePreview)
		}
		return a, nil

	case messages.ErrorOccurred:
		a.setError(msg.Err)
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewHelp:
		if key.Matches(msg, a.keymap.Back, a.keymap.Help) {
			a.currentView = a.previous
		} else if key.Matches(msg, a.keymap.Quit) {
			return a, tea.Quit
		}
		return a, nil

	case messages.ViewPreview:
		if key.Matches(msg, a.keymap.Help) {
			a.openHelp()
			return a, nil
		}
		a.previewView, cmd = a.previewView.Update(msg)
		return a, cmd

	case messages.ViewList:
		switch {
		case key.Matches(msg, a.keymap.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keymap.Help):
			a.openHelp()
			return a, nil
		case key.Matches(msg, a.keymap.Reload):
			a.statusBar.SetState(status.StateLoading)
		}
		a.listView, cmd = a.listView.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) openHelp() {
	a.previous = a.currentView
	a.currentView = messages.ViewHelp
}

func (a *App) setError(err error) {
	a.err = err
	a.statusBar.SetState(status.StateError)
	a.statusBar.SetMessage(err.Error())
}

func (a *App) syncPending() {
	a.statusBar.SetPending(len(a.listView.Proposals()))
}

func resolvedMessage(p *domain.Proposal) string {
	if p == nil {
		return "Resolved"
	}
	verb := "Rejected"
	if p.Status == domain.ProposalStatusApproved {
		verb = "Approved"
	}
	return fmt.Sprintf("%s %s", verb, p.ID)
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewPreview:
		body = a.previewView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.listView.View()
	}

	// Pin the status bar to the last line.
	lines := strings.Count(body, "\n") + 1
	padding := a.height - lines - 1
	if padding < 1 {
		padding = 1
	}
	return body + strings.Repeat("\n", padding) + a.statusBar.View()
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Keys"))
	b.WriteString("\n\n")
	b.WriteString(a.help.FullHelpView(a.keymap.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("Approving replaces the archive's searchable chunks. Rejecting leaves the index untouched."))
	return b.String()
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Reviewed returns how many proposals were resolved in this session.
func (a *App) Reviewed() int {
	return a.reviewed
}

// Err returns the last error.
func (a *App) Err() error {
	return a.err
}

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal size on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.statusBar.SetWidth(width)
	a.listView.SetDimensions(width, height)
	a.previewView.SetDimensions(width, height)
}
