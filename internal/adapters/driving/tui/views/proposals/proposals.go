// Package proposals provides the pending proposal list of the review TUI.
package proposals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/memex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

// DefaultLimit caps how many pending proposals one load fetches.
const DefaultLimit = 200

// View is the pending proposal list.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	proposals driving.ProposalService

	items        []*domain.Proposal
	selected     int
	scrollOffset int
	width        int
	height       int
	loading      bool
	err          error
}

// NewView creates a new proposal list view.
func NewView(s *styles.Styles, km *keymap.KeyMap, proposals driving.ProposalService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		proposals: proposals,
	}
}

// Init loads the pending proposals.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load returns a command that fetches pending proposals.
func (v *View) Load() tea.Cmd {
	v.loading = true
	svc := v.proposals
	return func() tea.Msg {
		if svc == nil {
			return messages.ProposalsLoaded{Err: fmt.Errorf("proposal service not available")}
		}
		items, err := svc.List(context.Background(), domain.ProposalFilter{
			Status: domain.ProposalStatusPending,
			Limit:  DefaultLimit,
		})
		return messages.ProposalsLoaded{Proposals: items, Err: err}
	}
}

// Resolve returns a command that approves or rejects a proposal.
func (v *View) Resolve(id string, approve bool) tea.Cmd {
	svc := v.proposals
	return func() tea.Msg {
		if svc == nil {
			return messages.ProposalResolved{Err: fmt.Errorf("proposal service not available")}
		}
		var (
			p   *domain.Proposal
			err error
		)
		if approve {
			p, err = svc.Approve(context.Background(), id)
		} else {
			p, err = svc.Reject(context.Background(), id)
		}
		return messages.ProposalResolved{Proposal: p, Err: err}
	}
}

// Update handles messages for the list view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ProposalsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.items = msg.Proposals
		v.clampSelection()
		return v, nil

	case messages.ProposalResolved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.remove(msg.Proposal.ID)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case key.Matches(msg, v.keymap.Down):
		if v.selected < len(v.items)-1 {
			v.selected++
			v.adjustScroll()
		}
	case key.Matches(msg, v.keymap.Preview):
		if p := v.Selected(); p != nil {
			return v, func() tea.Msg { return messages.ProposalSelected{Proposal: p} }
		}
	case key.Matches(msg, v.keymap.Approve):
		if p := v.Selected(); p != nil {
			return v, v.Resolve(p.ID, true)
		}
	case key.Matches(msg, v.keymap.Reject):
		if p := v.Selected(); p != nil {
			return v, v.Resolve(p.ID, false)
		}
	case key.Matches(msg, v.keymap.Reload):
		return v, v.Load()
	}
	return v, nil
}

func (v *View) remove(id string) {
	for i, p := range v.items {
		if p.ID == id {
			v.items = append(v.items[:i], v.items[i+1:]...)
			break
		}
	}
	v.clampSelection()
}

func (v *View) clampSelection() {
	if v.selected >= len(v.items) {
		v.selected = len(v.items) - 1
	}
	if v.selected < 0 {
		v.selected = 0
	}
	v.adjustScroll()
}

// adjustScroll keeps the selected row visible.
func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	// Title, column header, scroll indicator and the status bar.
	available := v.height - 6
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the proposal list.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Pending proposals (%d)", len(v.items))))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("Loading proposals..."))
		return b.String()
	case v.err != nil && len(v.items) == 0:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err)))
		return b.String()
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("Nothing to review. Run 'memex refine' to create proposals."))
		return b.String()
	}

	visible := v.visibleItemCount()
	for i := v.scrollOffset; i < len(v.items) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.renderRow(i, v.items[i]))
		b.WriteString("\n")
	}

	if len(v.items) > visible {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1,
			min(v.scrollOffset+visible, len(v.items)),
			len(v.items))))
	}

	return b.String()
}

func (v *View) renderRow(index int, p *domain.Proposal) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	reasoning := p.Reasoning
	maxLen := v.width - 50
	if maxLen < 10 {
		maxLen = 10
	}
	if len(reasoning) > maxLen {
		reasoning = reasoning[:maxLen-3] + "..."
	}

	line := fmt.Sprintf("%s%-6s %-12s %3d chunks  %s",
		indicator,
		p.Type,
		shortID(p.TargetArchiveID),
		ChunkCount(p.Payload),
		age(p.CreatedAt))

	if index == v.selected {
		return v.styles.Selected.Render(line + "  " + reasoning)
	}
	return v.styles.Normal.Render(line) + "  " + v.styles.Muted.Render(reasoning)
}

// ChunkCount returns how many chunks a payload proposes.
func ChunkCount(p domain.Payload) int {
	switch v := p.(type) {
	case domain.SplitPayload:
		return len(v.Chunks)
	case domain.EnrichPayload:
		return len(v.Chunks)
	default:
		return 0
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func age(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// Proposals returns the proposals currently listed.
func (v *View) Proposals() []*domain.Proposal {
	return v.items
}

// SelectedIndex returns the selected row.
func (v *View) SelectedIndex() int {
	return v.selected
}

// Selected returns the selected proposal, or nil when the list is empty.
func (v *View) Selected() *domain.Proposal {
	if v.selected < len(v.items) {
		return v.items[v.selected]
	}
	return nil
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
