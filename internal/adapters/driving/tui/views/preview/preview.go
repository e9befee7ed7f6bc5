// Package preview renders the chunks a proposal would write, next to the
// archive text they came from.
package preview

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/memex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/memex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

// headerLines is the height of the title block above the viewport.
const headerLines = 4

// View is the proposal preview.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	archives driving.ArchiveService

	proposal *domain.Proposal
	archive  *domain.Archive
	viewport viewport.Model
	width    int
	height   int
	err      error
}

// NewView creates a new preview. archives may be nil.
func NewView(s *styles.Styles, km *keymap.KeyMap, archives driving.ArchiveService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:   s,
		keymap:   km,
		archives: archives,
		viewport: viewport.New(80, 20),
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// SetProposal shows p and loads its target archive.
func (v *View) SetProposal(p *domain.Proposal) tea.Cmd {
	v.proposal = p
	v.archive = nil
	v.err = nil
	v.refresh()
	v.viewport.GotoTop()

	if p == nil || v.archives == nil {
		return nil
	}
	svc := v.archives
	id := p.TargetArchiveID
	return func() tea.Msg {
		a, err := svc.Get(context.Background(), id)
		return messages.ArchiveLoaded{Archive: a, Err: err}
	}
}

// Update handles messages for the preview.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.ArchiveLoaded:
		if msg.Err != nil {
			v.err = msg.Err
		} else if v.proposal != nil && msg.Archive != nil && msg.Archive.ID == v.proposal.TargetArchiveID {
			v.archive = msg.Archive
		}
		v.refresh()
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Back):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewList} }
	case key.Matches(msg, v.keymap.Approve, v.keymap.Reject):
		if v.proposal == nil {
			return v, nil
		}
		id := v.proposal.ID
		approve := key.Matches(msg, v.keymap.Approve)
		return v, func() tea.Msg { return messages.ResolveRequested{ProposalID: id, Approve: approve} }
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// View renders the preview.
func (v *View) View() string {
	if v.proposal == nil {
		return v.styles.Muted.Render("No proposal selected.")
	}

	var b strings.Builder
	p := v.proposal
	b.WriteString(v.styles.Kind(p.Type).Render(string(p.Type)))
	b.WriteString(v.styles.Title.Render(" proposal " + p.ID))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("archive %s  ", p.TargetArchiveID)))
	b.WriteString(v.styles.Status(p.Status).Render(string(p.Status)))
	b.WriteString("\n")
	if p.Reasoning != "" {
		b.WriteString(v.styles.Subtitle.Render(p.Reasoning))
	}
	b.WriteString("\n\n")
	b.WriteString(v.viewport.View())
	return b.String()
}

func (v *View) refresh() {
	v.viewport.SetContent(v.renderBody())
}

func (v *View) renderBody() string {
	if v.proposal == nil {
		return ""
	}

	var b strings.Builder
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Could not load archive: %s", v.err)))
		b.WriteString("\n\n")
	}

	wrap := lipgloss.NewStyle().Width(max(20, v.width-4))

	switch payload := v.proposal.Payload.(type) {
	case domain.SplitPayload:
		v.renderChunks(&b, wrap, payload.Chunks)
	case domain.EnrichPayload:
		v.renderChunks(&b, wrap, payload.Chunks)
	case domain.DedupPayload:
		b.WriteString(v.styles.Normal.Render(fmt.Sprintf(
			"Duplicate of %s (similarity %.2f)", payload.DuplicateOf, payload.Similarity)))
		b.WriteString("\n")
	default:
		b.WriteString(v.styles.Muted.Render("This proposal carries no chunks."))
		b.WriteString("\n")
	}

	if v.archive != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Subtitle.Render("Original text"))
		b.WriteString("\n")
		b.WriteString(wrap.Render(v.archive.FullText))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderChunks(b *strings.Builder, wrap lipgloss.Style, chunks []domain.ProposedChunk) {
	for _, c := range chunks {
		header := fmt.Sprintf("#%d", c.ChunkIndex)
		if len(c.Meta) > 0 {
			header += "  " + formatMeta(c.Meta)
		}
		b.WriteString(v.styles.Subtitle.Render(header))
		if len(c.Fallbacks) > 0 {
			reasons := make([]string, len(c.Fallbacks))
			for i, r := range c.Fallbacks {
				reasons[i] = string(r)
			}
			b.WriteString("  ")
			b.WriteString(v.styles.Fallback.Render("fallback: " + strings.Join(reasons, ", ")))
		}
		b.WriteString("\n")
		b.WriteString(v.styles.Chunk.Render(wrap.Render(c.Content)))
		b.WriteString("\n\n")
	}
}

func formatMeta(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, meta[k])
	}
	return strings.Join(parts, " ")
}

// SetDimensions sets the view dimensions and resizes the viewport.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = max(20, width)
	// One more line is taken by the status bar.
	v.viewport.Height = max(3, height-headerLines-1)
	v.refresh()
}

// Proposal returns the proposal being previewed.
func (v *View) Proposal() *domain.Proposal {
	return v.proposal
}

// Archive returns the loaded target archive, if any.
func (v *View) Archive() *domain.Archive {
	return v.archive
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
