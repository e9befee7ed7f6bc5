// Package styles holds the palette and lipgloss styles of the review TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// Theme is the review palette. Adaptive colours pick a light or dark
// variant from the terminal background.
type Theme struct {
	Accent   lipgloss.AdaptiveColor
	Chunk    lipgloss.AdaptiveColor
	Text     lipgloss.AdaptiveColor
	Dim      lipgloss.AdaptiveColor
	Bar      lipgloss.AdaptiveColor
	Approved lipgloss.AdaptiveColor
	Pending  lipgloss.AdaptiveColor
	Rejected lipgloss.AdaptiveColor
}

// DefaultTheme returns the palette used when none is given.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:   lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#A78BFA"},
		Chunk:    lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#67E8F9"},
		Text:     lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"},
		Dim:      lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"},
		Bar:      lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#1F2937"},
		Approved: lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#86EFAC"},
		Pending:  lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"},
		Rejected: lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"},
	}
}

// Styles are the rendered styles built from a Theme.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style

	// Chunk draws a left rule beside each proposed chunk.
	Chunk lipgloss.Style

	// Fallback flags a chunk produced by a degraded refinement step.
	Fallback lipgloss.Style

	StatusBar lipgloss.Style
	Help      lipgloss.Style
}

// NewStyles builds styles from theme, or from DefaultTheme when theme is nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme:    theme,
		Title:    fg(theme.Accent).Bold(true),
		Subtitle: fg(theme.Chunk).Bold(true),
		Normal:   fg(theme.Text),
		Muted:    fg(theme.Dim),
		Selected: fg(theme.Bar).Background(theme.Accent).Bold(true),
		Error:    fg(theme.Rejected),
		Success:  fg(theme.Approved),
		Warning:  fg(theme.Pending),
		Chunk: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(theme.Chunk).
			PaddingLeft(1),
		Fallback:  fg(theme.Pending).Italic(true),
		StatusBar: fg(theme.Dim).Background(theme.Bar).Padding(0, 1),
		Help:      fg(theme.Dim),
	}
}

// DefaultStyles returns NewStyles(nil).
func DefaultStyles() *Styles {
	return NewStyles(nil)
}

// Status colours a proposal status: green once approved, red once
// rejected, amber while it waits for review.
func (s *Styles) Status(status domain.ProposalStatus) lipgloss.Style {
	switch status {
	case domain.ProposalStatusApproved:
		return s.Success
	case domain.ProposalStatusRejected:
		return s.Error
	default:
		return s.Warning
	}
}

// Kind styles the proposal type label. Dedup proposals retire nodes, so
// they stand out from the chunk-producing types.
func (s *Styles) Kind(t domain.ProposalType) lipgloss.Style {
	if t == domain.ProposalTypeDedup {
		return s.Warning.Bold(true)
	}
	return s.Subtitle
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
