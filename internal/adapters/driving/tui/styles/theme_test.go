package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func TestDefaultTheme_HasBothVariants(t *testing.T) {
	theme := DefaultTheme()

	for name, c := range map[string]lipgloss.AdaptiveColor{
		"accent":   theme.Accent,
		"chunk":    theme.Chunk,
		"text":     theme.Text,
		"dim":      theme.Dim,
		"bar":      theme.Bar,
		"approved": theme.Approved,
		"pending":  theme.Pending,
		"rejected": theme.Rejected,
	} {
		assert.NotEmpty(t, c.Light, name)
		assert.NotEmpty(t, c.Dark, name)
	}
}

func TestDefaultTheme_StatusColoursDiffer(t *testing.T) {
	theme := DefaultTheme()

	seen := map[string]bool{}
	for _, c := range []lipgloss.AdaptiveColor{theme.Approved, theme.Pending, theme.Rejected} {
		assert.False(t, seen[c.Dark], c.Dark)
		seen[c.Dark] = true
	}
}

func TestNewStyles(t *testing.T) {
	theme := DefaultTheme()
	assert.Same(t, theme, NewStyles(theme).Theme())

	s := NewStyles(nil)
	require.NotNil(t, s.Theme())
	assert.Equal(t, *DefaultTheme(), *s.Theme())
}

func TestStyles_RenderPlainText(t *testing.T) {
	s := DefaultStyles()

	for _, st := range []lipgloss.Style{s.Title, s.Normal, s.Muted, s.Selected, s.Fallback, s.Help} {
		assert.Contains(t, st.Render("memex"), "memex")
	}
	assert.Contains(t, s.Chunk.Render("chunk"), "chunk")
}

func TestStyles_Status(t *testing.T) {
	s := DefaultStyles()

	assert.Equal(t, s.Success.GetForeground(), s.Status(domain.ProposalStatusApproved).GetForeground())
	assert.Equal(t, s.Error.GetForeground(), s.Status(domain.ProposalStatusRejected).GetForeground())
	assert.Equal(t, s.Warning.GetForeground(), s.Status(domain.ProposalStatusPending).GetForeground())
}

func TestStyles_Kind(t *testing.T) {
	s := DefaultStyles()

	assert.True(t, s.Kind(domain.ProposalTypeDedup).GetBold())
	assert.Equal(t, s.Warning.GetForeground(), s.Kind(domain.ProposalTypeDedup).GetForeground())
	assert.Equal(t, s.Subtitle.GetForeground(), s.Kind(domain.ProposalTypeSplit).GetForeground())
}
