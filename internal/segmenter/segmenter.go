// Package segmenter provides the deterministic text splitter used as the
// pre-pass and fallback for semantic splitting.
//
// Split is a pure function of its input and configuration. Every window
// carries an overlap prefix copied from the previous window, and the
// remaining spans concatenate back to the input exactly.
package segmenter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize is the default maximum window length in characters.
const DefaultChunkSize = 3000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// separators are tried from coarsest to finest. A piece that still exceeds
// the budget after the last level is an atomic unit and is kept whole.
var separators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", "。", "！", "？"},
	{" ", "\t"},
}

// Window is one bounded span of the input text.
type Window struct {
	// Text is the window content, overlap prefix included.
	Text string

	// Start is the byte offset of Text in the input.
	Start int

	// End is the byte offset just past Text in the input.
	End int

	// Overlap is the byte length of the prefix shared with the previous window.
	Overlap int
}

// Fresh returns the part of the window not shared with its predecessor.
func (w Window) Fresh() string {
	return w.Text[w.Overlap:]
}

// Context returns the prefix shared with the previous window.
func (w Window) Context() string {
	return w.Text[:w.Overlap]
}

// Segmenter splits text into bounded windows.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the maximum window size in characters.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a new segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the configured maximum window size.
func (s *Segmenter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the configured overlap.
func (s *Segmenter) Overlap() int {
	return s.overlap
}

// Split breaks text into windows of at most ChunkSize characters.
// A window is larger only when a single unbreakable unit exceeds the budget.
// Empty text produces no windows.
func (s *Segmenter) Split(text string) []Window {
	if text == "" {
		return nil
	}

	// Fresh spans leave room for the overlap prefix.
	capacity := s.chunkSize - s.overlap
	if capacity < 1 {
		capacity = 1
	}

	units := splitUnits(text, capacity, 0)
	spans := mergeUnits(units, capacity)

	windows := make([]Window, 0, len(spans))
	for i, sp := range spans {
		w := Window{Text: text[sp.start:sp.end], Start: sp.start, End: sp.end}
		if i > 0 {
			prev := spans[i-1]
			freshLen := utf8.RuneCountInString(w.Text)
			budget := s.overlap
			if room := s.chunkSize - freshLen; room < budget {
				budget = room
			}
			if n := overlapStart(text[prev.start:prev.end], budget); n >= 0 {
				w.Start = prev.start + n
				w.Overlap = sp.start - w.Start
				w.Text = text[w.Start:sp.end]
			}
		}
		windows = append(windows, w)
	}
	return windows
}

// Reconstruct concatenates the fresh spans of windows.
// Reconstruct(s.Split(text)) == text for every text.
func Reconstruct(windows []Window) string {
	var b strings.Builder
	for _, w := range windows {
		b.WriteString(w.Fresh())
	}
	return b.String()
}

type span struct {
	start, end int
}

// splitUnits breaks text into pieces no longer than budget runes, cutting
// after separators so that the pieces concatenate back to text.
func splitUnits(text string, budget, level int) []string {
	if utf8.RuneCountInString(text) <= budget || level >= len(separators) {
		return []string{text}
	}
	parts := splitAfter(text, separators[level])
	if len(parts) == 1 {
		return splitUnits(text, budget, level+1)
	}
	units := make([]string, 0, len(parts))
	for _, part := range parts {
		units = append(units, splitUnits(part, budget, level+1)...)
	}
	return units
}

// splitAfter cuts text after every occurrence of any separator.
func splitAfter(text string, seps []string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); {
		matched := 0
		for _, sep := range seps {
			if strings.HasPrefix(text[i:], sep) {
				matched = len(sep)
				break
			}
		}
		if matched > 0 {
			i += matched
			parts = append(parts, text[start:i])
			start = i
			continue
		}
		_, width := utf8.DecodeRuneInString(text[i:])
		i += width
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// mergeUnits packs consecutive units into spans of at most capacity runes.
func mergeUnits(units []string, capacity int) []span {
	var spans []span
	offset, start, length := 0, 0, 0
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if length > 0 && length+n > capacity {
			spans = append(spans, span{start: start, end: offset})
			start, length = offset, 0
		}
		offset += len(u)
		length += n
	}
	if offset > start {
		spans = append(spans, span{start: start, end: offset})
	}
	return spans
}

// overlapStart returns the byte offset in prev where the longest suffix of at
// most budget runes begins, cut at a word boundary. Returns -1 if none fits.
func overlapStart(prev string, budget int) int {
	if budget <= 0 {
		return -1
	}
	runes := 0
	best := -1
	for i := len(prev); i > 0; {
		r, width := utf8.DecodeLastRuneInString(prev[:i])
		i -= width
		runes++
		if runes > budget {
			break
		}
		if i == 0 {
			best = 0
			break
		}
		before, _ := utf8.DecodeLastRuneInString(prev[:i])
		if unicode.IsSpace(before) && !unicode.IsSpace(r) {
			best = i
		}
	}
	return best
}
