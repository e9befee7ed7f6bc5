// Package vecmath provides the similarity arithmetic behind exact
// nearest-neighbour search over stored embeddings.
package vecmath

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b.
// Vectors of different length or zero norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored pairs an identifier with its similarity.
type Scored struct {
	ID    string
	Score float64
}

// TopK collects the k highest scores. Ties keep insertion order.
type TopK struct {
	k     int
	items []Scored
}

// NewTopK creates a collector for the k best items.
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Push offers an item to the collector.
func (t *TopK) Push(id string, score float64) {
	if t.k <= 0 {
		return
	}
	t.items = append(t.items, Scored{ID: id, Score: score})
	// Compact occasionally so memory stays proportional to k.
	if len(t.items) >= 4*t.k+64 {
		t.compact()
	}
}

// Results returns the collected items, best first.
func (t *TopK) Results() []Scored {
	t.compact()
	out := make([]Scored, len(t.items))
	copy(out, t.items)
	return out
}

func (t *TopK) compact() {
	sort.SliceStable(t.items, func(i, j int) bool {
		return t.items[i].Score > t.items[j].Score
	})
	if len(t.items) > t.k {
		t.items = t.items[:t.k]
	}
}
