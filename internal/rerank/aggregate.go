package rerank

import (
	"container/heap"

	"github.com/dshills/vectorcode/pkg/types"
)

// pathScores maps each distinct path to the scores it collected across query chunks.
// Entries keep the order in which paths were first seen.
type pathScores struct {
	index map[string]int
	list  []*aggregate
}

type aggregate struct {
	path   string
	order  int
	scores []float64
}

func (a *aggregate) mean() float64 {
	var sum float64
	for _, s := range a.scores {
		sum += s
	}
	return sum / float64(len(a.scores))
}

func newPathScores() *pathScores {
	return &pathScores{index: make(map[string]int)}
}

func (p *pathScores) add(path string, score float64) {
	i, ok := p.index[path]
	if !ok {
		i = len(p.list)
		p.index[path] = i
		p.list = append(p.list, &aggregate{path: path, order: i})
	}
	p.list[i].scores = append(p.list[i].scores, score)
}

type scored struct {
	path  string
	order int
	score float64
}

func (p *pathScores) entries() []scored {
	out := make([]scored, len(p.list))
	for i, a := range p.list {
		out[i] = scored{path: a.path, order: a.order, score: a.mean()}
	}
	return out
}

// direction reports whether score a is strictly better than score b
type direction func(a, b float64) bool

func lowerIsBetter(a, b float64) bool  { return a < b }
func higherIsBetter(a, b float64) bool { return a > b }

// before orders two entries: better score first, then first seen
func before(a, b scored, better direction) bool {
	if better(a.score, b.score) {
		return true
	}
	if better(b.score, a.score) {
		return false
	}
	return a.order < b.order
}

// worstFirst is a heap whose root is the weakest of the kept entries
type worstFirst struct {
	items  []scored
	better direction
}

func (h *worstFirst) Len() int           { return len(h.items) }
func (h *worstFirst) Less(i, j int) bool { return before(h.items[j], h.items[i], h.better) }
func (h *worstFirst) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *worstFirst) Push(x any)         { h.items = append(h.items, x.(scored)) }
func (h *worstFirst) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

// selectTop keeps the k best entries using a heap of size k and returns them ranked.
// The full candidate set is never sorted.
func selectTop(entries []scored, k int, better direction) []types.RankedResult {
	if k <= 0 || len(entries) == 0 {
		return nil
	}

	h := &worstFirst{items: make([]scored, 0, min(k, len(entries))), better: better}
	for _, e := range entries {
		if h.Len() < k {
			heap.Push(h, e)
			continue
		}
		if before(e, h.items[0], better) {
			h.items[0] = e
			heap.Fix(h, 0)
		}
	}

	ranked := make([]types.RankedResult, h.Len())
	for i := len(ranked) - 1; i >= 0; i-- {
		e := heap.Pop(h).(scored)
		ranked[i] = types.RankedResult{Path: e.path, Rank: i + 1, Score: e.score}
	}
	return ranked
}
