package infidex

import (
	"container/heap"
	"sort"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SEGMENT CONSOLIDATION & FINAL TOP-K (§4.8)
// ═══════════════════════════════════════════════════════════════════════════════
// Collapses per-segment ScoreEntry results down to one entry per document
// key (keeping the highest-scoring segment) and extracts an exact top-K via
// a size-K min-heap — the same bounded-heap shape as search.go's
// backboneHeap, generalized from "top-K backbone matches" to "top-K final
// ScoreEntry results" (§4.8).
// ═══════════════════════════════════════════════════════════════════════════════

// ScoreArray is an append-only list of ScoreEntry, as named in §4.8.
type ScoreArray []ScoreEntry

// ConsolidateSegments keeps, for each distinct document key, the
// highest-scoring segment's entry (ties broken by tiebreaker, per §4.8).
// It returns the consolidated entries and a sparse best_segments map from
// document key to the surviving segment number, which the pipeline uses
// after the coverage stage to set each result entry's Segment.
func ConsolidateSegments(entries ScoreArray) (ScoreArray, map[int64]int) {
	best := make(map[int64]ScoreEntry, len(entries))
	for _, e := range entries {
		cur, ok := best[e.DocKey]
		if !ok || e.Less(cur) {
			best[e.DocKey] = e
		}
	}
	bestSegments := make(map[int64]int, len(best))
	out := make(ScoreArray, 0, len(best))
	for key, e := range best {
		bestSegments[key] = e.Segment
		out = append(out, e)
	}
	sortScoreEntries(out)
	return out, bestSegments
}

// sortScoreEntries sorts entries into the §8 ranking order: score desc,
// tiebreaker desc, internal order asc.
func sortScoreEntries(entries ScoreArray) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
}

// worseEntry reports whether a ranks below b under the §8 order.
func worseEntry(a, b ScoreEntry) bool { return b.Less(a) }

// scoreHeap is a min-heap (by ranking quality) over ScoreEntry: the worst
// entry sits at the root, so GetTopK can evict it in O(log k) when a better
// candidate arrives.
type scoreHeap ScoreArray

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return worseEntry(h[i], h[j]) }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(ScoreEntry)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// GetTopK returns the exact top-k entries of entries, in §8 ranking order,
// via a size-k min-heap (§4.8).
func GetTopK(entries ScoreArray, k int) ScoreArray {
	if k <= 0 {
		return nil
	}
	h := make(scoreHeap, 0, k)
	heap.Init(&h)
	for _, e := range entries {
		if h.Len() < k {
			heap.Push(&h, e)
		} else if h.Len() > 0 && worseEntry(h[0], e) {
			heap.Pop(&h)
			heap.Push(&h, e)
		}
	}
	out := make(ScoreArray, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(ScoreEntry)
	}
	return out
}

// NewScoreEntry constructs a ScoreEntry with an explicit internal-order
// value, the deterministic final tiebreak clause of §8.
func NewScoreEntry(docKey int64, score uint16, tiebreaker uint8, segment, order int) ScoreEntry {
	return ScoreEntry{DocKey: docKey, Score: score, Tiebreaker: tiebreaker, Segment: segment, internalOrder: order}
}
