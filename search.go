// ═══════════════════════════════════════════════════════════════════════════════
// TOP-K BACKBONE SCORING (§4.3)
// ═══════════════════════════════════════════════════════════════════════════════
// Given a candidate set and the query terms, this file computes the
// BM25-like backbone score per candidate (term frequency looked up by binary
// search over each term's sorted postings) and keeps the top K in a bounded
// min-heap, split into calculateIDF / calculateBM25Score / RankBM25 —
// with the formula fixed at k1=1.2, b=0.75, IDF=log10(N/df) per
// §4.3 rather than classic-Okapi defaults (see DESIGN.md).
// ═══════════════════════════════════════════════════════════════════════════════

package infidex

import (
	"container/heap"
)

// BackboneMatch is one scored candidate produced by Top-K Backbone Scoring.
type BackboneMatch struct {
	InternalID int
	Score      float64
	// TermIDF carries the per-query-term IDF values used to score this
	// candidate: the IDF of each whole query term, not an average over its
	// n-grams. The Search Pipeline does not read it; CoverageFeatures.TermIDF
	// is computed separately there.
	TermIDF map[string]float64
}

// calculateIDF returns the IDF for term: log10(N/df).
func (idx *Index) calculateIDF(term string) float64 {
	return idx.IDF(term)
}

// calculateBM25Score computes the BM25-like backbone score for one document
// against a set of query terms:
//
//	Σ_term idf(term) × (tf × (k1+1)) / (tf + k1 × (1 − b + b × dl/avgdl))
func (idx *Index) calculateBM25Score(docID int, queryTerms []string, params BM25Parameters) float64 {
	doc := idx.Documents[docID]
	dl := float64(len(tokenize(doc.Text())))
	avgdl := idx.Stats.AvgDocLength
	if avgdl == 0 {
		avgdl = 1
	}

	var score float64
	for _, term := range queryTerms {
		t, ok := idx.TermsByText[term]
		if !ok {
			continue
		}
		tf := termFreqForDoc(t, docID)
		if tf == 0 {
			continue
		}
		idf := idx.calculateIDF(term)
		numerator := float64(tf) * (params.K1 + 1)
		denominator := float64(tf) + params.K1*(1-params.B+params.B*dl/avgdl)
		score += idf * (numerator / denominator)
	}
	return score
}

func termFreqForDoc(t *Term, docID int) int {
	// Postings are sorted ascending by InternalID; binary search.
	lo, hi := 0, len(t.Postings)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Postings[mid].InternalID < docID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(t.Postings) && t.Postings[lo].InternalID == docID {
		return t.Postings[lo].TermFreq
	}
	return 0
}

// RankBM25 scores every candidate document id against queryTerms and keeps
// the top maxResults via a bounded min-heap (pop-on-overflow), per §4.3.
func (idx *Index) RankBM25(candidates []int, queryTerms []string, params BM25Parameters, maxResults int) []BackboneMatch {
	h := &backboneHeap{}
	heap.Init(h)

	termIDF := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		termIDF[term] = idx.calculateIDF(term)
	}

	for _, docID := range candidates {
		score := idx.calculateBM25Score(docID, queryTerms, params)
		match := BackboneMatch{InternalID: docID, Score: score, TermIDF: termIDF}

		if maxResults <= 0 || h.Len() < maxResults {
			heap.Push(h, match)
		} else if h.Len() > 0 && score > (*h)[0].Score {
			heap.Pop(h)
			heap.Push(h, match)
		}
	}

	out := make([]BackboneMatch, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(BackboneMatch)
	}
	return out
}

// backboneHeap is a min-heap of BackboneMatch ordered by ascending Score, so
// the smallest-scoring candidate is evicted first when the heap overflows
// its capacity (§4.3: "a heap of size K ... pop on overflow").
type backboneHeap []BackboneMatch

func (h backboneHeap) Len() int            { return len(h) }
func (h backboneHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h backboneHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *backboneHeap) Push(x interface{}) { *h = append(*h, x.(BackboneMatch)) }
func (h *backboneHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NormalizeBM25 maps a raw BM25 score into [0,1] for use as the Fusion
// Scorer's backbone input (§4.5) as the linear ratio score/maxObserved,
// clamped to [0,1]; a non-positive maxObserved yields 0.
func NormalizeBM25(score, maxObserved float64) float64 {
	if maxObserved <= 0 {
		return 0
	}
	ratio := score / maxObserved
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}
