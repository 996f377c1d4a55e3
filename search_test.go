package infidex

import (
	"math"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TOP-K BACKBONE SCORING TESTS (§4.3)
// ═══════════════════════════════════════════════════════════════════════════════

func TestCalculateIDF_RarerTermsScoreHigher(t *testing.T) {
	idx := setupTestIndex(t)

	idfCommon := idx.calculateIDF("learning") // 3/5 docs
	idfRare := idx.calculateIDF("pets")        // 1/5 docs

	if !(idfRare > idfCommon) {
		t.Errorf("expected idf(pets)=%f > idf(learning)=%f", idfRare, idfCommon)
	}
}

func TestCalculateIDF_AbsentTerm(t *testing.T) {
	idx := setupTestIndex(t)
	idf := idx.calculateIDF("zzznotindexed")
	if math.IsNaN(idf) || math.IsInf(idf, 0) {
		t.Errorf("IDF for an absent term must be finite, got %f", idf)
	}
}

func TestCalculateBM25Score_HigherTermFrequencyScoresHigher(t *testing.T) {
	idx := setupTestIndex(t)

	// doc 2 (internal id 1) contains "learning" twice; doc 1 (internal id 0)
	// contains it once.
	scoreDoc2 := idx.calculateBM25Score(1, []string{"learning"}, DefaultBM25Parameters())
	scoreDoc1 := idx.calculateBM25Score(0, []string{"learning"}, DefaultBM25Parameters())

	if !(scoreDoc2 > scoreDoc1) {
		t.Errorf("doc with higher term frequency should score higher: doc2=%f doc1=%f", scoreDoc2, scoreDoc1)
	}
}

func TestCalculateBM25Score_AbsentTermContributesZero(t *testing.T) {
	idx := setupTestIndex(t)
	score := idx.calculateBM25Score(0, []string{"nonexistentword"}, DefaultBM25Parameters())
	if score != 0 {
		t.Errorf("expected 0 contribution from an absent term, got %f", score)
	}
}

func TestCalculateBM25Score_DocumentWithoutTerm(t *testing.T) {
	idx := setupTestIndex(t)
	// termFreqForDoc does a binary search over a term's Postings; a document
	// that doesn't contain the term must contribute 0, not panic.
	score := idx.calculateBM25Score(0, []string{"pets"}, DefaultBM25Parameters())
	if score != 0 {
		t.Errorf("doc 0 doesn't contain 'pets', expected score 0, got %f", score)
	}
}

func TestRankBM25_OrdersByDescendingScore(t *testing.T) {
	idx := setupTestIndex(t)
	candidates := []int{0, 1, 2, 3, 4}

	matches := idx.RankBM25(candidates, []string{"machine", "learning"}, DefaultBM25Parameters(), 10)

	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("RankBM25 results not descending: %v", matches)
		}
	}
}

func TestRankBM25_RespectsMaxResults(t *testing.T) {
	idx := setupTestIndex(t)
	candidates := []int{0, 1, 2, 3, 4}

	matches := idx.RankBM25(candidates, []string{"learning"}, DefaultBM25Parameters(), 2)
	if len(matches) > 2 {
		t.Errorf("expected at most 2 matches, got %d", len(matches))
	}
}

func TestRankBM25_KeepsHighestScoringWhenOverflowing(t *testing.T) {
	idx := setupTestIndex(t)
	candidates := []int{0, 1, 2, 3, 4}

	full := idx.RankBM25(candidates, []string{"learning"}, DefaultBM25Parameters(), 10)
	if len(full) == 0 {
		t.Fatalf("expected at least one match for 'learning'")
	}
	top := full[0]

	limited := idx.RankBM25(candidates, []string{"learning"}, DefaultBM25Parameters(), 1)
	if len(limited) != 1 || limited[0].InternalID != top.InternalID {
		t.Errorf("RankBM25 with maxResults=1 should keep the top scorer %+v, got %+v", top, limited)
	}
}

func TestRankBM25_CarriesTermIDFForCoverageReuse(t *testing.T) {
	idx := setupTestIndex(t)
	matches := idx.RankBM25([]int{0}, []string{"machine", "learning"}, DefaultBM25Parameters(), 10)
	if len(matches) == 0 {
		t.Fatalf("expected a match")
	}
	if len(matches[0].TermIDF) != 2 {
		t.Errorf("expected TermIDF to carry one entry per query term, got %v", matches[0].TermIDF)
	}
}

func TestRankBM25_EmptyCandidatesReturnsEmpty(t *testing.T) {
	idx := setupTestIndex(t)
	matches := idx.RankBM25(nil, []string{"learning"}, DefaultBM25Parameters(), 10)
	if len(matches) != 0 {
		t.Errorf("expected no matches for an empty candidate set, got %v", matches)
	}
}

func TestNormalizeBM25_ClampsToUnitInterval(t *testing.T) {
	tests := []struct {
		name        string
		score       float64
		maxObserved float64
		want        float64
	}{
		{"zero max observed", 5, 0, 0},
		{"negative max observed", 5, -1, 0},
		{"score equals max", 4, 4, 1},
		{"score exceeds max", 6, 4, 1},
		{"score below max", 2, 4, 0.5},
		{"negative score clamps to zero", -1, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBM25(tt.score, tt.maxObserved)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeBM25(%f, %f) = %f, want %f", tt.score, tt.maxObserved, got, tt.want)
			}
		})
	}
}
