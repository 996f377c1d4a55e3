package infidex

import (
	"math"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INVERTED INDEX TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestAddDocument_AssignsDenseInternalIDs(t *testing.T) {
	idx := setupTestIndex(t)

	for i, doc := range idx.Documents {
		if doc.InternalID != i {
			t.Errorf("doc %d: InternalID = %d, want %d", i, doc.InternalID, i)
		}
	}
}

func TestAddDocument_AfterBuildRejected(t *testing.T) {
	idx := setupTestIndex(t)

	doc := &Document{Key: 99, TextField: "text", Fields: map[string]Field{
		"text": {Value: StringValue("late arrival"), Indexable: true},
	}}
	if err := idx.AddDocument(doc, testTokenizer()); err != ErrIndexAlreadyBuilt {
		t.Errorf("expected ErrIndexAlreadyBuilt, got %v", err)
	}
}

func TestBuild_ComputesDocFreqAndPostings(t *testing.T) {
	idx := setupTestIndex(t)

	term, ok := idx.TermsByText["learning"]
	if !ok {
		t.Fatalf("expected term 'learning' to be indexed")
	}
	// docs 1, 2, 4 contain "learning".
	if term.DocFreq != 3 {
		t.Errorf("DocFreq('learning') = %d, want 3", term.DocFreq)
	}

	var doc2TF int
	for _, p := range term.Postings {
		if p.InternalID == 1 { // doc 2 is internal id 1
			doc2TF = p.TermFreq
		}
	}
	if doc2TF != 2 {
		t.Errorf("doc 2 term frequency for 'learning' = %d, want 2 (appears twice)", doc2TF)
	}
}

func TestBuild_CorpusStats(t *testing.T) {
	idx := setupTestIndex(t)

	if idx.Stats.TotalDocs != 5 {
		t.Errorf("TotalDocs = %d, want 5", idx.Stats.TotalDocs)
	}
	if idx.Stats.AvgDocLength <= 0 {
		t.Errorf("AvgDocLength should be positive, got %f", idx.Stats.AvgDocLength)
	}
}

func TestIDF_MonotonicWithRarity(t *testing.T) {
	idx := setupTestIndex(t)

	idfCommon := idx.IDF("learning") // appears in 3/5 docs
	idfRare := idx.IDF("pets")       // appears in 1/5 docs
	idfAbsent := idx.IDF("zzznotaterm")

	if !(idfRare > idfCommon) {
		t.Errorf("rarer term should have higher IDF: idf(pets)=%f idf(learning)=%f", idfRare, idfCommon)
	}
	if idfAbsent < idfRare {
		t.Errorf("an absent term should have at least as high an IDF as any indexed term")
	}
	if math.IsNaN(idfCommon) || math.IsInf(idfCommon, 0) {
		t.Errorf("IDF must be finite, got %f", idfCommon)
	}
}

func TestPostingIterator_AdvanceIsMonotonicAndTerminates(t *testing.T) {
	idx := setupTestIndex(t)

	term := idx.TermsByText["learning"]
	it := NewPostingIterator(term)

	if it.DocID() == NoMoreDocs {
		t.Fatalf("expected at least one posting")
	}

	seen := []int{it.DocID()}
	for {
		d := it.NextDoc()
		if d == NoMoreDocs {
			break
		}
		seen = append(seen, d)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("postings not strictly ascending: %v", seen)
		}
	}
}

func TestPostingIterator_Advance(t *testing.T) {
	idx := setupTestIndex(t)
	term := idx.TermsByText["learning"]

	it := NewPostingIterator(term)
	target := term.Postings[len(term.Postings)-1].InternalID
	got := it.Advance(target)
	if got != target {
		t.Errorf("Advance(%d) = %d, want %d", target, got, target)
	}
	if it.NextDoc() != NoMoreDocs {
		t.Errorf("expected iterator exhausted after advancing to the last posting")
	}
}

func TestPrefixTrie_ReturnsTermsSharingPrefix(t *testing.T) {
	idx := setupTestIndex(t)

	ids, truncated := idx.Prefix.TermIDsWithPrefix("lea", 0)
	if truncated {
		t.Errorf("did not expect truncation with limit=0")
	}
	if len(ids) == 0 {
		t.Errorf("expected at least one term/n-gram starting with 'lea'")
	}
}
