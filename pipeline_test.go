package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH PIPELINE END-TO-END TESTS (§4.6, §8)
// ═══════════════════════════════════════════════════════════════════════════════

func newTestEngine(t *testing.T, docs []testDoc) *Engine {
	t.Helper()
	idx := buildTestIndex(t, docs)
	tok := testTokenizer()
	return NewEngine(idx, tok, DefaultEngineConfig())
}

func resultKeys(r Result) []int64 {
	keys := make([]int64, len(r.Records))
	for i, rec := range r.Records {
		keys[i] = rec.DocKey
	}
	return keys
}

// Scenario 1: a typo-laden query still surfaces the closer lexical match
// first via fuzzy coverage.
func TestSearch_TypoQueryRanksClosestMatchFirst(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "The quick brown fox jumps over the lazy dog"},
		{5, "The fox was quick and clever in the forest"},
	})

	res, err := e.Search(NewQuery("qick fux"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	keys := resultKeys(res)
	if len(keys) == 0 {
		t.Fatalf("expected at least one match for a typo'd query, got none")
	}
	if keys[0] != 5 {
		t.Errorf("expected doc 5 (\"fox was quick\") ranked first, got order %v", keys)
	}
}

// Scenario 2: an exact single-word query returns its exact document.
func TestSearch_ExactWordQueryReturnsExactDoc(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "The quick brown fox jumps over the lazy dog"},
		{5, "The fox was quick and clever in the forest"},
		{6, "Batman and Robin fight crime in Gotham City"},
	})

	res, err := e.Search(NewQuery("batman"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	keys := resultKeys(res)
	if len(keys) == 0 || keys[0] != 6 {
		t.Errorf("expected doc 6 for query 'batman', got %v", keys)
	}
}

// Scenario 3: a heavily misspelled query still surfaces the intended
// document through fuzzy (Damerau-tolerant) coverage.
func TestSearch_FuzzyQueryStillMatchesIntendedDoc(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "The quick brown fox jumps over the lazy dog"},
		{6, "Batman and Robin fight crime in Gotham City"},
	})

	res, err := e.Search(NewQuery("battamam"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	keys := resultKeys(res)
	if len(keys) == 0 || keys[0] != 6 {
		t.Errorf("expected doc 6 for the fuzzy query 'battamam', got %v", keys)
	}
}

// Scenario 4: a single distinguishing word picks out its document among
// several unrelated ones.
func TestSearch_DistinctiveWordSelectsItsDoc(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "The quick brown fox jumps over the lazy dog"},
		{6, "Batman and Robin fight crime in Gotham City"},
		{7, "Superman flies faster than a speeding bullet"},
	})

	res, err := e.Search(NewQuery("speeding"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	keys := resultKeys(res)
	if len(keys) == 0 || keys[0] != 7 {
		t.Errorf("expected doc 7 for query 'speeding', got %v", keys)
	}
}

// §8 boundary: empty query text returns an empty result without timing out.
func TestSearch_EmptyQueryReturnsEmptyResult(t *testing.T) {
	e := newTestEngine(t, []testDoc{{1, "anything at all"}})
	res, err := e.Search(NewQuery(""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected no records for an empty query, got %v", res.Records)
	}
	if res.DidTimeOut {
		t.Errorf("expected an empty query to short-circuit without timing out")
	}
}

// §8 boundary: a query consisting solely of delimiter characters normalizes
// to nothing and returns an empty result.
func TestSearch_DelimiterOnlyQueryReturnsEmptyResult(t *testing.T) {
	e := newTestEngine(t, []testDoc{{1, "anything at all"}})
	res, err := e.Search(NewQuery("   ---   "))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected no records for a delimiter-only query, got %v", res.Records)
	}
}

// §8 boundary: a single-character query against an empty corpus returns no
// results rather than panicking.
func TestSearch_SingleCharQueryOnEmptyCorpusReturnsEmpty(t *testing.T) {
	e := newTestEngine(t, nil)
	res, err := e.Search(NewQuery("a"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected no records against an empty corpus, got %v", res.Records)
	}
}

// §8 quantified invariant: a query whose text exactly equals a document's
// indexed text ranks that document first.
func TestSearch_ExactTextMatchRanksFirst(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
		{3, "python programming is great"},
	})
	res, err := e.Search(NewQuery("machine learning is fun"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	keys := resultKeys(res)
	if len(keys) == 0 || keys[0] != 1 {
		t.Errorf("expected the exact-text document (1) ranked first, got %v", keys)
	}
}

// §8 quantified invariant: |records| <= min(max_results, matching_docs).
func TestSearch_RespectsMaxResultsCap(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
		{3, "machine learning with python"},
		{4, "machine learning for beginners"},
	})
	q := NewQuery("machine learning")
	q.MaxResults = 2
	res, err := e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) > 2 {
		t.Errorf("expected at most 2 records, got %d", len(res.Records))
	}
}

// §8 quantified invariant: results come back in strictly non-increasing
// score order.
func TestSearch_ResultsAreNonIncreasingByScore(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
		{3, "python programming is great"},
		{4, "machine learning with python"},
	})
	res, err := e.Search(NewQuery("machine learning"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(res.Records); i++ {
		if res.Records[i].Less(res.Records[i-1]) {
			t.Errorf("results not in sorted order at index %d: %+v", i, res.Records)
		}
	}
}

// A filter applied via Query.Filter excludes non-matching documents from
// the final result even though they'd otherwise rank.
func TestSearch_FilterExcludesNonMatchingDocs(t *testing.T) {
	idx := buildTestIndex(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
	})
	idx.Documents[0].Fields["category"] = Field{Value: StringValue("tutorial"), Facetable: true}
	idx.Documents[1].Fields["category"] = Field{Value: StringValue("advanced"), Facetable: true}

	e := NewEngine(idx, testTokenizer(), DefaultEngineConfig())
	f, err := ParseFilter("category = 'tutorial'")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	q := NewQuery("learning")
	q.Filter = f
	res, err := e.Search(q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, rec := range res.Records {
		if rec.DocKey != 1 {
			t.Errorf("expected only doc 1 to survive the category filter, got %v", resultKeys(res))
		}
	}
}

// remove_duplicates (the default) collapses repeated keys from stage
// consolidation down to one entry per document.
func TestSearch_RemovesDuplicateKeys(t *testing.T) {
	e := newTestEngine(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
	})
	res, err := e.Search(NewQuery("machine learning"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := make(map[int64]int)
	for _, rec := range res.Records {
		seen[rec.DocKey]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Errorf("doc %d appeared %d times, expected at most once", k, n)
		}
	}
}
