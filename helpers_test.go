package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TEST HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func testTokenizer() *Tokenizer {
	return NewTokenizer(DefaultConfig())
}

// testDoc is a minimal (key, text) pair used to build indexes in tests.
type testDoc struct {
	Key  int64
	Text string
}

func buildTestIndex(t *testing.T, docs []testDoc) *Index {
	t.Helper()
	idx := NewIndex()
	tok := testTokenizer()
	for _, d := range docs {
		doc := &Document{
			Key:       d.Key,
			TextField: "text",
			Fields: map[string]Field{
				"text": {Value: StringValue(d.Text), Weight: WeightMed, Indexable: true},
			},
		}
		if err := idx.AddDocument(doc, tok); err != nil {
			t.Fatalf("AddDocument: %v", err)
		}
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

// setupTestIndex builds the small five-document corpus reused across the
// query/candidate/backbone test suites.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	return buildTestIndex(t, []testDoc{
		{1, "machine learning is fun"},
		{2, "deep learning and machine learning"},
		{3, "python programming is great"},
		{4, "machine learning with python"},
		{5, "cats and dogs are pets"},
	})
}
