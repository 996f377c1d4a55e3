package infidex

import (
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY BUILDER TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestQueryBuilder_SingleTerm(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).Term("machine").Execute()
	if results.GetCardinality() == 0 {
		t.Fatalf("expected at least one document matching machine")
	}
}

func TestQueryBuilder_And(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).Term("machine").And().Term("python").Execute()
	if !results.ContainsInt(4) {
		t.Errorf("expected doc 4 (machine learning with python) in AND results, got %v", results.ToArray())
	}
	if results.ContainsInt(1) {
		t.Errorf("doc 1 has no 'python', should not be in AND results")
	}
}

func TestQueryBuilder_Or(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).Term("python").Or().Term("cat").Execute()
	if results.GetCardinality() == 0 {
		t.Fatalf("expected non-empty OR result")
	}
}

func TestQueryBuilder_Not(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).Term("machine").And().Not().Term("python").Execute()
	if results.ContainsInt(4) {
		t.Errorf("doc 4 has 'python', should be excluded")
	}
}

func TestQueryBuilder_Group(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).
		Group(func(q *QueryBuilder) { q.Term("cat").Or().Term("python") }).
		Execute()
	if results.GetCardinality() == 0 {
		t.Fatalf("expected non-empty grouped OR result")
	}
}

func TestQueryBuilder_UnknownTerm(t *testing.T) {
	idx := setupTestIndex(t)

	results := NewQueryBuilder(idx).Term("nonexistentterm").Execute()
	if results.GetCardinality() != 0 {
		t.Errorf("unknown term should match no documents")
	}
}

func TestAllOfAnyOfTermExcluding(t *testing.T) {
	idx := setupTestIndex(t)

	if AllOf(idx, "machine", "learning").GetCardinality() == 0 {
		t.Errorf("expected AllOf(machine, learning) to match at least one document")
	}
	if AnyOf(idx, "cat", "python").GetCardinality() == 0 {
		t.Errorf("expected AnyOf(cat, python) to match at least one document")
	}
	excl := TermExcluding(idx, "machine", "python")
	if excl.ContainsInt(4) {
		t.Errorf("TermExcluding should drop doc 4, which contains 'python'")
	}
}
