package infidex

import (
	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY BUILDER: Boolean Bitmap Composition
// ═══════════════════════════════════════════════════════════════════════════════
// A small fluent helper over per-term roaring bitmaps, used internally by
// the Candidate Selector (candidate.go), through AllOf/AnyOf, to combine
// term bitmaps for the tiered-intersection code path of §4.2(c). This is
// deliberately NOT the Filter DSL (that has real operator
// precedence, see filter_parser.go) — it is a low-level AND/OR/NOT
// composition tool with no parsing involved.
//
// EXAMPLE USAGE:
// --------------
//
//	bitmap := NewQueryBuilder(index).Term("machine").And().Term("learning").Execute()
// ═══════════════════════════════════════════════════════════════════════════════

// QueryBuilder provides a fluent interface for building boolean bitmap
// queries over an Index's term bitmaps.
type QueryBuilder struct {
	index  *Index
	stack  []*roaring.Bitmap
	ops    []QueryOp
	negate bool
	terms  []string
}

// QueryOp represents a pending boolean operation.
type QueryOp int

const (
	QueryOpNone QueryOp = iota
	QueryOpAnd
	QueryOpOr
)

// NewQueryBuilder creates a new query builder over index.
func NewQueryBuilder(index *Index) *QueryBuilder {
	return &QueryBuilder{
		index: index,
		stack: make([]*roaring.Bitmap, 0),
		ops:   make([]QueryOp, 0),
		terms: make([]string, 0),
	}
}

// Term adds a raw (already-normalized) term to the query.
func (qb *QueryBuilder) Term(term string) *QueryBuilder {
	if term == "" {
		qb.pushBitmap(roaring.New())
		return qb
	}

	if !qb.negate {
		qb.terms = append(qb.terms, term)
	}

	bitmap := qb.getTermBitmap(term)

	if qb.negate {
		bitmap = qb.negateBitmap(bitmap)
		qb.negate = false
	}

	qb.pushBitmap(bitmap)
	return qb
}

// And adds an AND operation: roaring bitmap intersection.
func (qb *QueryBuilder) And() *QueryBuilder {
	qb.ops = append(qb.ops, QueryOpAnd)
	return qb
}

// Or adds an OR operation: roaring bitmap union.
func (qb *QueryBuilder) Or() *QueryBuilder {
	qb.ops = append(qb.ops, QueryOpOr)
	return qb
}

// Not negates the next term: roaring bitmap difference against the corpus.
func (qb *QueryBuilder) Not() *QueryBuilder {
	qb.negate = true
	return qb
}

// Group creates a sub-query with its own scope, for controlling precedence.
func (qb *QueryBuilder) Group(fn func(*QueryBuilder)) *QueryBuilder {
	subQuery := NewQueryBuilder(qb.index)
	fn(subQuery)
	result := subQuery.Execute()

	if qb.negate {
		result = qb.negateBitmap(result)
		qb.negate = false
	}

	qb.pushBitmap(result)
	return qb
}

// Execute folds the stack left-to-right with the queued operations and
// returns the resulting bitmap. Deliberately has no operator-precedence
// handling — callers needing precedence use Group(), or (for the Filter
// DSL) the real recursive-descent parser in filter_parser.go.
func (qb *QueryBuilder) Execute() *roaring.Bitmap {
	if len(qb.stack) == 0 {
		return roaring.New()
	}

	result := qb.stack[0]
	for i := 1; i < len(qb.stack); i++ {
		if i-1 < len(qb.ops) {
			switch qb.ops[i-1] {
			case QueryOpAnd:
				result = roaring.And(result, qb.stack[i])
			case QueryOpOr:
				result = roaring.Or(result, qb.stack[i])
			}
		}
	}

	return result
}

// Terms returns the (non-negated) terms accumulated so far.
func (qb *QueryBuilder) Terms() []string { return qb.terms }

// ═══════════════════════════════════════════════════════════════════════════════
// INTERNAL HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (qb *QueryBuilder) getTermBitmap(term string) *roaring.Bitmap {
	if bitmap, exists := qb.index.DocBitmaps[term]; exists {
		return bitmap.Clone()
	}
	return roaring.New()
}

func (qb *QueryBuilder) negateBitmap(bitmap *roaring.Bitmap) *roaring.Bitmap {
	allDocs := roaring.New()
	for _, doc := range qb.index.Documents {
		if !doc.Deleted {
			allDocs.Add(uint32(doc.InternalID))
		}
	}
	return roaring.AndNot(allDocs, bitmap)
}

func (qb *QueryBuilder) pushBitmap(bitmap *roaring.Bitmap) {
	qb.stack = append(qb.stack, bitmap)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVENIENCE HELPERS FOR COMMON PATTERNS
// ═══════════════════════════════════════════════════════════════════════════════

// AllOf finds documents containing ALL of the given terms (AND).
func AllOf(index *Index, terms ...string) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.New()
	}
	qb := NewQueryBuilder(index).Term(terms[0])
	for i := 1; i < len(terms); i++ {
		qb.And().Term(terms[i])
	}
	return qb.Execute()
}

// AnyOf finds documents containing ANY of the given terms (OR).
func AnyOf(index *Index, terms ...string) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.New()
	}
	qb := NewQueryBuilder(index).Term(terms[0])
	for i := 1; i < len(terms); i++ {
		qb.Or().Term(terms[i])
	}
	return qb.Execute()
}

// TermExcluding finds documents with include but not exclude.
func TermExcluding(index *Index, include, exclude string) *roaring.Bitmap {
	return NewQueryBuilder(index).
		Term(include).
		And().Not().Term(exclude).
		Execute()
}
