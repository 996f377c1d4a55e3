package infidex

// ═══════════════════════════════════════════════════════════════════════════════
// FILTER DSL: AST (§4.7)
// ═══════════════════════════════════════════════════════════════════════════════

// CompareOp is one of the six comparison operators.
type CompareOp uint8

const (
	OpEQ CompareOp = iota
	OpNEQ
	OpLT
	OpLE
	OpGT
	OpGE
)

// StringOp is one of the SQL-style string predicates.
type StringOp uint8

const (
	OpContains StringOp = iota
	OpStartsWith
	OpEndsWith
	OpLike
)

// CompositeOp combines filters.
type CompositeOp uint8

const (
	OpAnd CompositeOp = iota
	OpOr
	OpNot
)

// Filter is the sealed AST node interface produced by the parser (§4.7).
type Filter interface {
	isFilter()
}

// ValueFilter compares a field against a single constant.
type ValueFilter struct {
	Field string
	Op    CompareOp
	Value FieldValue
}

// RangeFilter implements BETWEEN; Min/Max are nil when unbounded.
type RangeFilter struct {
	Field            string
	Min, Max         *FieldValue
	MinIncl, MaxIncl bool
}

// InFilter implements the IN (...) predicate.
type InFilter struct {
	Field  string
	Values []FieldValue
}

// StringFilter implements CONTAINS/STARTS WITH/ENDS WITH/LIKE.
type StringFilter struct {
	Field   string
	Op      StringOp
	Pattern string
}

// RegexFilter implements MATCHES.
type RegexFilter struct {
	Field   string
	Pattern string
}

// NullFilter implements IS [NOT] NULL.
type NullFilter struct {
	Field  string
	IsNull bool
}

// CompositeFilter implements AND/OR/NOT. Right is nil for Not.
type CompositeFilter struct {
	Op          CompositeOp
	Left, Right Filter
}

// TernaryFilter implements `cond ? true_branch : false_branch`.
type TernaryFilter struct {
	Cond, True, False Filter
}

// LiteralFilter is a bare boolean literal used as a filter expression.
type LiteralFilter struct {
	Value bool
}

func (ValueFilter) isFilter()     {}
func (RangeFilter) isFilter()     {}
func (InFilter) isFilter()        {}
func (StringFilter) isFilter()    {}
func (RegexFilter) isFilter()     {}
func (NullFilter) isFilter()      {}
func (CompositeFilter) isFilter() {}
func (TernaryFilter) isFilter()   {}
func (LiteralFilter) isFilter()   {}
