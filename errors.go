package infidex

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY (§7)
// ═══════════════════════════════════════════════════════════════════════════════
// FilterParseError (filter_parser.go) and the index's sentinel errors
// (index.go) are defined alongside the code that raises them. The three
// remaining kinds live here: SerializationError and InvariantError are
// always surfaced to the caller, while FilterRuntimeError is absorbed by the
// VM (see below).
// ═══════════════════════════════════════════════════════════════════════════════

// FilterRuntimeError marks a type mismatch encountered while executing
// compiled filter bytecode (e.g. a numeric comparison against a
// non-numeric field). Per §7 this is recoverable: the VM absorbs it by
// evaluating the offending condition to false and the search continues, so
// this type exists for documentation and testing rather than as something
// callers ever receive from Execute.
type FilterRuntimeError struct {
	Detail string
}

func (e *FilterRuntimeError) Error() string { return "filter runtime error: " + e.Detail }

// SerializationError reports a rejected INFISCRIPT-V1 bytecode stream: bad
// magic, truncated data, or an out-of-range constant-pool reference. No
// state is mutated before this is returned.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string { return "serialization error: " + e.Reason }

// InvariantError marks a structural defect that should be impossible under
// normal operation — an unknown filter AST node, corrupted bytecode
// (out-of-range operand, unrecognized opcode), or a posting-list
// inconsistency. Always fatal to the search that triggered it.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string { return "internal invariant violation: " + e.Detail }
