package infidex

import "sync"

// ═══════════════════════════════════════════════════════════════════════════════
// FILTER DSL: BYTECODE REPRESENTATION (§4.7)
// ═══════════════════════════════════════════════════════════════════════════════

type opcode uint8

const (
	opLoadField opcode = iota
	opPushConst
	opEQ
	opNEQ
	opLT
	opLE
	opGT
	opGE
	opIn
	opContains
	opStartsWith
	opEndsWith
	opLike
	opMatches
	opIsNull
	opAnd
	opOr
	opNot
	opJump
	opJumpIfFalse
	opJumpIfTrue
	opHalt
)

// instruction is one (opcode, operand) pair. The operand's meaning depends on
// the opcode: a constant-pool index for LOAD_FIELD/PUSH_CONST/MATCHES, an
// element count for IN, or a signed jump offset for the JUMP family.
type instruction struct {
	op      opcode
	operand int32
}

// constTag identifies the runtime type of a constant-pool entry in both the
// in-memory representation and the serialized format (§6).
type constTag uint8

const (
	constNull constTag = iota
	constBool
	constInt
	constFloat
	constString
)

// CompiledFilter is the bytecode form of a Filter AST: an indexed constant
// pool plus a linear instruction stream (§4.7).
type CompiledFilter struct {
	Constants    []FieldValue
	Instructions []instruction
	// regexes caches compiled MATCHES patterns by constant-pool index so the
	// VM never recompiles a pattern across documents. Lazily populated on
	// first execution and guarded by mu, since a single CompiledFilter is
	// shared (via the filter bytecode cache, §5) across concurrent searches.
	regexes map[int32]*compiledRegex
	mu      sync.Mutex
}

func newCompiledFilter() *CompiledFilter {
	return &CompiledFilter{regexes: make(map[int32]*compiledRegex)}
}

func (c *CompiledFilter) addConst(v FieldValue) int32 {
	c.Constants = append(c.Constants, v)
	return int32(len(c.Constants) - 1)
}

func (c *CompiledFilter) emit(op opcode, operand int32) int {
	c.Instructions = append(c.Instructions, instruction{op: op, operand: operand})
	return len(c.Instructions) - 1
}

func (c *CompiledFilter) patchJump(idx int, target int) {
	c.Instructions[idx].operand = int32(target - idx)
}

func (c *CompiledFilter) here() int { return len(c.Instructions) }
