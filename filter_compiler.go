package infidex

// ═══════════════════════════════════════════════════════════════════════════════
// FILTER DSL: AST → BYTECODE COMPILER (§4.7)
// ═══════════════════════════════════════════════════════════════════════════════

// CompileFilter lowers a Filter AST into a stack-machine CompiledFilter.
func CompileFilter(f Filter) *CompiledFilter {
	c := newCompiledFilter()
	compileNode(c, f)
	c.emit(opHalt, 0)
	return c
}

func compileNode(c *CompiledFilter, f Filter) {
	switch n := f.(type) {
	case ValueFilter:
		c.emit(opLoadField, c.addConst(StringValue(n.Field)))
		c.emit(opPushConst, c.addConst(n.Value))
		c.emit(compareOpcode(n.Op), 0)
	case RangeFilter:
		compileRange(c, n)
	case InFilter:
		c.emit(opLoadField, c.addConst(StringValue(n.Field)))
		for _, v := range n.Values {
			c.emit(opPushConst, c.addConst(v))
		}
		c.emit(opIn, int32(len(n.Values)))
	case StringFilter:
		c.emit(opLoadField, c.addConst(StringValue(n.Field)))
		c.emit(opPushConst, c.addConst(StringValue(n.Pattern)))
		c.emit(stringOpcode(n.Op), 0)
	case RegexFilter:
		c.emit(opLoadField, c.addConst(StringValue(n.Field)))
		idx := c.addConst(StringValue(n.Pattern))
		c.emit(opMatches, idx)
	case NullFilter:
		c.emit(opLoadField, c.addConst(StringValue(n.Field)))
		c.emit(opIsNull, 0)
		if !n.IsNull {
			c.emit(opNot, 0)
		}
	case CompositeFilter:
		compileComposite(c, n)
	case TernaryFilter:
		compileTernary(c, n)
	case LiteralFilter:
		c.emit(opPushConst, c.addConst(BoolValue(n.Value)))
	}
}

// compileComposite implements the short-circuit lowering prescribed by
// §4.7: `a AND b` → emit a, JUMP_IF_FALSE skip, emit b, JUMP end,
// skip: PUSH_CONST false, end:. OR is the symmetric case; NOT just negates.
func compileComposite(c *CompiledFilter, n CompositeFilter) {
	switch n.Op {
	case OpAnd:
		compileNode(c, n.Left)
		skipJump := c.emit(opJumpIfFalse, 0)
		compileNode(c, n.Right)
		endJump := c.emit(opJump, 0)
		c.patchJump(skipJump, c.here())
		c.emit(opPushConst, c.addConst(BoolValue(false)))
		c.patchJump(endJump, c.here())
	case OpOr:
		compileNode(c, n.Left)
		skipJump := c.emit(opJumpIfTrue, 0)
		compileNode(c, n.Right)
		endJump := c.emit(opJump, 0)
		c.patchJump(skipJump, c.here())
		c.emit(opPushConst, c.addConst(BoolValue(true)))
		c.patchJump(endJump, c.here())
	case OpNot:
		compileNode(c, n.Left)
		c.emit(opNot, 0)
	}
}

// compileTernary: emit c, JUMP_IF_FALSE false_branch, emit t, JUMP end,
// false_branch: emit f, end:.
func compileTernary(c *CompiledFilter, n TernaryFilter) {
	compileNode(c, n.Cond)
	falseJump := c.emit(opJumpIfFalse, 0)
	compileNode(c, n.True)
	endJump := c.emit(opJump, 0)
	c.patchJump(falseJump, c.here())
	compileNode(c, n.False)
	c.patchJump(endJump, c.here())
}

// compileRange lowers BETWEEN into a conjunction of bound comparisons,
// honoring the inclusive flags (open bounds are simply omitted).
func compileRange(c *CompiledFilter, n RangeFilter) {
	var parts []Filter
	if n.Min != nil {
		op := OpGE
		if !n.MinIncl {
			op = OpGT
		}
		parts = append(parts, ValueFilter{Field: n.Field, Op: op, Value: *n.Min})
	}
	if n.Max != nil {
		op := OpLE
		if !n.MaxIncl {
			op = OpLT
		}
		parts = append(parts, ValueFilter{Field: n.Field, Op: op, Value: *n.Max})
	}
	if len(parts) == 0 {
		c.emit(opPushConst, c.addConst(BoolValue(true)))
		return
	}
	combined := parts[0]
	for _, p := range parts[1:] {
		combined = CompositeFilter{Op: OpAnd, Left: combined, Right: p}
	}
	compileNode(c, combined)
}

func compareOpcode(op CompareOp) opcode {
	switch op {
	case OpEQ:
		return opEQ
	case OpNEQ:
		return opNEQ
	case OpLT:
		return opLT
	case OpLE:
		return opLE
	case OpGT:
		return opGT
	case OpGE:
		return opGE
	}
	return opEQ
}

func stringOpcode(op StringOp) opcode {
	switch op {
	case OpContains:
		return opContains
	case OpStartsWith:
		return opStartsWith
	case OpEndsWith:
		return opEndsWith
	case OpLike:
		return opLike
	}
	return opContains
}
