package infidex

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dlclark/regexp2"
)

// matchesEvalCount counts MATCHES opcode executions across every VM. §8's
// short-circuit property needs a side channel to prove a skipped operand was
// never evaluated; this is that side channel (tests reset it via
// resetMatchesEvalCount before asserting on the delta).
var matchesEvalCount atomic.Int64

func resetMatchesEvalCount() { matchesEvalCount.Store(0) }

// ═══════════════════════════════════════════════════════════════════════════════
// FILTER DSL: BYTECODE VM (§4.7)
// ═══════════════════════════════════════════════════════════════════════════════
// A stack-based interpreter executing a CompiledFilter against a single
// Document — no prior filter language exists anywhere in this codebase's
// lineage, so this is built directly from §4.7's opcode table and §7's
// error policy. MATCHES uses regexp2 (backtracking, case-insensitive via
// IgnoreCase) — the one regex engine named across the retrieved corpus'
// go.mod manifests (see DESIGN.md); no concrete in-corpus usage to mirror,
// so it is wired per its ordinary public API.
// ═══════════════════════════════════════════════════════════════════════════════

// compiledRegex caches a MATCHES pattern's compiled form alongside any
// compile error, so a malformed pattern fails the same way on every
// document instead of panicking partway through a search.
type compiledRegex struct {
	re  *regexp2.Regexp
	err error
}

// FilterVM is a thread-local, reusable stack machine (§5: "a per-thread
// FilterCompiler and FilterVM instance avoids per-search allocation"). Not
// safe for concurrent use — callers keep one instance per goroutine.
type FilterVM struct {
	stack []FieldValue
}

// NewFilterVM allocates a VM with a small pre-sized value stack.
func NewFilterVM() *FilterVM {
	return &FilterVM{stack: make([]FieldValue, 0, 8)}
}

func (vm *FilterVM) push(v FieldValue) { vm.stack = append(vm.stack, v) }

func (vm *FilterVM) pop() (FieldValue, error) {
	n := len(vm.stack) - 1
	if n < 0 {
		return FieldValue{}, &InvariantError{Detail: "filter VM stack underflow"}
	}
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v, nil
}

// Execute runs c against doc and returns the final boolean. Per §7: a type
// mismatch between operands evaluates the affected condition to false and
// execution continues (absorbed, never returned); an out-of-range operand
// or unrecognized opcode — bytecode corruption — is a hard failure
// returned to the caller.
func (vm *FilterVM) Execute(c *CompiledFilter, doc *Document) (bool, error) {
	vm.stack = vm.stack[:0]
	pc := 0
	for pc < len(c.Instructions) {
		ins := c.Instructions[pc]
		switch ins.op {
		case opLoadField:
			name, err := constStringAt(c, ins.operand)
			if err != nil {
				return false, err
			}
			vm.push(fieldValueOf(doc, name))
		case opPushConst:
			v, err := constAt(c, ins.operand)
			if err != nil {
				return false, err
			}
			vm.push(v)
		case opEQ, opNEQ, opLT, opLE, opGT, opGE:
			b, err := vm.pop()
			if err != nil {
				return false, err
			}
			a, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(compareValuesOp(a, b, ins.op)))
		case opIn:
			k := int(ins.operand)
			if k < 0 || k > len(vm.stack)-1 {
				return false, &InvariantError{Detail: "IN operand count out of range"}
			}
			values := make([]FieldValue, k)
			for i := k - 1; i >= 0; i-- {
				v, err := vm.pop()
				if err != nil {
					return false, err
				}
				values[i] = v
			}
			target, err := vm.pop()
			if err != nil {
				return false, err
			}
			found := false
			for _, v := range values {
				if compareValuesOp(target, v, opEQ) {
					found = true
					break
				}
			}
			vm.push(BoolValue(found))
		case opContains, opStartsWith, opEndsWith, opLike:
			pattern, err := vm.pop()
			if err != nil {
				return false, err
			}
			target, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(stringPredicate(ins.op, target, pattern)))
		case opMatches:
			target, err := vm.pop()
			if err != nil {
				return false, err
			}
			re, rerr := regexFor(c, ins.operand)
			if rerr != nil {
				return false, rerr
			}
			matchesEvalCount.Add(1)
			vm.push(BoolValue(matchesRegex(re, asString(target))))
		case opIsNull:
			v, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(v.IsNull()))
		case opAnd:
			b, err := vm.pop()
			if err != nil {
				return false, err
			}
			a, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(truthy(a) && truthy(b)))
		case opOr:
			b, err := vm.pop()
			if err != nil {
				return false, err
			}
			a, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(truthy(a) || truthy(b)))
		case opNot:
			a, err := vm.pop()
			if err != nil {
				return false, err
			}
			vm.push(BoolValue(!truthy(a)))
		case opJump:
			pc += int(ins.operand)
			continue
		case opJumpIfFalse:
			v, err := vm.pop()
			if err != nil {
				return false, err
			}
			if !truthy(v) {
				pc += int(ins.operand)
				continue
			}
		case opJumpIfTrue:
			v, err := vm.pop()
			if err != nil {
				return false, err
			}
			if truthy(v) {
				pc += int(ins.operand)
				continue
			}
		case opHalt:
			result, err := vm.pop()
			if err != nil {
				return false, err
			}
			return truthy(result), nil
		default:
			return false, &InvariantError{Detail: "unknown filter opcode"}
		}
		pc++
	}
	return false, &InvariantError{Detail: "filter bytecode missing terminal HALT"}
}

func constAt(c *CompiledFilter, idx int32) (FieldValue, error) {
	if idx < 0 || int(idx) >= len(c.Constants) {
		return FieldValue{}, &InvariantError{Detail: "constant pool index out of range"}
	}
	return c.Constants[idx], nil
}

func constStringAt(c *CompiledFilter, idx int32) (string, error) {
	v, err := constAt(c, idx)
	if err != nil {
		return "", err
	}
	return v.S, nil
}

func fieldValueOf(doc *Document, name string) FieldValue {
	if f, ok := doc.Fields[name]; ok {
		return f.Value
	}
	return NullValue()
}

func truthy(v FieldValue) bool {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindNull:
		return false
	default:
		return true
	}
}

// asNumber reports whether v can participate in a numeric comparison, per
// §9's "best-effort numeric parse, else lexicographic" coercion rule.
func asNumber(v FieldValue) (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asString(v FieldValue) string {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// compareValuesOp implements the EQ/NEQ/ordering family: null is equal only
// to null; numeric comparison is attempted first (§9), falling back to a
// case-insensitive lexicographic compare.
func compareValuesOp(a, b FieldValue, op opcode) bool {
	if a.Kind == KindNull || b.Kind == KindNull {
		switch op {
		case opEQ:
			return a.Kind == KindNull && b.Kind == KindNull
		case opNEQ:
			return !(a.Kind == KindNull && b.Kind == KindNull)
		default:
			return false
		}
	}
	if an, aOK := asNumber(a); aOK {
		if bn, bOK := asNumber(b); bOK {
			switch op {
			case opEQ:
				return an == bn
			case opNEQ:
				return an != bn
			case opLT:
				return an < bn
			case opLE:
				return an <= bn
			case opGT:
				return an > bn
			case opGE:
				return an >= bn
			}
		}
	}
	al, bl := strings.ToLower(asString(a)), strings.ToLower(asString(b))
	switch op {
	case opEQ:
		return al == bl
	case opNEQ:
		return al != bl
	case opLT:
		return al < bl
	case opLE:
		return al <= bl
	case opGT:
		return al > bl
	case opGE:
		return al >= bl
	}
	return false
}

// stringPredicate implements CONTAINS/STARTS_WITH/ENDS_WITH/LIKE, all
// case-insensitive per §4.7.
func stringPredicate(op opcode, target, pattern FieldValue) bool {
	t := strings.ToLower(asString(target))
	p := strings.ToLower(asString(pattern))
	switch op {
	case opContains:
		return strings.Contains(t, p)
	case opStartsWith:
		return strings.HasPrefix(t, p)
	case opEndsWith:
		return strings.HasSuffix(t, p)
	case opLike:
		return likeMatch(t, p)
	}
	return false
}

// likeMatch implements SQL-style LIKE wildcards ('%' = any run, '_' = any
// single character) via a 2-D dynamic-programming table over lowercased
// strings.
func likeMatch(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	ls, lp := len(sr), len(pr)
	dp := make([][]bool, ls+1)
	for i := range dp {
		dp[i] = make([]bool, lp+1)
	}
	dp[0][0] = true
	for j := 1; j <= lp; j++ {
		if pr[j-1] == '%' {
			dp[0][j] = dp[0][j-1]
		}
	}
	for i := 1; i <= ls; i++ {
		for j := 1; j <= lp; j++ {
			switch pr[j-1] {
			case '%':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '_':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && sr[i-1] == pr[j-1]
			}
		}
	}
	return dp[ls][lp]
}

// regexFor lazily compiles and caches the MATCHES pattern at constant-pool
// index idx, guarded by c.mu since a compiled filter is shared across
// concurrent searches via the filter bytecode cache (§5).
func regexFor(c *CompiledFilter, idx int32) (*compiledRegex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cr, ok := c.regexes[idx]; ok {
		return cr, nil
	}
	pattern, err := constStringAt(c, idx)
	if err != nil {
		return nil, err
	}
	re, compileErr := regexp2.Compile(pattern, regexp2.IgnoreCase)
	cr := &compiledRegex{re: re, err: compileErr}
	c.regexes[idx] = cr
	return cr, nil
}

// matchesRegex absorbs any compile or match error as a non-match (§7: a
// VM-level type/runtime problem evaluates false rather than aborting).
func matchesRegex(cr *compiledRegex, s string) bool {
	if cr.err != nil || cr.re == nil {
		return false
	}
	ok, err := cr.re.MatchString(s)
	if err != nil {
		return false
	}
	return ok
}

// EvalFilter directly walks a Filter AST against doc without compiling to
// bytecode first. Used to state and check the §8 testable property
// `compile(f).execute(doc) == f.matches(doc)`.
func EvalFilter(f Filter, doc *Document) bool {
	switch n := f.(type) {
	case ValueFilter:
		return compareValuesOp(fieldValueOf(doc, n.Field), n.Value, compareOpcode(n.Op))
	case RangeFilter:
		ok := true
		if n.Min != nil {
			op := opGE
			if !n.MinIncl {
				op = opGT
			}
			ok = ok && compareValuesOp(fieldValueOf(doc, n.Field), *n.Min, op)
		}
		if n.Max != nil {
			op := opLE
			if !n.MaxIncl {
				op = opLT
			}
			ok = ok && compareValuesOp(fieldValueOf(doc, n.Field), *n.Max, op)
		}
		return ok
	case InFilter:
		v := fieldValueOf(doc, n.Field)
		for _, candidate := range n.Values {
			if compareValuesOp(v, candidate, opEQ) {
				return true
			}
		}
		return false
	case StringFilter:
		return stringPredicate(stringOpcode(n.Op), fieldValueOf(doc, n.Field), StringValue(n.Pattern))
	case RegexFilter:
		re, err := regexp2.Compile(n.Pattern, regexp2.IgnoreCase)
		if err != nil {
			return false
		}
		return matchesRegex(&compiledRegex{re: re}, asString(fieldValueOf(doc, n.Field)))
	case NullFilter:
		isNull := fieldValueOf(doc, n.Field).IsNull()
		if n.IsNull {
			return isNull
		}
		return !isNull
	case CompositeFilter:
		switch n.Op {
		case OpAnd:
			return EvalFilter(n.Left, doc) && EvalFilter(n.Right, doc)
		case OpOr:
			return EvalFilter(n.Left, doc) || EvalFilter(n.Right, doc)
		case OpNot:
			return !EvalFilter(n.Left, doc)
		}
	case TernaryFilter:
		if EvalFilter(n.Cond, doc) {
			return EvalFilter(n.True, doc)
		}
		return EvalFilter(n.False, doc)
	case LiteralFilter:
		return n.Value
	}
	return false
}
