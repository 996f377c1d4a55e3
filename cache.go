package infidex

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PER-QUERY CACHES (§5)
// ═══════════════════════════════════════════════════════════════════════════════
// Two instance-scoped caches owned by the Engine: a bounded per-query IDF
// vector cache and an unbounded structural-hash-keyed filter bytecode
// cache. golang-lru is named in the retrieved corpus' go.mod manifests
// (see DESIGN.md) with no concrete in-corpus call site to mirror; wired
// here per its ordinary v2 generic API.
// ═══════════════════════════════════════════════════════════════════════════════

// idfCache memoizes the per-token IDF vector for a query's token sequence,
// keyed by the joined token text. A later put for the same key replaces the
// earlier value; once the cache is full, the least recently used entry is
// evicted (§5).
type idfCache struct {
	cache *lru.Cache[string, []float64]
}

func newIDFCache(size int) *idfCache {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[string, []float64](size)
	return &idfCache{cache: c}
}

func (c *idfCache) get(key string) ([]float64, bool) {
	return c.cache.Get(key)
}

func (c *idfCache) put(key string, v []float64) {
	c.cache.Add(key, v)
}

// filterCache stores one compiled bytecode form per distinct AST shape
// (concurrent misses on the same shape may each compile, but all callers
// get the one stored form), keyed by a structural hash rather than pointer
// identity (§9:
// "cache keying should be by structural hash ... so that semantically
// equal filters share a compiled form"). sync.Map gives the atomic
// get-or-insert §5 requires without a manual mutex.
type filterCache struct {
	m sync.Map // structuralKey(filter) -> *CompiledFilter
}

func newFilterCache() *filterCache { return &filterCache{} }

func (fc *filterCache) getOrCompile(f Filter) *CompiledFilter {
	key := structuralKey(f)
	if v, ok := fc.m.Load(key); ok {
		return v.(*CompiledFilter)
	}
	compiled := CompileFilter(f)
	actual, _ := fc.m.LoadOrStore(key, compiled)
	return actual.(*CompiledFilter)
}

// structuralKey renders a Filter AST into a canonical string so two
// independently-built but semantically identical ASTs hash identically.
func structuralKey(f Filter) string {
	if f == nil {
		return "nil"
	}
	switch n := f.(type) {
	case ValueFilter:
		return fmt.Sprintf("V(%s,%d,%d,%v,%v,%v,%s)", n.Field, n.Op, n.Value.Kind, n.Value.B, n.Value.I, n.Value.F, n.Value.S)
	case RangeFilter:
		return fmt.Sprintf("R(%s,%s,%s,%v,%v)", n.Field, fieldValueKey(n.Min), fieldValueKey(n.Max), n.MinIncl, n.MaxIncl)
	case InFilter:
		s := fmt.Sprintf("I(%s", n.Field)
		for _, v := range n.Values {
			s += "," + fieldValueKey(&v)
		}
		return s + ")"
	case StringFilter:
		return fmt.Sprintf("S(%s,%d,%s)", n.Field, n.Op, n.Pattern)
	case RegexFilter:
		return fmt.Sprintf("X(%s,%s)", n.Field, n.Pattern)
	case NullFilter:
		return fmt.Sprintf("N(%s,%v)", n.Field, n.IsNull)
	case CompositeFilter:
		right := ""
		if n.Right != nil {
			right = structuralKey(n.Right)
		}
		return fmt.Sprintf("C(%d,%s,%s)", n.Op, structuralKey(n.Left), right)
	case TernaryFilter:
		return fmt.Sprintf("T(%s,%s,%s)", structuralKey(n.Cond), structuralKey(n.True), structuralKey(n.False))
	case LiteralFilter:
		return fmt.Sprintf("L(%v)", n.Value)
	}
	return "?"
}

func fieldValueKey(v *FieldValue) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d:%v:%v:%v:%s", v.Kind, v.B, v.I, v.F, v.S)
}
