package infidex

import (
	"sort"
	"strings"
	"sync"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WORD MATCHER (consumed component, §4.6 step 6 / §5)
// ═══════════════════════════════════════════════════════════════════════════════
// §4.6 names the WordMatcher as a consumed external collaborator ("returns
// an additional set of internal ids matching the query with LD1 and affix
// support"); no implementation is specified, so it is built here over the
// index's own term dictionary, grounded on the same Damerau-Levenshtein/
// affix primitives the Coverage Engine's fuzzy sub-matchers already use
// (coverage.go, editdistance.go). §5 requires its cache to serialize
// query-text mutation with a mutex while lookups are pure reads of cached
// state; implemented below with a single mutex-guarded map.
// ═══════════════════════════════════════════════════════════════════════════════

// WordMatcher supplements stage 2 candidate assembly with internal ids
// reachable via an edit-distance-1 (LD1) or prefix/suffix match against any
// query word, independent of the n-gram candidate path.
type WordMatcher struct {
	idx *Index

	mu    sync.Mutex
	cache map[string][]int
}

// NewWordMatcher constructs a WordMatcher bound to idx.
func NewWordMatcher(idx *Index) *WordMatcher {
	return &WordMatcher{idx: idx, cache: make(map[string][]int)}
}

// Match returns every internal id whose document contains a term that is
// either identical to, an LD1 neighbor of, or an affix match (prefix or
// suffix) of some word ≥ minWordSize in query. Results are cached per exact
// query string (§5).
func (wm *WordMatcher) Match(query string, minWordSize int) []int {
	wm.mu.Lock()
	if cached, ok := wm.cache[query]; ok {
		wm.mu.Unlock()
		return cached
	}
	wm.mu.Unlock()

	words := tokenize(strings.ToLower(query))
	seen := make(map[int]struct{})
	for _, qw := range words {
		if len(qw) < minWordSize {
			continue
		}
		for text, term := range wm.idx.TermsByText {
			if isNGramText(text) {
				continue
			}
			if !wordMatches(qw, text) {
				continue
			}
			for _, p := range term.Postings {
				seen[p.InternalID] = struct{}{}
			}
		}
	}

	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)

	wm.mu.Lock()
	wm.cache[query] = out
	wm.mu.Unlock()
	return out
}

// wordMatches implements the LD1-or-affix predicate: exact, one edit away,
// or a prefix/suffix relationship in either direction.
func wordMatches(qw, text string) bool {
	if qw == text {
		return true
	}
	if strings.HasPrefix(text, qw) || strings.HasPrefix(qw, text) {
		return true
	}
	if strings.HasSuffix(text, qw) || strings.HasSuffix(qw, text) {
		return true
	}
	return DamerauLevenshtein(qw, text) <= 1
}

// isNGramText reports whether text is a padded character n-gram (as
// opposed to a whole word token), by checking for the tokenizer's
// start/stop pad runes that only n-gram entries carry.
func isNGramText(text string) bool {
	return strings.ContainsAny(text, "\x01\x02")
}
