package infidex

import "sort"

// ═══════════════════════════════════════════════════════════════════════════════
// PREFIX INDEX
// ═══════════════════════════════════════════════════════════════════════════════
// §3 allows either a finite-state transducer or a sorted trie for the
// prefix-iterable structure; Infidex uses a sorted trie. No FST library
// appears anywhere in the retrieved example corpus (see DESIGN.md), and a
// trie keyed by term text answers exactly the operation the pipeline needs:
// "ordered set of term ids whose text starts with a prefix", bounded to a
// caller-supplied limit (§4.2(b): "bounded by 4096 terms per pattern").
// ═══════════════════════════════════════════════════════════════════════════════

type trieNode struct {
	children map[rune]*trieNode
	termIDs  []int // term ids of every term text terminating exactly at this node
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// PrefixTrie maps term-text prefixes to the ordered set of term ids whose
// text starts with that prefix.
type PrefixTrie struct {
	root *trieNode
}

func NewPrefixTrie() *PrefixTrie {
	return &PrefixTrie{root: newTrieNode()}
}

// Insert records that termID's text is exactly text (called once per
// distinct term, at first-sight time during ingestion).
func (t *PrefixTrie) Insert(text string, termID int) {
	node := t.root
	for _, r := range text {
		child, ok := node.children[r]
		if !ok {
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
	}
	node.termIDs = append(node.termIDs, termID)
}

// walkTo descends to the node exactly matching prefix, or returns nil if no
// term shares that prefix.
func (t *PrefixTrie) walkTo(prefix string) *trieNode {
	node := t.root
	for _, r := range prefix {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// TermIDsWithPrefix returns every term id whose text starts with prefix,
// in term-id order, capped at limit entries (limit <= 0 means unbounded).
// The second return value reports whether the result was truncated.
func (t *PrefixTrie) TermIDsWithPrefix(prefix string, limit int) ([]int, bool) {
	node := t.walkTo(prefix)
	if node == nil {
		return nil, false
	}
	var out []int
	truncated := collectTermIDs(node, &out, limit)
	sort.Ints(out)
	return out, truncated
}

func collectTermIDs(node *trieNode, out *[]int, limit int) bool {
	if limit > 0 && len(*out) >= limit {
		return true
	}
	*out = append(*out, node.termIDs...)
	if limit > 0 && len(*out) >= limit {
		*out = (*out)[:limit]
		return true
	}
	// deterministic traversal order: sort child runes for reproducibility.
	runes := make([]rune, 0, len(node.children))
	for r := range node.children {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	for _, r := range runes {
		if collectTermIDs(node.children[r], out, limit) {
			return true
		}
	}
	return false
}

// CountWithPrefix reports how many term ids share the given prefix, capped
// at cap. The Search Pipeline's §4.6 step 5 short-query check uses this
// term count; it is not a count of documents.
func (t *PrefixTrie) CountWithPrefix(prefix string, cap int) int {
	ids, _ := t.TermIDsWithPrefix(prefix, cap)
	return len(ids)
}
