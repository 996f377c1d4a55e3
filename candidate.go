package infidex

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CANDIDATE SELECTOR (stage 1, §4.2)
// ═══════════════════════════════════════════════════════════════════════════════
// Produces a bounded set of (internal_id, backbone_score) pairs for a
// normalized query, branching on query shape: single-character, short
// (shorter than the smallest n-gram size), or normal (tiered BM25-like
// AND/OR over per-term roaring bitmaps, §4.2(c), with per-document BM25
// upper bounds — see DESIGN.md).
// ═══════════════════════════════════════════════════════════════════════════════

// CandidateResult is stage 1's output: the roaring bitmap of candidate
// internal ids, plus a dense per-document BM25 upper bound (0 = not a
// candidate), as required by §4.2's "output" paragraph.
type CandidateResult struct {
	Bitmap      *roaring.Bitmap
	UpperBounds []float64 // indexed by internal id, len == len(idx.Documents)
	Terms       []string  // query terms carried forward into backbone scoring
}

func newCandidateResult(idx *Index) *CandidateResult {
	return &CandidateResult{
		Bitmap:      roaring.New(),
		UpperBounds: make([]float64, len(idx.Documents)),
	}
}

const (
	maxPrefixTermsPerPattern = 4096
	shortQueryExactWeight    = 10.0
	shortQueryFuzzyWord      = 2.0
	shortQueryFuzzyChar      = 1.0
	tierUpperBoundFactor     = 2.2
	rareTermDocFreqThreshold = 10
	selectiveIDFFraction     = 0.3
)

// SelectCandidates is the Candidate Selector entry point. query must already
// be normalized (lowercased/trimmed) by the tokenizer's normalizer.
func (idx *Index) SelectCandidates(query string, tok *Tokenizer, k int) *CandidateResult {
	smallestNGram := tok.cfg.SmallestNGram()

	runes := []rune(query)
	switch {
	case len(runes) == 0:
		return newCandidateResult(idx)
	case len(runes) == 1:
		return idx.selectSingleChar(runes[0])
	case len(runes) < smallestNGram:
		return idx.selectShortQuery(query, tok, k)
	default:
		if pre := idx.tryPrefixPrecedence(query, k); pre != nil {
			return pre
		}
		return idx.selectNormalQuery(query, tok, k)
	}
}

// ── (a) single-character query ──────────────────────────────────────────

// selectSingleChar linearly scans all non-deleted documents (§4.2(a)); used
// only when no n-gram can be formed.
func (idx *Index) selectSingleChar(ch rune) *CandidateResult {
	res := newCandidateResult(idx)
	chStr := string(ch)

	for _, doc := range idx.Documents {
		if doc.Deleted {
			continue
		}
		text := doc.Text()
		occurrences, earliestPos, atWordStart, titleEquals := scanSingleChar(text, chStr)
		if occurrences == 0 {
			continue
		}

		var precedence uint8
		switch {
		case atWordStart && earliestPos == 0:
			precedence = 4
		case atWordStart:
			precedence = 3
		case titleEquals:
			precedence = 2
		default:
			precedence = 1
		}

		base := occurrences
		if base > 255 {
			base = 255
		}

		res.Bitmap.Add(uint32(doc.InternalID))
		res.UpperBounds[doc.InternalID] = float64(precedence)*1000 + float64(base)
	}
	return res
}

func scanSingleChar(text, ch string) (occurrences, earliestPos int, atWordStart, titleEquals bool) {
	lower := tokenizerLowerRunes(text)
	target := []rune(tokenizerLowerRunes(ch))[0]
	earliestPos = -1
	prevIsDelim := true
	for i, r := range lower {
		if r == target {
			occurrences++
			if earliestPos == -1 {
				earliestPos = i
				if prevIsDelim {
					atWordStart = true
				}
			}
		}
		prevIsDelim = !isWordRune(r)
	}
	if len(lower) == 1 && lower[0] == target {
		titleEquals = true
	}
	return
}

func tokenizerLowerRunes(s string) string {
	return toLowerASCIIAware(s)
}

func toLowerASCIIAware(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r - 'A' + 'a'
		}
	}
	return string(out)
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// ── (b) short query ──────────────────────────────────────────────────────

// selectShortQuery expands the query into padded prefix patterns and merges
// their posting lists with a per-document accumulator (§4.2(b)).
func (idx *Index) selectShortQuery(query string, tok *Tokenizer, k int) *CandidateResult {
	res := newCandidateResult(idx)
	accum := make(map[int]float64)

	for _, size := range tok.cfg.NGramSizes {
		padLen := size - len([]rune(query))
		if padLen < 0 {
			continue
		}
		pattern := string(tok.cfg.StartPad) + query
		if len(pattern) > size {
			pattern = pattern[:size]
		}

		termIDs, _ := idx.Prefix.TermIDsWithPrefix(pattern, maxPrefixTermsPerPattern)
		exact := make(map[int]bool, len(termIDs))
		for _, tid := range termIDs {
			exact[tid] = true
		}

		for _, tid := range termIDs {
			term := idx.TermsByID[tid]
			for _, p := range term.Postings {
				accum[p.InternalID] += float64(p.Weight) * shortQueryExactWeight
			}
		}

		if len(termIDs) == 0 {
			// Fuzzy fallback: character/word-boundary overlap.
			for _, doc := range idx.Documents {
				if doc.Deleted {
					continue
				}
				overlap := charOverlap(query, doc.Text())
				if overlap <= 0 {
					continue
				}
				weight := shortQueryFuzzyChar
				if wordBoundaryOverlap(query, doc.Text()) {
					weight = shortQueryFuzzyWord
				}
				accum[doc.InternalID] += float64(overlap) * weight
			}
		}
	}

	maxScore := 0.0
	for _, v := range accum {
		if v > maxScore {
			maxScore = v
		}
	}

	for docID, score := range accum {
		res.Bitmap.Add(uint32(docID))
		normalized := score
		if maxScore > 0 {
			normalized = (score / maxScore) * 255
		}
		precedence := uint8(1)
		if score >= shortQueryExactWeight {
			precedence = 3
		}
		res.UpperBounds[docID] = float64(precedence)*1000 + normalized
	}

	if k > 0 {
		res.truncateToTopK(k)
	}
	return res
}

func charOverlap(query, text string) int {
	set := make(map[rune]struct{})
	for _, r := range toLowerASCIIAware(text) {
		set[r] = struct{}{}
	}
	count := 0
	for _, r := range toLowerASCIIAware(query) {
		if _, ok := set[r]; ok {
			count++
		}
	}
	return count
}

func wordBoundaryOverlap(query, text string) bool {
	for _, w := range tokenize(toLowerASCIIAware(text)) {
		if len(w) > 0 && len(query) > 0 && w[0] == toLowerASCIIAware(query)[0] {
			return true
		}
	}
	return false
}

// ── prefix precedence override ───────────────────────────────────────────

// tryPrefixPrecedence uses the positional-prefix structure directly when
// the query's leading characters have a non-empty, small-enough posting
// list (§4.2, "Prefix precedence override"). Returns nil when the override
// does not apply.
func (idx *Index) tryPrefixPrecedence(query string, k int) *CandidateResult {
	best := longestUsablePrefix(idx, query, k)
	if best == "" {
		return nil
	}

	ids, _ := idx.Prefix.TermIDsWithPrefix(best, 0)
	res := newCandidateResult(idx)
	termCount := len(ids)
	flatUpperBound := float64(termCount) * 10

	for _, tid := range ids {
		term := idx.TermsByID[tid]
		for _, p := range term.Postings {
			if !res.Bitmap.Contains(uint32(p.InternalID)) {
				res.Bitmap.Add(uint32(p.InternalID))
				res.UpperBounds[p.InternalID] = flatUpperBound
			}
		}
	}
	return res
}

// longestUsablePrefix prefers longer prefixes whose cardinality is <= 10*K.
func longestUsablePrefix(idx *Index, query string, k int) string {
	limit := 10 * k
	if limit <= 0 {
		limit = 10
	}
	runes := []rune(query)
	for length := len(runes); length >= 1; length-- {
		prefix := string(runes[:length])
		count := idx.Prefix.CountWithPrefix(prefix, limit+1)
		if count > 0 && count <= limit {
			return prefix
		}
	}
	return ""
}

// ── (c) normal query: tiered BM25-like AND/OR ────────────────────────────

// selectNormalQuery implements the tiered intersection cascade of §4.2(c).
func (idx *Index) selectNormalQuery(query string, tok *Tokenizer, k int) *CandidateResult {
	words := Analyze(query)
	if len(words) == 0 {
		return newCandidateResult(idx)
	}

	if idx.shouldUseDisjunctive(words) {
		return idx.selectDisjunctive(words, k)
	}

	type termInfo struct {
		text string
		idf  float64
		df   int
	}
	infos := make([]termInfo, 0, len(words))
	for _, w := range words {
		infos = append(infos, termInfo{text: w, idf: idx.IDF(w), df: idx.DocFreq(w)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].idf > infos[j].idf })

	res := newCandidateResult(idx)
	res.Terms = words

	// Tier 0: intersect postings of all query terms.
	allTerms := make([]string, len(infos))
	for i, in := range infos {
		allTerms[i] = in.text
	}
	tier0 := AllOf(idx, allTerms...)
	tier0UpperBound := 0.0
	for _, in := range infos {
		tier0UpperBound += in.idf * tierUpperBoundFactor
	}
	mergeBitmap(res, tier0, tier0UpperBound)

	if int(res.Bitmap.GetCardinality()) >= 2*k && k > 0 {
		return res
	}

	// Tier 1: intersect all but the lowest-IDF term.
	if len(infos) > 1 {
		without := make([]string, len(infos)-1)
		for i := 0; i < len(infos)-1; i++ {
			without[i] = infos[i].text
		}
		tier1 := AllOf(idx, without...)
		tier1UpperBound := tier0UpperBound - infos[len(infos)-1].idf*tierUpperBoundFactor
		mergeBitmap(res, tier1, tier1UpperBound)
	}

	// Tier 2: union of postings for up to the 2 most selective terms
	// (IDF > 0.3 * max IDF).
	if len(infos) > 0 {
		maxIDF := infos[0].idf
		selective := make([]string, 0, 2)
		for _, in := range infos {
			if in.idf > selectiveIDFFraction*maxIDF {
				selective = append(selective, in.text)
			}
			if len(selective) == 2 {
				break
			}
		}
		if len(selective) > 0 {
			tier2 := AnyOf(idx, selective...)
			tier2UpperBound := 0.0
			for _, s := range selective {
				tier2UpperBound += idx.IDF(s) * tierUpperBoundFactor
			}
			mergeBitmap(res, tier2, tier2UpperBound)
		}
	}

	return res
}

// shouldUseDisjunctive applies §4.2(c)'s disjunctive-mode triggers: an
// absent term, a very rare term (df < 10), or a single-term query.
func (idx *Index) shouldUseDisjunctive(words []string) bool {
	if len(words) <= 1 {
		return true
	}
	for _, w := range words {
		df := idx.DocFreq(w)
		if df == 0 || df < rareTermDocFreqThreshold {
			return true
		}
	}
	return false
}

// selectDisjunctive ORs per-term postings, summing per-doc upper bounds.
func (idx *Index) selectDisjunctive(words []string, k int) *CandidateResult {
	res := newCandidateResult(idx)
	res.Terms = words

	for _, w := range words {
		idf := idx.IDF(w)
		t, ok := idx.TermsByText[w]
		if !ok {
			continue
		}
		for _, p := range t.Postings {
			if !res.Bitmap.Contains(uint32(p.InternalID)) {
				res.Bitmap.Add(uint32(p.InternalID))
			}
			res.UpperBounds[p.InternalID] += idf * tierUpperBoundFactor
		}
	}

	if k > 0 {
		res.truncateToTopK(k)
	}
	return res
}

func mergeBitmap(res *CandidateResult, bm *roaring.Bitmap, upperBound float64) {
	it := bm.Iterator()
	for it.HasNext() {
		id := it.Next()
		if !res.Bitmap.Contains(id) {
			res.Bitmap.Add(id)
		}
		if upperBound > res.UpperBounds[id] {
			res.UpperBounds[id] = upperBound
		}
	}
}

// truncateToTopK keeps only the k candidates with the highest upper bound,
// used by the branches that don't already short-circuit via tiering.
func (res *CandidateResult) truncateToTopK(k int) {
	if int(res.Bitmap.GetCardinality()) <= k {
		return
	}
	type scored struct {
		id    uint32
		bound float64
	}
	all := make([]scored, 0, res.Bitmap.GetCardinality())
	it := res.Bitmap.Iterator()
	for it.HasNext() {
		id := it.Next()
		all = append(all, scored{id, res.UpperBounds[id]})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].bound > all[j].bound })
	if len(all) > k {
		all = all[:k]
	}
	newBitmap := roaring.New()
	for _, s := range all {
		newBitmap.Add(s.id)
	}
	res.Bitmap = newBitmap
}
