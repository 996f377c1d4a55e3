package infidex

import (
	"log/slog"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH PIPELINE (orchestrator, §4.6)
// ═══════════════════════════════════════════════════════════════════════════════
// Engine ties every subsystem together: Candidate Selector → Top-K Backbone
// Scoring → segment consolidation → coverage eligibility → Coverage Engine
// → Fusion Scorer → consolidation → truncation → filter/boost/sort →
// fallback. Stage 1 alone already generalizes the single-stage BM25 query
// path used elsewhere in this package; this orchestrator composes that with
// the stage-2/fusion/segment pieces per §4.6's numbered flow.
// ═══════════════════════════════════════════════════════════════════════════════

// Query is the external per-search request (§6).
type Query struct {
	Text             string
	MaxResults       int
	TimeoutMS        int
	EnableCoverage   bool
	CoverageDepth    int
	EnableFacets     bool
	EnableBoost      bool
	RemoveDuplicates bool

	// Filter is a parsed filter AST, compiled (and cached) on demand.
	Filter Filter
	// CompiledFilterBytecode, if set, takes precedence over Filter: an
	// INFISCRIPT-V1 stream deserialized fresh for this search.
	CompiledFilterBytecode []byte

	Boosts        []Boost
	SortBy        string
	SortAscending bool
}

// NewQuery returns a Query with the §6 defaults applied.
func NewQuery(text string) Query {
	return Query{
		Text:             text,
		MaxResults:       10,
		TimeoutMS:        1000,
		EnableCoverage:   true,
		CoverageDepth:    500,
		RemoveDuplicates: true,
	}
}

// Result is the external per-search response (§6).
type Result struct {
	Records    ScoreArray
	Facets     map[string]map[string]int
	DidTimeOut bool
}

// Engine owns the read-only index plus every per-instance cache and
// configuration the pipeline consults (§5: "owned by the engine instance").
type Engine struct {
	idx *Index
	tok *Tokenizer
	cfg EngineConfig

	wordMatcher *WordMatcher
	idfCache    *idfCache
	filterCache *filterCache

	logger *slog.Logger
}

// NewEngine constructs an Engine over a built index.
func NewEngine(idx *Index, tok *Tokenizer, cfg EngineConfig) *Engine {
	return &Engine{
		idx:         idx,
		tok:         tok,
		cfg:         cfg,
		wordMatcher: NewWordMatcher(idx),
		idfCache:    newIDFCache(cfg.IDFCacheSize),
		filterCache: newFilterCache(),
		logger:      slog.Default(),
	}
}

// SetLogger overrides the engine's structured logger (default slog.Default()).
func (e *Engine) SetLogger(l *slog.Logger) { e.logger = l }

// scoredCandidate is the pipeline's internal per-candidate working record:
// a ScoreEntry plus the extra fields §4.6 step 8's truncation rule needs
// (word hit count, LCS) that don't belong on the externally-visible
// ScoreEntry.
type scoredCandidate struct {
	entry    ScoreEntry
	wordHits int
	lcs      int
}

// clampQuery applies §7's silent-clamp policy.
func clampQuery(q Query) Query {
	if q.TimeoutMS < 0 {
		q.TimeoutMS = 0
	}
	if q.TimeoutMS > 10000 {
		q.TimeoutMS = 10000
	}
	if q.MaxResults < 1 {
		q.MaxResults = 0
	}
	if q.CoverageDepth <= 0 {
		q.CoverageDepth = 500
	}
	return q
}

// Search runs the full §4.6 pipeline for one query.
func (e *Engine) Search(q Query) (Result, error) {
	start := time.Now()
	q = clampQuery(q)

	// Step 1: reject empty/whitespace input.
	text := strings.TrimSpace(q.Text)
	if text == "" || q.MaxResults == 0 {
		return Result{}, nil
	}

	// Step 2: normalize.
	norm := e.tok.Normalize(text)
	if norm == "" {
		return Result{}, nil
	}

	deadline := time.Duration(q.TimeoutMS) * time.Millisecond
	elapsed := func() bool { return deadline > 0 && time.Since(start) > deadline }

	// Step 3: Stage 1 — candidate selection + backbone scoring.
	cand := e.idx.SelectCandidates(norm, e.tok, q.MaxResults)
	terms := cand.Terms
	if len(terms) == 0 {
		terms = Analyze(norm)
	}
	candidateIDs := bitmapToSlice(cand.Bitmap)
	backboneFanout := maxInt(q.MaxResults*4, q.CoverageDepth)
	backbone := e.idx.RankBM25(candidateIDs, terms, e.cfg.BM25, backboneFanout)

	maxBackbone := 0.0
	for _, m := range backbone {
		if m.Score > maxBackbone {
			maxBackbone = m.Score
		}
	}

	stage1 := make(ScoreArray, 0, len(backbone))
	order := 0
	for _, m := range backbone {
		doc := e.idx.Documents[m.InternalID]
		semantic := uint8(clamp01(NormalizeBM25(m.Score, maxBackbone)) * 255)
		stage1 = append(stage1, NewScoreEntry(doc.Key, packScore(0, semantic), 0, doc.Segment, order))
		order++
	}

	// Step 4: consolidate segments for possible fallback.
	stage1Results, _ := ConsolidateSegments(stage1)
	stage1Results = GetTopK(stage1Results, q.MaxResults)

	didTimeOut := elapsed()
	if didTimeOut {
		return e.finalize(stage1Results, q, true)
	}

	// Step 5: coverage eligibility.
	if !q.EnableCoverage {
		return e.finalize(stage1Results, q, false)
	}
	runes := []rune(norm)
	if len(runes) <= 3 && !containsAnyRune(norm, e.tok.Delimiters()) {
		prefixCount := e.idx.Prefix.CountWithPrefix(norm, 501)
		if prefixCount > 500 || len(stage1Results) >= q.MaxResults {
			return e.finalize(stage1Results, q, false)
		}
	} else if len(runes) < e.tok.cfg.SmallestNGram() {
		return e.finalize(stage1Results, q, false)
	}

	e.logger.Debug("infidex: entering coverage stage", "query", norm, "stage1_candidates", len(backbone))

	// Step 6: stage 2.
	depth := q.CoverageDepth
	topBackbone := backbone
	if len(topBackbone) > depth {
		topBackbone = topBackbone[:depth]
	}

	minWordSize := e.cfg.Analyzer.MinTokenLength
	prescreen := e.prescreenBitmap(norm, minWordSize)

	selected := make([]int, 0, depth)
	visited := newScratchBitset(len(e.idx.Documents) + 1)
	for _, m := range topBackbone {
		if len(selected) >= depth {
			break
		}
		if prescreen != nil && !prescreen.Contains(uint32(m.InternalID)) {
			continue
		}
		selected = append(selected, m.InternalID)
		visited.set(m.InternalID)
	}
	if len(selected) < depth {
		for _, id := range e.wordMatcher.Match(norm, minWordSize) {
			if len(selected) >= depth {
				break
			}
			if visited.test(id) {
				continue
			}
			selected = append(selected, id)
			visited.set(id)
		}
	}

	qTokens := tokenize(norm)
	idfLookup := e.idfLookup(qTokens)

	// Record LCS and word-hit counts in a 2-row scratch buffer keyed by
	// each candidate's dense position in `selected` (§4.6 step 6). Nothing
	// later in the search reads these rows back.
	arena := NewScratchArena(2 * len(selected))
	lcsRow := arena.Row(len(selected))
	wordHitsRow := arena.Row(len(selected))
	defer arena.Reset()

	stage2 := make([]scoredCandidate, 0, len(selected))
	for i, internalID := range selected {
		if i%64 == 0 && elapsed() {
			didTimeOut = true
			break
		}
		if internalID < 0 || internalID >= len(e.idx.Documents) {
			continue
		}
		doc := e.idx.Documents[internalID]
		if doc.Deleted {
			continue
		}
		docText := e.bestSegmentText(doc)
		lcs := LCSWithTolerance(norm, docText)
		lcsRow[i] = float64(lcs)
		cf := ComputeCoverage(CoverageInput{
			Query:       norm,
			DocText:     docText,
			LCS:         lcs,
			QueryTokens: qTokens,
			MinWordSize: minWordSize,
		}, idfLookup)
		wordHitsRow[i] = float64(cf.WordHits)

		bm25 := bm25ForCandidate(backbone, internalID, maxBackbone)
		score, tb := Fuse(FusionInput{
			QueryTokens:   qTokens,
			DocTokens:     tokenize(strings.ToLower(docText)),
			Coverage:      cf,
			BackboneBM25:  bm25,
			MinStemLength: e.tok.cfg.SmallestNGram(),
			Delimiters:    e.tok.Delimiters(),
			AnchorStemLen: e.cfg.AnchorStemLen,
		})

		stage2 = append(stage2, scoredCandidate{
			entry:    NewScoreEntry(doc.Key, score, tb, doc.Segment, len(stage2)),
			wordHits: cf.WordHits,
			lcs:      lcs,
		})
	}

	// Step 7: consolidate segments across final scores, top-K by coverage depth.
	stage2Entries := make(ScoreArray, len(stage2))
	byKey := make(map[int64]scoredCandidate, len(stage2))
	for i, c := range stage2 {
		stage2Entries[i] = c.entry
		if prev, ok := byKey[c.entry.DocKey]; !ok || c.entry.Less(prev.entry) {
			byKey[c.entry.DocKey] = c
		}
	}
	consolidated, bestSegments := ConsolidateSegments(stage2Entries)
	consolidated = GetTopK(consolidated, depth)
	finalCandidates := make([]scoredCandidate, 0, len(consolidated))
	for _, e2 := range consolidated {
		c := byKey[e2.DocKey]
		c.entry.Segment = bestSegments[e2.DocKey]
		finalCandidates = append(finalCandidates, c)
	}

	// Step 8: truncation.
	truncated := truncateCandidates(finalCandidates, e.cfg.MinWordHits, e.cfg.TruncationScore, q.MaxResults)

	// Step 10: fallback if stage 2 produced nothing but stage 1 had candidates.
	if len(truncated) == 0 && len(stage1Results) > 0 {
		return e.finalize(stage1Results, q, didTimeOut)
	}

	truncatedEntries := make(ScoreArray, len(truncated))
	for i, c := range truncated {
		truncatedEntries[i] = c.entry
	}
	return e.finalize(truncatedEntries, q, didTimeOut)
}

// truncateCandidates implements §4.6 step 8: walking from the tail, keep
// every candidate up to (and including) the last one for which word_hits,
// LCS, or raw score clears the survival bar, then cap at max_results.
func truncateCandidates(cands []scoredCandidate, minWordHits int, truncScore uint8, maxResults int) []scoredCandidate {
	survivorIdx := -1
	for i := len(cands) - 1; i >= 0; i-- {
		c := cands[i]
		if c.wordHits >= minWordHits || c.lcs > 0 || c.entry.Score >= uint16(truncScore) {
			survivorIdx = i
			break
		}
	}
	keep := 0
	if survivorIdx >= 0 {
		keep = survivorIdx + 1
	}
	if keep > maxResults {
		keep = maxResults
	}
	return cands[:keep]
}

// finalize applies filter → boosts → sort → dedup → max_results truncation
// → facets, per §4.6 steps 9 and the tail of step 6/7's flow.
func (e *Engine) finalize(entries ScoreArray, q Query, didTimeOut bool) (Result, error) {
	out := make(ScoreArray, len(entries))
	copy(out, entries)
	sortScoreEntries(out)

	filter, err := e.resolveFilter(q)
	if err != nil {
		return Result{}, err
	}
	if filter != nil {
		vm := NewFilterVM()
		kept := out[:0:0]
		for _, ent := range out {
			doc := e.docForEntry(ent)
			if doc == nil {
				continue
			}
			ok, verr := vm.Execute(filter, doc)
			if verr != nil {
				return Result{}, verr
			}
			if ok {
				kept = append(kept, ent)
			}
		}
		out = kept
	}

	if q.EnableBoost && len(q.Boosts) > 0 {
		out = e.applyBoosts(out, q.Boosts)
		sortScoreEntries(out)
	}

	if q.SortBy != "" {
		out = e.applySort(out, q.SortBy, q.SortAscending)
	}

	if q.RemoveDuplicates {
		out = dedupeByKey(out)
	}

	if len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}

	var facets map[string]map[string]int
	if q.EnableFacets {
		facets = e.computeFacets(out)
	}

	return Result{Records: out, Facets: facets, DidTimeOut: didTimeOut}, nil
}

func (e *Engine) resolveFilter(q Query) (*CompiledFilter, error) {
	if q.CompiledFilterBytecode != nil {
		return DeserializeFilter(q.CompiledFilterBytecode)
	}
	if q.Filter != nil {
		return e.filterCache.getOrCompile(q.Filter), nil
	}
	return nil, nil
}

func (e *Engine) docForEntry(ent ScoreEntry) *Document {
	docs, ok := e.idx.ByKey[ent.DocKey]
	if !ok {
		return nil
	}
	for _, d := range docs {
		if d.Segment == ent.Segment {
			return d
		}
	}
	if len(docs) > 0 {
		return docs[0]
	}
	return nil
}

// bestSegmentText returns the text representative used for coverage
// scoring: the first-segment document's FullText when present (a
// segmented document's original, unchunked text, §3), else the segment's
// own indexable text.
func (e *Engine) bestSegmentText(doc *Document) string {
	if doc.FullText != "" {
		return strings.ToLower(doc.FullText)
	}
	return strings.ToLower(doc.Text())
}

// prescreenBitmap computes the union of posting lists for every query word
// ≥ minWordSize, per §4.6 step 6. Returns nil (skip pre-screen) if any
// qualifying word is absent from the index or none qualify.
func (e *Engine) prescreenBitmap(norm string, minWordSize int) *roaring.Bitmap {
	words := e.tok.WordTokensForCoverage(norm, minWordSize)
	if len(words) == 0 {
		return nil
	}
	union := roaring.New()
	for _, w := range words {
		bm, ok := e.idx.DocBitmaps[w]
		if !ok {
			return nil
		}
		union = roaring.Or(union, bm)
	}
	return union
}

// idfLookup returns a per-token IDF function for qTokens, memoized via the
// engine's idfCache (§5).
func (e *Engine) idfLookup(qTokens []string) func(string) float64 {
	key := strings.Join(qTokens, " ")
	var vals []float64
	if cached, ok := e.idfCache.get(key); ok {
		vals = cached
	} else {
		vals = make([]float64, len(qTokens))
		for i, t := range qTokens {
			vals[i] = e.idx.IDF(t)
		}
		e.idfCache.put(key, vals)
	}
	m := make(map[string]float64, len(qTokens))
	for i, t := range qTokens {
		if i < len(vals) {
			m[t] = vals[i]
		}
	}
	return func(t string) float64 {
		if v, ok := m[t]; ok {
			return v
		}
		return e.idx.IDF(t)
	}
}

func bm25ForCandidate(backbone []BackboneMatch, internalID int, maxBackbone float64) float64 {
	for _, m := range backbone {
		if m.InternalID == internalID {
			return NormalizeBM25(m.Score, maxBackbone)
		}
	}
	return 0
}

// applyBoosts nudges each entry's semantic byte up when its document's
// boosted field equals the boost value, clamping at 255.
func (e *Engine) applyBoosts(entries ScoreArray, boosts []Boost) ScoreArray {
	for i, ent := range entries {
		doc := e.docForEntry(ent)
		if doc == nil {
			continue
		}
		bump := 0
		for _, b := range boosts {
			f, ok := doc.Fields[b.Field]
			if !ok {
				continue
			}
			if compareValuesOp(f.Value, b.Value, opEQ) {
				bump += int(b.Amount)
			}
		}
		if bump == 0 {
			continue
		}
		semantic := int(ent.Semantic()) + bump
		if semantic > 255 {
			semantic = 255
		}
		entries[i].Score = packScore(ent.Precedence(), uint8(semantic))
	}
	return entries
}

// applySort reorders entries by a document field value instead of score,
// per the external Query's sort_by/sort_ascending (§6).
func (e *Engine) applySort(entries ScoreArray, field string, ascending bool) ScoreArray {
	out := make(ScoreArray, len(entries))
	copy(out, entries)
	less := func(i, j int) bool {
		vi := e.fieldValueForSort(out[i], field)
		vj := e.fieldValueForSort(out[j], field)
		if ascending {
			return compareValuesOp(vi, vj, opLT)
		}
		return compareValuesOp(vi, vj, opGT)
	}
	sortStableBy(out, less)
	return out
}

func (e *Engine) fieldValueForSort(ent ScoreEntry, field string) FieldValue {
	doc := e.docForEntry(ent)
	if doc == nil {
		return NullValue()
	}
	return fieldValueOf(doc, field)
}

func sortStableBy(entries ScoreArray, less func(i, j int) bool) {
	// insertion sort: entry counts per search are small (bounded by
	// max_results after truncation), so this avoids pulling in sort.Slice's
	// reflection-based comparator for a handful of elements.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// dedupeByKey drops any repeated document key, keeping the first (highest
// ranked) occurrence — a safeguard on top of segment consolidation for
// callers that set remove_duplicates (§6).
func dedupeByKey(entries ScoreArray) ScoreArray {
	seen := make(map[int64]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e.DocKey]; ok {
			continue
		}
		seen[e.DocKey] = struct{}{}
		out = append(out, e)
	}
	return out
}

// computeFacets tallies facetable field values across the final result set.
func (e *Engine) computeFacets(entries ScoreArray) map[string]map[string]int {
	facets := make(map[string]map[string]int)
	for _, ent := range entries {
		doc := e.docForEntry(ent)
		if doc == nil {
			continue
		}
		for name, f := range doc.Fields {
			if !f.Facetable {
				continue
			}
			repr := asString(f.Value)
			if facets[name] == nil {
				facets[name] = make(map[string]int)
			}
			facets[name][repr]++
		}
	}
	return facets
}

func containsAnyRune(s string, set []rune) bool {
	for _, r := range s {
		for _, d := range set {
			if r == d {
				return true
			}
		}
	}
	return false
}

func bitmapToSlice(bm *roaring.Bitmap) []int {
	if bm == nil {
		return nil
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

