package infidex

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COVERAGE ENGINE (stage 2, §4.4)
// ═══════════════════════════════════════════════════════════════════════════════
// A multi-algorithm lexical matcher: whole-word, joined-word, prefix/suffix
// (exact + fuzzy), and fuzzy whole-word sub-matchers, each consuming
// unmatched tokens from both sides and updating per-query-term state, in
// the multi-pass design §4.4 requires. Damerau-Levenshtein distance is implemented
// directly: no library in the retrieved corpus provides it (see DESIGN.md).
// ═══════════════════════════════════════════════════════════════════════════════

var coverageDebug = os.Getenv("INFIDEX_COVERAGE_DEBUG") == "1"

func coverageTracef(format string, args ...interface{}) {
	if !coverageDebug {
		return
	}
	fmt.Fprintf(os.Stderr, "[coverage] "+format+"\n", args...)
}

// docToken is one word token from either side of a coverage comparison.
type docToken struct {
	Text       string
	ByteOffset int
	Length     int
	Position   int
	Hash       uint64
}

func buildTokens(text string) []docToken {
	lower := strings.ToLower(text)
	var out []docToken
	pos := 0
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := lower[start:end]
		out = append(out, docToken{Text: tok, ByteOffset: start, Length: len(tok), Position: pos, Hash: fnv1a(tok)})
		pos++
		start = -1
	}
	for i, r := range lower {
		if isWordByte(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(lower))
	return out
}

func isWordByte(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// termState tracks per-query-term matching state as sub-matchers run.
type termState struct {
	matchedChars   int
	hasWhole       bool
	hasJoined      bool
	hasPrefix      bool
	firstMatchPos  int
	matched        bool
	maxChars       int
}

// CoverageInput is the Coverage Engine's input, per §4.4.
type CoverageInput struct {
	Query          string
	DocText        string
	LCS            int  // LCS-with-tolerance value over lowercased query/doc
	QueryTokens    []string
	MinWordSize    int
}

// ComputeCoverage runs the full multi-algorithm pass and returns
// CoverageFeatures for one (query, document) pair (§4.4).
func ComputeCoverage(in CoverageInput, idf func(string) float64) CoverageFeatures {
	qTokens := in.QueryTokens
	if len(qTokens) == 0 {
		qTokens = tokenize(strings.ToLower(in.Query))
	}
	docToks := buildTokens(in.DocText)
	dTokens := make([]string, len(docToks))
	for i, t := range docToks {
		dTokens[i] = t.Text
	}

	qActive := make([]bool, len(qTokens))
	dActive := make([]bool, len(dTokens))
	for i := range qActive {
		qActive[i] = true
	}
	for i := range dActive {
		dActive[i] = true
	}

	states := make([]termState, len(qTokens))
	for i, t := range qTokens {
		states[i].maxChars = len(t)
		states[i].firstMatchPos = -1
	}

	var penalty int

	runWholeWord(qTokens, dTokens, qActive, dActive, states, &penalty)
	runJoinedWord(qTokens, dTokens, qActive, dActive, states)
	runPrefixSuffix(qTokens, dTokens, qActive, dActive, states)
	runFuzzyWholeWord(qTokens, dTokens, qActive, dActive, states, in.MinWordSize)

	return aggregateCoverage(qTokens, dTokens, states, in, idf, penalty)
}

// ── whole-word ───────────────────────────────────────────────────────────

func runWholeWord(qTokens, dTokens []string, qActive, dActive []bool, states []termState, penalty *int) {
	for qi, qt := range qTokens {
		if !qActive[qi] {
			continue
		}
		qhash := fnv1a(qt)
		for di, dt := range dTokens {
			if !dActive[di] {
				continue
			}
			if len(dt) != len(qt) || fnv1a(dt) != qhash {
				continue
			}
			if dt != qt {
				continue
			}
			states[qi].matchedChars += len(qt)
			states[qi].hasWhole = true
			states[qi].matched = true
			if states[qi].firstMatchPos < 0 {
				states[qi].firstMatchPos = di
			}
			if len(qTokens) >= 2 && qi != len(qTokens)-1 {
				states[qi].matchedChars++
			}
			if qi < len(dTokens) && dTokens[qi] != qt {
				*penalty++
			}
			qActive[qi] = false
			dActive[di] = false
			break
		}
	}
}

// ── joined-word ──────────────────────────────────────────────────────────

func runJoinedWord(qTokens, dTokens []string, qActive, dActive []bool, states []termState) {
	for qi := 0; qi < len(qTokens)-1; qi++ {
		if !qActive[qi] || !qActive[qi+1] {
			continue
		}
		a, b := qTokens[qi], qTokens[qi+1]
		wantLen := len(a) + len(b)
		for di, dt := range dTokens {
			if !dActive[di] || len(dt) != wantLen {
				continue
			}
			if strings.HasPrefix(dt, a) && strings.HasSuffix(dt, b) {
				states[qi].matchedChars += wantLen
				states[qi].hasPrefix = true
				states[qi+1].hasPrefix = true
				states[qi].matched = true
				states[qi+1].matched = true
				qActive[qi] = false
				qActive[qi+1] = false
				dActive[di] = false
				break
			}
		}
	}

	// symmetric: consecutive doc tokens joined inside one query token.
	for qi, qt := range qTokens {
		if !qActive[qi] {
			continue
		}
		for di := 0; di < len(dTokens)-1; di++ {
			if !dActive[di] || !dActive[di+1] {
				continue
			}
			joined := dTokens[di] + dTokens[di+1]
			if joined == qt {
				states[qi].matchedChars += len(qt)
				states[qi].hasJoined = true
				states[qi].matched = true
				qActive[qi] = false
				dActive[di] = false
				dActive[di+1] = false
				break
			}
		}
	}
}

// ── prefix/suffix (exact + fuzzy) ────────────────────────────────────────

func runPrefixSuffix(qTokens, dTokens []string, qActive, dActive []bool, states []termState) {
	order := sortedIndicesByLenDesc(qTokens)
	for _, qi := range order {
		if !qActive[qi] {
			continue
		}
		qt := qTokens[qi]
		qlen := len(qt)

		bestDi, bestScore := -1, -1.0
		for di, dt := range dTokens {
			if !dActive[di] {
				continue
			}
			dlen := len(dt)
			var score float64
			switch {
			case qlen < dlen && strings.HasPrefix(dt, qt):
				score = float64(qlen)
			case strings.HasSuffix(dt, qt):
				score = math.Max(1, float64(qlen)/2)
			case qlen >= 4 && strings.Contains(dt, qt):
				score = float64(qlen) * 0.6
			case qlen > dlen && strings.HasSuffix(qt, dt):
				score = float64(dlen)
			default:
				continue
			}
			if score > bestScore {
				bestScore = score
				bestDi = di
			}
		}

		if bestDi >= 0 {
			states[qi].matchedChars += int(bestScore)
			states[qi].hasPrefix = true
			states[qi].matched = true
			qActive[qi] = false
			dActive[bestDi] = false
			continue
		}

		// Fuzzy prefix.
		if qlen >= 4 || (qlen >= 2 && qi == len(qTokens)-1) {
			for di, dt := range dTokens {
				if !dActive[di] {
					continue
				}
				for _, delta := range []int{0, -1, 1} {
					take := qlen + delta
					if take <= 0 || take > len(dt) {
						continue
					}
					candidate := dt[:take]
					dist := DamerauLevenshtein(qt, candidate)
					if dist <= 1 {
						matched := take - dist
						score := math.Max(0.1, float64(matched)*0.5)
						states[qi].matchedChars += int(score)
						states[qi].hasPrefix = true
						states[qi].matched = true
						qActive[qi] = false
						dActive[di] = false
						break
					}
				}
				if !qActive[qi] {
					break
				}
			}
		}
	}
}

func sortedIndicesByLenDesc(tokens []string) []int {
	idxs := make([]int, len(tokens))
	for i := range idxs {
		idxs[i] = i
	}
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && len(tokens[idxs[j-1]]) < len(tokens[idxs[j]]); j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
	return idxs
}

// ── fuzzy whole-word ─────────────────────────────────────────────────────

func runFuzzyWholeWord(qTokens, dTokens []string, qActive, dActive []bool, states []termState, minWordSize int) {
	for qi, qt := range qTokens {
		if !qActive[qi] {
			continue
		}
		maxD := maxEditDistance(len(qt))
		for d := 1; d <= maxD; d++ {
			if !qActive[qi] {
				break
			}
			for di, dt := range dTokens {
				if !dActive[di] {
					continue
				}
				if len(dt) < minWordSize || len(dt) > min(63, maxD*10+len(qt)+5) {
					continue
				}
				if DamerauLevenshtein(qt, dt) <= d {
					states[qi].matchedChars += len(qt) - d
					states[qi].matched = true
					qActive[qi] = false
					dActive[di] = false
					break
				}
			}
		}
	}
}

// maxEditDistance computes the maximum allowed edit distance for a token of
// length L via a Binomial(L, p=0.04) error model with α=0.01 tail (§4.4),
// at least 1 for any non-empty token.
func maxEditDistance(length int) int {
	if length <= 0 {
		return 0
	}
	const p = 0.04
	const alpha = 0.01
	// find smallest d such that P(X > d) <= alpha for X ~ Binomial(length, p)
	cumulative := 0.0
	for d := 0; d <= length; d++ {
		cumulative += binomialPMF(length, d, p)
		if 1-cumulative <= alpha {
			if d == 0 {
				return 1
			}
			return d
		}
	}
	if length < 1 {
		return 1
	}
	return length
}

func binomialPMF(n, k int, p float64) float64 {
	return binomialCoeff(n, k) * math.Pow(p, float64(k)) * math.Pow(1-p, float64(n-k))
}

func binomialCoeff(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	result := 1.0
	for i := 0; i < k; i++ {
		result *= float64(n-i) / float64(i+1)
	}
	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ── aggregation ──────────────────────────────────────────────────────────

func aggregateCoverage(qTokens, dTokens []string, states []termState, in CoverageInput, idf func(string) float64, orderPenalty int) CoverageFeatures {
	var whole, joined, fuzzy, prefixSuffix int
	matchedAny, matchedFully, matchedStrictWhole, matchedPrefix := 0, 0, 0, 0
	firstMatchIdx := -1
	var sumCi float64
	coverageArr := make([]float64, len(qTokens))
	idfArr := make([]float64, len(qTokens))

	for i, st := range states {
		if st.hasWhole {
			whole += st.matchedChars
			matchedStrictWhole++
		} else if st.hasJoined {
			joined += st.matchedChars
		} else if st.hasPrefix {
			prefixSuffix += st.matchedChars
			matchedPrefix++
		} else if st.matched {
			fuzzy += st.matchedChars
		}
		if st.matched {
			matchedAny++
			if st.matchedChars >= st.maxChars {
				matchedFully++
			}
			if firstMatchIdx < 0 || st.firstMatchPos < firstMatchIdx {
				if st.firstMatchPos >= 0 {
					firstMatchIdx = st.firstMatchPos
				}
			}
		}

		ci := 0.0
		if st.maxChars > 0 {
			ci = math.Min(1, float64(st.matchedChars)/float64(st.maxChars))
		}
		coverageArr[i] = ci
		sumCi += ci

		if i < len(qTokens) {
			idfArr[i] = idf(qTokens[i])
		}
	}

	combined := float64(whole + joined + fuzzy + prefixSuffix)
	combined -= float64(orderPenalty)

	qLen := len([]rune(in.Query))
	if combined <= 0 && in.LCS > 2 {
		combined = float64(in.LCS - 2)
	}

	coverageByte := uint8(0)
	if qLen > 0 && combined > 0 {
		ratio := combined / float64(qLen) * 255
		if ratio > 255 {
			ratio = 255
		}
		if ratio < 0 {
			ratio = 0
		}
		coverageByte = uint8(ratio)
	}

	if len(qTokens) == 1 && qLen > 0 {
		lcsRatio := float64(in.LCS) / float64(qLen)
		if lcsRatio > sumCi {
			sumCi = lcsRatio
		}
	}

	var totalIDF, missingIDF, idfWeighted float64
	for i := range qTokens {
		totalIDF += idfArr[i]
		if !states[i].matched {
			missingIDF += idfArr[i]
		}
		idfWeighted += idfArr[i] * coverageArr[i]
	}
	if totalIDF > 0 {
		idfWeighted /= totalIDF
	}

	longestRun, suffixRun := computePrefixRuns(states)
	span := computeSpan(states)

	strictBeforeLast := 0
	for i := 0; i < len(states)-1; i++ {
		if states[i].hasWhole {
			strictBeforeLast++
		}
	}
	lastHasPrefix := len(states) > 0 && states[len(states)-1].hasPrefix

	lastTermIsTypeAhead := false
	if len(qTokens) > 0 && totalIDF > 0 {
		lastTermIsTypeAhead = idfArr[len(idfArr)-1]/totalIDF <= 1/float64(len(qTokens)+1)
	}

	if firstMatchIdx < 0 {
		firstMatchIdx = 0
	}

	coverageTracef("query=%q combined=%f coverageByte=%d matchedAny=%d", in.Query, combined, coverageByte, matchedAny)

	return CoverageFeatures{
		CoverageByte:           coverageByte,
		DistinctQueryTerms:     len(qTokens),
		MatchedAny:             matchedAny,
		MatchedFully:           matchedFully,
		MatchedStrictWhole:     matchedStrictWhole,
		MatchedPrefix:          matchedPrefix,
		FirstMatchTokenIndex:   firstMatchIdx,
		SumCoverageRatio:       sumCi,
		WordHits:               matchedAny,
		DocTokenCount:          len(dTokens),
		LongestPrefixRun:       longestRun,
		SuffixAlignedPrefixRun: suffixRun,
		SpanTokenCount:         span,
		StrictBeforeLastCount:  strictBeforeLast,
		LastTermHasPrefix:      lastHasPrefix,
		TermIDF:                idfArr,
		TermCoverage:           coverageArr,
		IDFWeightedCoverage:    idfWeighted,
		TotalIDFMass:           totalIDF,
		MissingIDFMass:         missingIDF,
		LastTermIsTypeAhead:    lastTermIsTypeAhead,
	}
}


func computePrefixRuns(states []termState) (longest, suffixAligned int) {
	run := 0
	for _, st := range states {
		if st.hasPrefix && st.matchedChars > 0 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	run = 0
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].hasPrefix && states[i].matchedChars > 0 {
			run++
			if run > suffixAligned {
				suffixAligned = run
			}
		} else {
			break
		}
	}
	return
}

func computeSpan(states []termState) int {
	min, max := -1, -1
	count := 0
	for _, st := range states {
		if !st.matched || st.firstMatchPos < 0 {
			continue
		}
		count++
		if min < 0 || st.firstMatchPos < min {
			min = st.firstMatchPos
		}
		if st.firstMatchPos > max {
			max = st.firstMatchPos
		}
	}
	if count < 2 {
		return 0
	}
	return max - min + 1
}
