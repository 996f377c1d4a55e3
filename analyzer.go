// ═══════════════════════════════════════════════════════════════════════════════
// TOKENIZER
// ═══════════════════════════════════════════════════════════════════════════════
// The tokenizer is the text-analysis front end consumed by the indexer and by
// the query pipeline. It exposes three operations:
//
//   tokenize_for_index(text)   → (n-gram text, field weight, position) tuples,
//                                 padded with start/stop markers per n-gram size
//   tokenize_for_search(text)  → the same, without stop-padding
//   word_tokens_for_coverage   → distinct whole words ≥ min size, for the
//                                 Coverage Engine's lexical matchers
//
// ANALYSIS PIPELINE (word path):
// -------------------------------
//  1. Tokenization      → Split text into words
//  2. Lowercasing       → Normalize case ("Quick" → "quick")
//  3. Stop word removal → Remove common words ("the", "a", etc.)
//  4. Length filtering  → Remove very short tokens (< 2 chars)
//  5. Stemming          → Reduce words to root form ("running" → "run")
//
// N-GRAM PIPELINE (index path):
// ------------------------------
// Word tokens are additionally windowed into character n-grams of each
// configured size, padded on both ends with a start-pad / stop-pad rune so
// that short query prefixes line up with the same n-gram boundaries used at
// index time (tokenize_for_search omits the stop-pad so a partially typed
// query still produces a matchable prefix n-gram).
//
// WHY THIS MATTERS:
// -----------------
// Proper analysis ensures:
// - "Running" matches "run", "runs"
// - "The dog" matches "DOG" (case insensitive)
// - A half-typed "qui" still produces the n-gram prefixes needed to find
//   "quick" before the user finishes typing
// ═══════════════════════════════════════════════════════════════════════════════

package infidex

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// AnalyzerConfig holds configuration options for text analysis.
type AnalyzerConfig struct {
	MinTokenLength  int   // Minimum word-token length to keep (default: 2)
	EnableStemming  bool  // Whether to apply stemming (default: true)
	EnableStopwords bool  // Whether to remove stopwords (default: true)
	NGramSizes      []int // configured n-gram sizes, ascending (default: [3])
	StartPad        rune  // start-pad marker (default 0x01)
	StopPad         rune  // stop-pad marker (default 0x02)
	Delimiters      []rune
}

// DefaultConfig returns the standard analyzer configuration.
func DefaultConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinTokenLength:  2,
		EnableStemming:  true,
		EnableStopwords: true,
		NGramSizes:      []int{3},
		StartPad:        '\x01',
		StopPad:         '\x02',
		Delimiters:      []rune{' ', '\t', '\n', '-', '_', '.', ',', '/', '\\'},
	}
}

// SmallestNGram returns the smallest configured n-gram size, used throughout
// the pipeline (e.g. as the "short query" threshold in the Candidate
// Selector, §4.2(b), and as the stem-evidence minimum length in Fusion).
func (c AnalyzerConfig) SmallestNGram() int {
	min := c.NGramSizes[0]
	for _, n := range c.NGramSizes[1:] {
		if n < min {
			min = n
		}
	}
	return min
}

// NGramToken is one tuple produced by tokenize_for_index / tokenize_for_search.
type NGramToken struct {
	Text     string
	Weight   WeightClass
	Position int
}

// Tokenizer is the consumed contract of §4.1: produces word tokens and
// character n-grams of the configured sizes, with case-insensitive matching
// throughout. Words are split on every rune that is not a letter or digit;
// the configured Delimiters are not used for splitting (Delimiters() only
// reports them).
type Tokenizer struct {
	cfg AnalyzerConfig
}

func NewTokenizer(cfg AnalyzerConfig) *Tokenizer {
	return &Tokenizer{cfg: cfg}
}

// Normalize applies the tokenizer's case-folding/whitespace normalizer. It
// is idempotent: normalizing already-normalized text is a no-op (§8).
func (t *Tokenizer) Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// TokenizeForIndex produces padded n-gram tuples for every configured size.
func (t *Tokenizer) TokenizeForIndex(text string, weight WeightClass) []NGramToken {
	return t.tokenizeNGrams(text, weight, true)
}

// TokenizeForSearch is identical but omits stop-padding, so a partially
// typed query still yields a matchable prefix n-gram.
func (t *Tokenizer) TokenizeForSearch(text string, weight WeightClass) []NGramToken {
	return t.tokenizeNGrams(text, weight, false)
}

func (t *Tokenizer) tokenizeNGrams(text string, weight WeightClass, stopPad bool) []NGramToken {
	norm := t.Normalize(text)
	words := tokenize(norm)
	var out []NGramToken
	pos := 0
	for _, w := range words {
		runes := []rune(w)
		for _, size := range t.cfg.NGramSizes {
			padded := make([]rune, 0, len(runes)+2)
			padded = append(padded, t.cfg.StartPad)
			padded = append(padded, runes...)
			if stopPad {
				padded = append(padded, t.cfg.StopPad)
			}
			for i := 0; i+size <= len(padded); i++ {
				out = append(out, NGramToken{
					Text:     string(padded[i : i+size]),
					Weight:   weight,
					Position: pos,
				})
			}
		}
		pos++
	}
	return out
}

// WordTokensForCoverage returns the set of distinct whole words of at least
// minWordSize in text, split on non-letter/non-digit runes and lowercased,
// for the Coverage
// Engine's lexical sub-matchers.
func (t *Tokenizer) WordTokensForCoverage(text string, minWordSize int) []string {
	words := tokenize(t.Normalize(text))
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < minWordSize {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Delimiters returns the configured ordered delimiter character sequence.
func (t *Tokenizer) Delimiters() []rune { return t.cfg.Delimiters }

// NGramSizes returns the configured n-gram sizes.
func (t *Tokenizer) NGramSizes() []int { return t.cfg.NGramSizes }

// Analyze transforms raw text into stemmed/stopword-filtered word tokens
// using the default pipeline — the word-token path used for coverage
// matching and for the optional stemming-based "stem evidence" nudge in
// Fusion (§4.5).
func Analyze(text string) []string {
	return AnalyzeWithConfig(text, DefaultConfig())
}

// AnalyzeWithConfig transforms text using a custom configuration.
func AnalyzeWithConfig(text string, config AnalyzerConfig) []string {
	tokens := tokenize(text)
	tokens = lowercaseFilter(tokens)

	if config.EnableStopwords {
		tokens = stopwordFilter(tokens)
	}

	tokens = lengthFilter(tokens, config.MinTokenLength)

	if config.EnableStemming {
		tokens = stemmerFilter(tokens)
	}

	return tokens
}

// Stem exposes the Snowball stemmer directly, for the stem-evidence nudge
// that compares the stem of an unmatched query token against document
// tokens (§4.5).
func Stem(token string) string {
	return snowballeng.Stem(token, false)
}

// tokenize splits text into individual words.
//
// Uses Unicode-aware splitting: any non-letter and non-digit character is a
// delimiter.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// lowercaseFilter normalizes token casing.
func lowercaseFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = strings.ToLower(token)
	}
	return r
}

// stopwordFilter removes common English words that don't add search value.
func stopwordFilter(tokens []string) []string {
	r := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) {
			r = append(r, token)
		}
	}
	return r
}

// lengthFilter removes tokens shorter than minLength.
func lengthFilter(tokens []string, minLength int) []string {
	r := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) >= minLength {
			r = append(r, token)
		}
	}
	return r
}

// stemmerFilter reduces words to their root form via the Snowball (Porter2)
// stemmer.
func stemmerFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, token := range tokens {
		r[i] = snowballeng.Stem(token, false)
	}
	return r
}

// isStopword checks if a token is a common English stopword.
func isStopword(token string) bool {
	_, exists := englishStopwords[token]
	return exists
}

// englishStopwords contains common English words to exclude from indexing.
var englishStopwords = map[string]struct{}{
	"a":            {},
	"about":        {},
	"above":        {},
	"across":       {},
	"after":        {},
	"afterwards":   {},
	"again":        {},
	"against":      {},
	"all":          {},
	"almost":       {},
	"alone":        {},
	"along":        {},
	"already":      {},
	"also":         {},
	"although":     {},
	"always":       {},
	"am":           {},
	"among":        {},
	"amongst":      {},
	"amoungst":     {},
	"amount":       {},
	"an":           {},
	"and":          {},
	"another":      {},
	"any":          {},
	"anyhow":       {},
	"anyone":       {},
	"anything":     {},
	"anyway":       {},
	"anywhere":     {},
	"are":          {},
	"around":       {},
	"as":           {},
	"at":           {},
	"back":         {},
	"be":           {},
	"became":       {},
	"because":      {},
	"become":       {},
	"becomes":      {},
	"becoming":     {},
	"been":         {},
	"before":       {},
	"beforehand":   {},
	"behind":       {},
	"being":        {},
	"below":        {},
	"beside":       {},
	"besides":      {},
	"between":      {},
	"beyond":       {},
	"bill":         {},
	"both":         {},
	"bottom":       {},
	"but":          {},
	"by":           {},
	"call":         {},
	"can":          {},
	"cannot":       {},
	"cant":         {},
	"co":           {},
	"con":          {},
	"could":        {},
	"couldnt":      {},
	"cry":          {},
	"de":           {},
	"describe":     {},
	"detail":       {},
	"do":           {},
	"done":         {},
	"down":         {},
	"due":          {},
	"during":       {},
	"each":         {},
	"eg":           {},
	"eight":        {},
	"either":       {},
	"eleven":       {},
	"else":         {},
	"elsewhere":    {},
	"empty":        {},
	"enough":       {},
	"etc":          {},
	"even":         {},
	"ever":         {},
	"every":        {},
	"everyone":     {},
	"everything":   {},
	"everywhere":   {},
	"except":       {},
	"few":          {},
	"fifteen":      {},
	"fify":         {},
	"fill":         {},
	"find":         {},
	"fire":         {},
	"first":        {},
	"five":         {},
	"for":          {},
	"former":       {},
	"formerly":     {},
	"forty":        {},
	"found":        {},
	"four":         {},
	"from":         {},
	"front":        {},
	"full":         {},
	"further":      {},
	"get":          {},
	"give":         {},
	"go":           {},
	"had":          {},
	"has":          {},
	"hasnt":        {},
	"have":         {},
	"he":           {},
	"hence":        {},
	"her":          {},
	"here":         {},
	"hereafter":    {},
	"hereby":       {},
	"herein":       {},
	"hereupon":     {},
	"hers":         {},
	"herself":      {},
	"him":          {},
	"himself":      {},
	"his":          {},
	"how":          {},
	"however":      {},
	"hundred":      {},
	"ie":           {},
	"if":           {},
	"in":           {},
	"inc":          {},
	"indeed":       {},
	"interest":     {},
	"into":         {},
	"is":           {},
	"it":           {},
	"its":          {},
	"itself":       {},
	"keep":         {},
	"last":         {},
	"latter":       {},
	"latterly":     {},
	"least":        {},
	"less":         {},
	"ltd":          {},
	"made":         {},
	"many":         {},
	"may":          {},
	"me":           {},
	"meanwhile":    {},
	"might":        {},
	"mill":         {},
	"mine":         {},
	"more":         {},
	"moreover":     {},
	"most":         {},
	"mostly":       {},
	"move":         {},
	"much":         {},
	"must":         {},
	"my":           {},
	"myself":       {},
	"name":         {},
	"namely":       {},
	"neither":      {},
	"never":        {},
	"nevertheless": {},
	"next":         {},
	"nine":         {},
	"no":           {},
	"nobody":       {},
	"none":         {},
	"noone":        {},
	"nor":          {},
	"not":          {},
	"nothing":      {},
	"now":          {},
	"nowhere":      {},
	"of":           {},
	"off":          {},
	"often":        {},
	"on":           {},
	"once":         {},
	"one":          {},
	"only":         {},
	"onto":         {},
	"or":           {},
	"other":        {},
	"others":       {},
	"otherwise":    {},
	"our":          {},
	"ours":         {},
	"ourselves":    {},
	"out":          {},
	"over":         {},
	"own":          {},
	"part":         {},
	"per":          {},
	"perhaps":      {},
	"please":       {},
	"put":          {},
	"rather":       {},
	"re":           {},
	"same":         {},
	"see":          {},
	"seem":         {},
	"seemed":       {},
	"seeming":      {},
	"seems":        {},
	"serious":      {},
	"several":      {},
	"she":          {},
	"should":       {},
	"show":         {},
	"side":         {},
	"since":        {},
	"sincere":      {},
	"six":          {},
	"sixty":        {},
	"so":           {},
	"some":         {},
	"somehow":      {},
	"someone":      {},
	"something":    {},
	"sometime":     {},
	"sometimes":    {},
	"somewhere":    {},
	"still":        {},
	"such":         {},
	"system":       {},
	"take":         {},
	"ten":          {},
	"than":         {},
	"that":         {},
	"the":          {},
	"their":        {},
	"them":         {},
	"themselves":   {},
	"then":         {},
	"thence":       {},
	"there":        {},
	"thereafter":   {},
	"thereby":      {},
	"therefore":    {},
	"therein":      {},
	"thereupon":    {},
	"these":        {},
	"they":         {},
	"thickv":       {},
	"thin":         {},
	"third":        {},
	"this":         {},
	"those":        {},
	"though":       {},
	"three":        {},
	"through":      {},
	"throughout":   {},
	"thru":         {},
	"thus":         {},
	"to":           {},
	"together":     {},
	"too":          {},
	"top":          {},
	"toward":       {},
	"towards":      {},
	"twelve":       {},
	"twenty":       {},
	"two":          {},
	"un":           {},
	"under":        {},
	"until":        {},
	"up":           {},
	"upon":         {},
	"us":           {},
	"very":         {},
	"via":          {},
	"was":          {},
	"we":           {},
	"well":         {},
	"were":         {},
	"what":         {},
	"whatever":     {},
	"when":         {},
	"whence":       {},
	"whenever":     {},
	"where":        {},
	"whereafter":   {},
	"whereas":      {},
	"whereby":      {},
	"wherein":      {},
	"whereupon":    {},
	"wherever":     {},
	"whether":      {},
	"which":        {},
	"while":        {},
	"whither":      {},
	"who":          {},
	"whoever":      {},
	"whole":        {},
	"whom":         {},
	"whose":        {},
	"why":          {},
	"will":         {},
	"with":         {},
	"within":       {},
	"without":      {},
	"would":        {},
	"yet":          {},
	"you":          {},
	"your":         {},
	"yours":        {},
	"yourself":     {},
	"yourselves":   {}}
