// Package infidex implements an inverted index for full-text search.
//
// ═══════════════════════════════════════════════════════════════════════════════
// WHAT IS AN INVERTED INDEX?
// ═══════════════════════════════════════════════════════════════════════════════
// An inverted index is like the index at the back of a book, but for search engines.
//
// Example: Given these documents:
//   Doc 1: "the quick brown fox"
//   Doc 2: "the lazy dog"
//   Doc 3: "quick brown dogs"
//
// The inverted index would look like:
//   "quick"  → [Doc1:Pos1, Doc3:Pos0]
//   "brown"  → [Doc1:Pos2, Doc3:Pos1]
//   "fox"    → [Doc1:Pos3]
//   "lazy"   → [Doc2:Pos1]
//   "dog"    → [Doc2:Pos2]
//   "dogs"   → [Doc3:Pos2]
//
// Infidex indexes character n-grams the same way it indexes words, so the
// same structure answers both whole-term lookups and short-query/prefix
// lookups (§4.2).
//
// ═══════════════════════════════════════════════════════════════════════════════

package infidex

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════
var (
	ErrNoPostingList     = errors.New("no posting list exists for token")
	ErrNoNextElement     = errors.New("no next element found")
	ErrNoPrevElement     = errors.New("no previous element found")
	ErrIndexAlreadyBuilt = errors.New("index already built: incremental updates are out of scope")
	ErrIndexNotBuilt     = errors.New("index not built: call Build() before searching")
)

// ═══════════════════════════════════════════════════════════════════════════════
// BM25 RANKING PARAMETERS
// ═══════════════════════════════════════════════════════════════════════════════
// k1 controls term-frequency saturation; b controls document-length
// normalization strength. Infidex fixes these at §4.3's mandated values
// rather than the tunable defaults seen elsewhere in the corpus, since
// §4.3 ties the precedence/semantic packing to this exact curve.
type BM25Parameters struct {
	K1 float64
	B  float64
}

// DefaultBM25Parameters returns the values mandated by §4.3: k1=1.2, b=0.75.
func DefaultBM25Parameters() BM25Parameters {
	return BM25Parameters{K1: 1.2, B: 0.75}
}

// AddDocument ingests one document into the index. Indexing is a
// single-writer, append-only pass (§5); Build() must be called once after
// all documents are added, at which point the index becomes read-only.
func (idx *Index) AddDocument(doc *Document, tok *Tokenizer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.built {
		return ErrIndexAlreadyBuilt
	}

	doc.InternalID = len(idx.Documents)
	idx.Documents = append(idx.Documents, doc)
	idx.ByKey[doc.Key] = append(idx.ByKey[doc.Key], doc)

	text := doc.Text()
	ngrams := tok.TokenizeForIndex(text, idx.fieldWeight(doc))
	words := tokenize(tok.Normalize(text))

	seenTerms := make(map[string]struct{}, len(ngrams)+len(words))

	indexToken := func(term string, weight WeightClass, pos int) {
		if _, ok := idx.TermsByText[term]; !ok {
			seenTerms[term] = struct{}{}
		}
		idx.indexOccurrence(term, doc.InternalID, weight, pos)
	}

	for _, g := range ngrams {
		indexToken(g.Text, g.Weight, g.Position)
	}
	for i, w := range words {
		indexToken(w, idx.fieldWeight(doc), i)
	}

	for term := range seenTerms {
		idx.Prefix.Insert(term, idx.termID(term))
	}

	return nil
}

func (idx *Index) fieldWeight(doc *Document) WeightClass {
	if f, ok := doc.Fields[doc.TextField]; ok {
		return f.Weight
	}
	return WeightMed
}

func (idx *Index) termID(text string) int {
	t := idx.TermsByText[text]
	return t.ID
}

// indexOccurrence records one (term, document, position) occurrence: the
// positional skip list gets one entry per occurrence, the roaring bitmap
// gets the document id (idempotent), and the term dictionary is lazily
// created on first sight — following the same indexToken/getPostingList
// split used throughout this package, generalized to carry a field weight
// alongside the position.
func (idx *Index) indexOccurrence(text string, internalID int, weight WeightClass, pos int) {
	term, ok := idx.TermsByText[text]
	if !ok {
		term = &Term{Text: text, ID: len(idx.TermsByID)}
		idx.TermsByText[text] = term
		idx.TermsByID = append(idx.TermsByID, term)
		idx.DocBitmaps[text] = roaring.New()
		idx.Positions[text] = NewSkipList()
	}

	idx.DocBitmaps[text].Add(uint32(internalID))
	idx.Positions[text].Insert(Position{
		DocumentID: float64(internalID),
		Offset:     float64(encodeWeightedOffset(pos, weight)),
	})
}

// encodeWeightedOffset packs a token position and its field-weight class
// into a single skip-list offset: the low bits carry the position, the top
// 2 bits carry the weight class, so position-order comparisons on the skip
// list remain correct for any one document (positions never reach 2^30).
func encodeWeightedOffset(pos int, w WeightClass) int {
	return (pos & 0x3FFFFFFF) | (int(w) << 30)
}

func decodeWeightedOffset(enc int) (pos int, w WeightClass) {
	return enc & 0x3FFFFFFF, WeightClass(enc >> 30)
}

// Build finalizes the index: computes per-term document frequency and
// sorted posting lists from the accumulated bitmaps/position lists, and
// computes CorpusStats in one pass, as required by §3's "Terms and
// postings are built in one indexing pass; CorpusStats is computed once
// at the end."
func (idx *Index) Build() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.built {
		return ErrIndexAlreadyBuilt
	}

	totalLen := 0
	for _, doc := range idx.Documents {
		if doc.Deleted {
			continue
		}
		totalLen += len(tokenize(doc.Text()))
	}

	nonDeleted := 0
	for _, doc := range idx.Documents {
		if !doc.Deleted {
			nonDeleted++
		}
	}

	idx.Stats = CorpusStats{
		TotalDocs:    nonDeleted,
		docFreq:      make(map[string]int, len(idx.TermsByText)),
	}
	if nonDeleted > 0 {
		idx.Stats.AvgDocLength = float64(totalLen) / float64(nonDeleted)
	}

	for text, term := range idx.TermsByText {
		bitmap := idx.DocBitmaps[text]
		term.DocFreq = int(bitmap.GetCardinality())
		idx.Stats.docFreq[text] = term.DocFreq

		tfByDoc := make(map[int]int)
		it := bitmap.Iterator()
		for it.HasNext() {
			tfByDoc[int(it.Next())] = 0
		}
		posList := idx.Positions[text]
		pit := posList.Iterator()
		for pit.HasNext() {
			p := pit.Next()
			docID := p.GetDocumentID()
			tfByDoc[docID]++
		}

		postings := make([]Posting, 0, len(tfByDoc))
		for docID, tf := range tfByDoc {
			postings = append(postings, Posting{
				InternalID: docID,
				Weight:     uint8(weightByteFor(idx.fieldWeight(idx.Documents[docID]))),
				TermFreq:   tf,
			})
		}
		sort.Slice(postings, func(i, j int) bool { return postings[i].InternalID < postings[j].InternalID })
		term.Postings = postings
	}

	idx.built = true
	slog.Debug("index built", slog.Int("documents", nonDeleted), slog.Int("terms", len(idx.TermsByText)))
	return nil
}

func weightByteFor(w WeightClass) int {
	switch w {
	case WeightHigh:
		return 255
	case WeightMed:
		return 160
	default:
		return 80
	}
}

// DocFreq returns the document frequency of a term, or 0 if unseen.
func (idx *Index) DocFreq(text string) int {
	if t, ok := idx.TermsByText[text]; ok {
		return t.DocFreq
	}
	return 0
}

// IDF computes the inverse document frequency: log10(N/df).
// A term with df=0 (absent from the index) is given the maximal possible
// IDF for this corpus (log10(N)) since it is the rarest possible term.
func (idx *Index) IDF(text string) float64 {
	df := idx.DocFreq(text)
	n := idx.Stats.TotalDocs
	if n == 0 {
		return 0
	}
	if df == 0 {
		return math.Log10(float64(n))
	}
	return math.Log10(float64(n) / float64(df))
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSTING ITERATOR PROTOCOL (§9)
// ═══════════════════════════════════════════════════════════════════════════════
// next_doc / advance(target) / cost(), with NO_MORE_DOCS as the terminal
// sentinel. Backed by the term's sorted Postings slice (doc-level, weight +
// term-frequency payload) via binary-search advance — a flat slice gives
// O(log n) advance without needing the full positional skip list on this
// hot path; the positional skip list remains available per-term for any
// position-aware consumer.
// ═══════════════════════════════════════════════════════════════════════════════

const NoMoreDocs = -1

// PostingIterator walks one term's posting list in ascending document-id
// order.
type PostingIterator struct {
	postings []Posting
	idx      int
}

func NewPostingIterator(term *Term) *PostingIterator {
	if term == nil {
		return &PostingIterator{}
	}
	return &PostingIterator{postings: term.Postings}
}

// DocID returns the current document id, or NoMoreDocs if exhausted.
func (it *PostingIterator) DocID() int {
	if it.idx >= len(it.postings) {
		return NoMoreDocs
	}
	return it.postings[it.idx].InternalID
}

// Current returns the current posting payload.
func (it *PostingIterator) Current() Posting {
	if it.idx >= len(it.postings) {
		return Posting{InternalID: NoMoreDocs}
	}
	return it.postings[it.idx]
}

// NextDoc advances to the next document, returning its id or NoMoreDocs.
func (it *PostingIterator) NextDoc() int {
	it.idx++
	return it.DocID()
}

// Advance moves the cursor to the first document id >= target. Monotonic:
// target must be >= the previously returned document id.
func (it *PostingIterator) Advance(target int) int {
	if it.idx >= len(it.postings) {
		return NoMoreDocs
	}
	// galloping search would help for long skips; linear/binary search is
	// sufficient here since posting lists are capped by corpus size.
	lo, hi := it.idx, len(it.postings)
	for lo < hi {
		mid := (lo + hi) / 2
		if it.postings[mid].InternalID < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	it.idx = lo
	return it.DocID()
}

// Cost estimates the remaining work: the number of postings not yet
// passed.
func (it *PostingIterator) Cost() int {
	return len(it.postings) - it.idx
}
