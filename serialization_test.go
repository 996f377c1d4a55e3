package infidex

import (
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDEX SERIALIZATION ROUND-TRIP TESTS
// ═══════════════════════════════════════════════════════════════════════════════
// §8: "the file must round-trip equivalently such that search results are
// byte-identical before and after save/load for identical inputs." These
// tests exercise the full Encode/Decode cycle on a multi-term, multi-document
// index so every posting and every per-term positional skip list (including
// its tower structure, not just its node positions) survives the trip.
// ═══════════════════════════════════════════════════════════════════════════════

func TestEncodeDecode_PostingsSurviveRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)

	data, err := idx.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Stats.TotalDocs != idx.Stats.TotalDocs {
		t.Errorf("TotalDocs = %d, want %d", decoded.Stats.TotalDocs, idx.Stats.TotalDocs)
	}
	if len(decoded.Documents) != len(idx.Documents) {
		t.Fatalf("len(Documents) = %d, want %d", len(decoded.Documents), len(idx.Documents))
	}

	for text, term := range idx.TermsByText {
		dt, ok := decoded.TermsByText[text]
		if !ok {
			t.Fatalf("term %q missing after decode", text)
		}
		if dt.DocFreq != term.DocFreq {
			t.Errorf("term %q: DocFreq = %d, want %d", text, dt.DocFreq, term.DocFreq)
		}
		if len(dt.Postings) != len(term.Postings) {
			t.Fatalf("term %q: len(Postings) = %d, want %d", text, len(dt.Postings), len(term.Postings))
		}
		for i, p := range term.Postings {
			dp := dt.Postings[i]
			if dp.InternalID != p.InternalID || dp.TermFreq != p.TermFreq || dp.Weight != p.Weight {
				t.Errorf("term %q posting %d: got %+v, want %+v", text, i, dp, p)
			}
		}
	}
}

// TestEncodeDecode_MultiTermStreamStaysAligned guards against a decoder that
// misreads one term's positional skip-list tower data and desyncs the byte
// stream for every term that follows: the "learning" term alone (as indexed
// by setupTestIndex) has several occurrences, so it is likely (tower heights
// are random) to be assigned a multi-level skip list tower, and decoding it
// incorrectly would corrupt every term decoded afterward, not just
// "learning" itself.
func TestEncodeDecode_MultiTermStreamStaysAligned(t *testing.T) {
	idx := setupTestIndex(t)

	data, err := idx.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded.TermsByID) != len(idx.TermsByID) {
		t.Fatalf("len(TermsByID) = %d, want %d", len(decoded.TermsByID), len(idx.TermsByID))
	}
	for i, term := range idx.TermsByID {
		dterm := decoded.TermsByID[i]
		if dterm.Text != term.Text {
			t.Fatalf("TermsByID[%d].Text = %q, want %q (stream desynced)", i, dterm.Text, term.Text)
		}
	}
}

func TestEncodeDecode_SearchResultsMatchBeforeAndAfter(t *testing.T) {
	idx := setupTestIndex(t)
	tok := testTokenizer()
	engine := NewEngine(idx, tok, DefaultEngineConfig())

	before, err := engine.Search(NewQuery("machine learning"))
	if err != nil {
		t.Fatalf("Search (before): %v", err)
	}

	data, err := idx.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	afterEngine := NewEngine(decoded, tok, DefaultEngineConfig())
	after, err := afterEngine.Search(NewQuery("machine learning"))
	if err != nil {
		t.Fatalf("Search (after): %v", err)
	}

	if len(before.Records) != len(after.Records) {
		t.Fatalf("record count: before=%d after=%d", len(before.Records), len(after.Records))
	}
	for i := range before.Records {
		if before.Records[i].DocKey != after.Records[i].DocKey {
			t.Errorf("record %d: DocKey before=%d after=%d", i, before.Records[i].DocKey, after.Records[i].DocKey)
		}
		if before.Records[i].Score != after.Records[i].Score {
			t.Errorf("record %d: Score before=%d after=%d", i, before.Records[i].Score, after.Records[i].Score)
		}
	}
}
