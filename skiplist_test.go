package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// POSITIONAL SKIP LIST TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestPosition_Accessors(t *testing.T) {
	pos := Position{DocumentID: 42, Offset: 10}
	if got := pos.GetDocumentID(); got != 42 {
		t.Errorf("GetDocumentID() = %d, want 42", got)
	}
	if got := pos.GetOffset(); got != 10 {
		t.Errorf("GetOffset() = %d, want 10", got)
	}
}

func TestPosition_SentinelPredicates(t *testing.T) {
	tests := []struct {
		name        string
		pos         Position
		wantBegin   bool
		wantEndBool bool
	}{
		{"BOF", Position{DocumentID: BOF, Offset: BOF}, true, false},
		{"regular", Position{DocumentID: 1, Offset: 0}, false, false},
		{"EOF", Position{DocumentID: EOF, Offset: EOF}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsBeginning(); got != tt.wantBegin {
				t.Errorf("IsBeginning() = %v, want %v", got, tt.wantBegin)
			}
			if got := tt.pos.IsEnd(); got != tt.wantEndBool {
				t.Errorf("IsEnd() = %v, want %v", got, tt.wantEndBool)
			}
		})
	}
}

func TestPosition_Ordering(t *testing.T) {
	a := Position{DocumentID: 1, Offset: 5}
	b := Position{DocumentID: 1, Offset: 10}
	c := Position{DocumentID: 2, Offset: 0}

	if !a.IsBefore(b) {
		t.Errorf("expected same-doc earlier offset to be before later offset")
	}
	if !b.IsAfter(a) {
		t.Errorf("expected same-doc later offset to be after earlier offset")
	}
	if !b.IsBefore(c) {
		t.Errorf("expected doc 1 to be before doc 2 regardless of offset")
	}
	if !a.Equals(Position{DocumentID: 1, Offset: 5}) {
		t.Errorf("expected equal (doc, offset) pairs to compare equal")
	}
}

func TestSkipList_InsertFindOrdered(t *testing.T) {
	sl := NewSkipList()
	occurrences := []Position{
		{DocumentID: 3, Offset: 2},
		{DocumentID: 1, Offset: 0},
		{DocumentID: 1, Offset: 5},
		{DocumentID: 2, Offset: 1},
	}
	for _, p := range occurrences {
		sl.Insert(p)
	}

	for _, p := range occurrences {
		got, err := sl.Find(p)
		if err != nil {
			t.Fatalf("Find(%v): %v", p, err)
		}
		if !got.Equals(p) {
			t.Errorf("Find(%v) = %v", p, got)
		}
	}

	if _, err := sl.Find(Position{DocumentID: 99, Offset: 0}); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound for an absent key, got %v", err)
	}
}

func TestSkipList_FindLessThanAndGreaterThan(t *testing.T) {
	sl := NewSkipList()
	for _, docID := range []int{1, 2, 3, 4} {
		sl.Insert(Position{DocumentID: float64(docID), Offset: 0})
	}

	lt, err := sl.FindLessThan(Position{DocumentID: 3, Offset: 0})
	if err != nil || lt.GetDocumentID() != 2 {
		t.Errorf("FindLessThan(3) = %v, %v; want doc 2", lt, err)
	}

	gt, err := sl.FindGreaterThan(Position{DocumentID: 2, Offset: 0})
	if err != nil || gt.GetDocumentID() != 3 {
		t.Errorf("FindGreaterThan(2) = %v, %v; want doc 3", gt, err)
	}

	if _, err := sl.FindLessThan(Position{DocumentID: 1, Offset: 0}); err != ErrNoElementFound {
		t.Errorf("expected ErrNoElementFound before the first element, got %v", err)
	}
}

func TestSkipList_Delete(t *testing.T) {
	sl := NewSkipList()
	for _, docID := range []int{1, 2, 3} {
		sl.Insert(Position{DocumentID: float64(docID), Offset: 0})
	}

	if !sl.Delete(Position{DocumentID: 2, Offset: 0}) {
		t.Fatalf("expected Delete to report the key was present")
	}
	if sl.Delete(Position{DocumentID: 2, Offset: 0}) {
		t.Errorf("expected a second Delete of the same key to report false")
	}
	if _, err := sl.Find(Position{DocumentID: 2, Offset: 0}); err != ErrKeyNotFound {
		t.Errorf("expected deleted key to be absent")
	}
	if _, err := sl.Find(Position{DocumentID: 1, Offset: 0}); err != nil {
		t.Errorf("expected neighboring key to survive deletion: %v", err)
	}
}

func TestSkipList_IteratorVisitsInAscendingOrder(t *testing.T) {
	sl := NewSkipList()
	docIDs := []int{5, 1, 3, 2, 4}
	for _, id := range docIDs {
		sl.Insert(Position{DocumentID: float64(id), Offset: 0})
	}

	it := sl.Iterator()
	var seen []int
	for it.HasNext() {
		seen = append(seen, it.Next().GetDocumentID())
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("iterator not strictly ascending: %v", seen)
		}
	}
	if len(seen) != len(docIDs) {
		t.Errorf("iterator visited %d of %d inserted occurrences, want all of them", len(seen), len(docIDs))
	}
}

func TestSkipList_WeightedOffsetRoundTrip(t *testing.T) {
	sl := NewSkipList()
	type occurrence struct {
		docID  int
		tokPos int
		weight WeightClass
	}
	occs := []occurrence{
		{docID: 0, tokPos: 3, weight: WeightHigh},
		{docID: 0, tokPos: 7, weight: WeightMed},
		{docID: 1, tokPos: 0, weight: WeightLow},
	}
	for _, o := range occs {
		sl.Insert(Position{
			DocumentID: float64(o.docID),
			Offset:     float64(encodeWeightedOffset(o.tokPos, o.weight)),
		})
	}

	for _, o := range occs {
		found, err := sl.Find(Position{
			DocumentID: float64(o.docID),
			Offset:     float64(encodeWeightedOffset(o.tokPos, o.weight)),
		})
		if err != nil {
			t.Fatalf("Find occurrence %+v: %v", o, err)
		}
		gotPos, gotWeight := decodeWeightedOffset(found.GetOffset())
		if gotPos != o.tokPos || gotWeight != o.weight {
			t.Errorf("decodeWeightedOffset = (%d, %d), want (%d, %d)", gotPos, gotWeight, o.tokPos, o.weight)
		}
	}
}

func TestSkipList_LastReturnsHighestOccurrence(t *testing.T) {
	sl := NewSkipList()
	for _, docID := range []int{1, 4, 2, 9, 3} {
		sl.Insert(Position{DocumentID: float64(docID), Offset: 0})
	}
	if got := sl.Last().GetDocumentID(); got != 9 {
		t.Errorf("Last() = %d, want 9", got)
	}
}

func TestSkipList_EmptyListBehavior(t *testing.T) {
	sl := NewSkipList()
	if _, err := sl.Find(Position{DocumentID: 1, Offset: 0}); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound on an empty list, got %v", err)
	}
	if it := sl.Iterator(); it.HasNext() {
		t.Errorf("expected an empty list's iterator to have no next element")
	}
}
