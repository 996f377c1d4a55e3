package infidex

import "github.com/bits-and-blooms/bitset"

// ═══════════════════════════════════════════════════════════════════════════════
// SCRATCH ARENA (§4.8/§9)
// ═══════════════════════════════════════════════════════════════════════════════
// A per-search byte-blob arena yielding zeroed row views, and a companion
// scratch bitset for the pipeline's candidate-dedup bookkeeping (§4.6 step
// 6's "process overlapping-with-stage-1 first" ordering). Grounded on §9's
// "opaque scratch arena ... bound lifetime to a scope guard released on all
// exit paths": NewScratchArena/Reset is that scope guard, called once per
// Engine.Search invocation and discarded on return. bits-and-blooms/bitset
// is named in the retrieved corpus' go.mod manifests (see DESIGN.md); wired
// here per its ordinary public API, with no concrete in-corpus call site to
// mirror.
// ═══════════════════════════════════════════════════════════════════════════════

// stackRowThreshold is the minimum arena size, in float64 slots: smaller
// requested sizes are rounded up to it.
const stackRowThreshold = 256

// ScratchArena hands out zeroed float64 row views carved out of one
// contiguous backing slice, so per-candidate scoring work in the pipeline
// doesn't allocate a fresh slice per document.
type ScratchArena struct {
	blob []float64
	used int
}

// NewScratchArena allocates an arena sized for size float64 slots.
func NewScratchArena(size int) *ScratchArena {
	if size < stackRowThreshold {
		size = stackRowThreshold
	}
	return &ScratchArena{blob: make([]float64, size)}
}

// Row returns a zeroed view of n float64 slots from the arena's backing
// slice. A request that would exceed the remaining capacity, whatever its
// size, falls back to a fresh allocation rather than growing the shared
// blob mid-search.
func (s *ScratchArena) Row(n int) []float64 {
	if s.used+n > len(s.blob) {
		return make([]float64, n)
	}
	row := s.blob[s.used : s.used+n : s.used+n]
	s.used += n
	for i := range row {
		row[i] = 0
	}
	return row
}

// Reset releases every row handed out so far, making the full backing slice
// available again. Called once per search invocation, on every exit path.
func (s *ScratchArena) Reset() { s.used = 0 }

// scratchBitset wraps bits-and-blooms/bitset for the pipeline's
// already-selected-internal-id tracking during stage 2 candidate assembly
// (§4.6 step 6), avoiding a map[int]bool allocation per search.
type scratchBitset struct {
	bs *bitset.BitSet
}

func newScratchBitset(capacity int) *scratchBitset {
	return &scratchBitset{bs: bitset.New(uint(capacity))}
}

func (s *scratchBitset) test(id int) bool {
	if id < 0 {
		return false
	}
	return s.bs.Test(uint(id))
}

func (s *scratchBitset) set(id int) {
	if id < 0 {
		return
	}
	s.bs.Set(uint(id)) // auto-grows past its initial length
}
