package infidex

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE CONFIG (AMBIENT STACK)
// ═══════════════════════════════════════════════════════════════════════════════

// EngineConfig bundles every tunable the Search Pipeline consults, following
// the same single-config-struct-plus-Default*-constructor pattern as
// AnalyzerConfig/DefaultConfig.
type EngineConfig struct {
	Analyzer AnalyzerConfig
	BM25     BM25Parameters

	// CoverageDepth is the stage-1 → stage-2 fan-out (§4.6 step 6, default 500).
	CoverageDepth int
	// TruncationScore is the §4.6 step 8 minimum composite score that lets a
	// tail candidate survive truncation on its own (default 254).
	TruncationScore uint8
	// MinWordHits is the §4.6 step 8 minimum lexical word-hit count that lets
	// a tail candidate survive truncation on its own.
	MinWordHits int

	MaxResultsDefault int
	TimeoutMSDefault  int

	// IDFCacheSize bounds the per-query IDF cache (§5).
	IDFCacheSize int
	// AnchorStemLen is the minimum first-query-token length for the Fusion
	// Scorer's anchor-stem check (anchorStemPresent, §4.5).
	AnchorStemLen int
}

// DefaultEngineConfig returns the configuration used when an Engine is
// constructed without overrides.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Analyzer:          DefaultConfig(),
		BM25:              DefaultBM25Parameters(),
		CoverageDepth:     500,
		TruncationScore:   254,
		MinWordHits:       1,
		MaxResultsDefault: 10,
		TimeoutMSDefault:  1000,
		IDFCacheSize:      4096,
		AnchorStemLen:     3,
	}
}
