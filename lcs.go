package infidex

import "strings"

// ═══════════════════════════════════════════════════════════════════════════════
// LCS-WITH-TOLERANCE (§4.4/§4.6 step 6)
// ═══════════════════════════════════════════════════════════════════════════════
// Longest common subsequence length over lowercased query/document text,
// used as the Coverage Engine's LCS input and as one of §4.6 step 8's
// truncation survival conditions. A standard two-row DP; no library in the
// retrieved corpus computes LCS (see DESIGN.md).
// ═══════════════════════════════════════════════════════════════════════════════

// LCSWithTolerance returns the longest-common-subsequence length between a
// and b, compared case-insensitively.
func LCSWithTolerance(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}
