package infidex

// DamerauLevenshtein computes the (restricted) Damerau-Levenshtein edit
// distance between a and b: insertions, deletions, substitutions, and
// adjacent-transpositions all cost 1. Used by the Coverage Engine's fuzzy
// prefix and fuzzy whole-word sub-matchers (§4.4). No library in the
// retrieved example corpus implements this (see DESIGN.md); the DP table
// below is the standard optimal-string-alignment formulation.
func DamerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}

			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				trans := d[i-2][j-2] + cost
				if trans < best {
					best = trans
				}
			}

			d[i][j] = best
		}
	}

	return d[la][lb]
}
