// Package typoutil provides edit-distance helpers used for spelling
// suggestions.
package typoutil

// Distance computes the Levenshtein distance between two strings: the minimum
// number of single-character insertions, deletions, or substitutions required
// to turn one into the other. Works on runes, so multi-byte characters count
// as one edit.
func Distance(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)

	lenA := len(runesA)
	lenB := len(runesB)

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			curr[j] = min3(deletion, insertion, substitution)
		}
		prev, curr = curr, prev
	}

	return prev[lenB]
}

// DistanceWithLimit behaves like Distance but bails out once the distance is
// guaranteed to exceed maxDistance, returning maxDistance + 1.
func DistanceWithLimit(a, b string, maxDistance int) int {
	runesA := []rune(a)
	runesB := []rune(b)

	lenA := len(runesA)
	lenB := len(runesB)

	lengthDiff := lenA - lenB
	if lengthDiff < 0 {
		lengthDiff = -lengthDiff
	}
	if lengthDiff > maxDistance {
		return maxDistance + 1
	}

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		minInRow := i

		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			curr[j] = min3(deletion, insertion, substitution)

			if curr[j] < minInRow {
				minInRow = curr[j]
			}
		}

		if minInRow > maxDistance {
			return maxDistance + 1
		}

		prev, curr = curr, prev
	}

	return prev[lenB]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
