package validate

// Distance computes the Levenshtein edit distance between two strings,
// counted over runes. Two-row dynamic programming, O(len(a)*len(b)) time
// and O(min) extra space.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// Keep the shorter string in the inner row.
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity maps an edit distance onto [0,1]:
// 1 - d / max(len(candidate), len(reference), 1), clamped.
// Two empty strings score 1.0.
func Similarity(candidate, reference string) (score float64, distance int) {
	distance = Distance(candidate, reference)
	longest := len([]rune(candidate))
	if lr := len([]rune(reference)); lr > longest {
		longest = lr
	}
	if longest == 0 {
		return 1.0, 0
	}
	score = 1.0 - float64(distance)/float64(longest)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, distance
}
