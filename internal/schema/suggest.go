package schema

// Levenshtein computes the edit distance between two strings.
func Levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[lb]
}

// SuggestFrom returns the candidate closest to input within maxDist edits,
// or "" if there is none.
func SuggestFrom(input string, candidates []string, maxDist int) string {
	best := ""
	bestDist := maxDist + 1
	for _, c := range candidates {
		if d := Levenshtein(input, c); d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist <= maxDist {
		return best
	}
	return ""
}

// Names returns the entity's field names followed by its edge names.
func (es *EntitySchema) Names() []string {
	names := make([]string, 0, len(es.FieldOrder)+len(es.EdgeOrder)+1)
	if _, ok := es.Fields[es.ID]; !ok {
		names = append(names, es.ID)
	}
	names = append(names, es.FieldOrder...)
	return append(names, es.EdgeOrder...)
}
