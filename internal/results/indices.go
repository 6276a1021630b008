package results

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseIndices parses an index list given either bracketed
// ("[2, 67, 71]") or bare comma-separated ("2,67,71") form into a
// deduplicated set.
func ParseIndices(s string) (map[int]struct{}, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	set := map[int]struct{}{}
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad index %q: %w", part, err)
		}
		set[n] = struct{}{}
	}
	return set, nil
}

// SortedIndices returns the set as a sorted slice.
func SortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// FormatIndices renders a sorted index slice in the bracketed form
// used throughout the summary CSVs.
func FormatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
