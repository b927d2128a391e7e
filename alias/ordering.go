package alias

import "strconv"

// CompareSpeciesIDs implements the numeric-aware ordering recommended for
// Open Question 3: ids that parse as base-10 integers sort numerically and
// precede every non-numeric id; non-numeric ids sort lexicographically
// (byte-wise) among themselves.
func CompareSpeciesIDs(a, b string) int {
	an, aIsNum := parseID(a)
	bn, bIsNum := parseID(b)

	switch {
	case aIsNum && bIsNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case aIsNum && !bIsNum:
		return -1
	case !aIsNum && bIsNum:
		return 1
	default:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortSpecies sorts species entries in place by the numeric-aware id order.
func SortSpecies(entries []SpeciesEntry) {
	insertionSortSpecies(entries)
}

// insertionSortSpecies keeps the sort stable and dependency-free; the
// master typically holds a few hundred species, well within insertion-sort
// territory and it preserves relative order of duplicate ids deterministically.
func insertionSortSpecies(entries []SpeciesEntry) {
	for i := 1; i < len(entries); i++ {
		key := entries[i]
		j := i - 1
		for j >= 0 && CompareSpeciesIDs(entries[j].SpeciesID, key.SpeciesID) > 0 {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = key
	}
}
