package ftrack

import "strings"

// DefaultChunkSize bounds how many ids go into a single "in (...)"
// clause. The tracker server rejects expressions past a few thousand
// characters, so large id sets are chunked.
const DefaultChunkSize = 200

// JoinFilterValues quotes and joins values for an "in (...)" query
// clause. Double quotes inside a value are stripped rather than
// escaped; the tracker query language has no escape syntax.
func JoinFilterValues(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, `"`+strings.ReplaceAll(v, `"`, ``)+`"`)
	}
	return strings.Join(parts, ",")
}

// Chunks splits values into slices of at most size elements. A size
// below 1 falls back to DefaultChunkSize.
func Chunks(values []string, size int) [][]string {
	if size < 1 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		out = append(out, values[start:end])
	}
	return out
}

// AttrValueChunkSize returns the id chunk size for custom attribute
// value queries. The expression filters on entity ids and
// configuration ids at once, so the budget shrinks with the number of
// configurations.
func AttrValueChunkSize(configCount int) int {
	if configCount < 1 {
		return 5000
	}
	size := 5000 / configCount
	if size < 10 {
		size = 10
	}
	return size
}
