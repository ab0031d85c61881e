// Package strings holds small string-slice helpers shared across packages.
package strings

import "strings"

// DedupeAndTrimLower trims, lowercases, and deduplicates a slice, dropping
// entries that end up empty. Order of first occurrence is preserved. Role
// lists from tokens go through this before any comparison.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
