package types

import "strings"

// IsMatchingCurrency compares two ISO currency codes case-insensitively.
// An empty code never matches.
func IsMatchingCurrency(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
