package utilities

import "strings"

// SplitCommaList splits a comma separated list, trimming blanks and
// dropping empty entries. "a,,b " yields [a b].
func SplitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinCommaList is the inverse of SplitCommaList.
func JoinCommaList(items []string) string {
	return strings.Join(items, ",")
}

// ContainsAny reports whether s contains any of subs.
func ContainsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
