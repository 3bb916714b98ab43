package domain

import (
	"regexp"
	"strings"
	"time"
)

// Kind selects how a whitelist pattern is matched.
type Kind string

const (
	KindExact     Kind = "exact"
	KindSubstring Kind = "substring"
	KindRegex     Kind = "regex"
)

// Entry is one configured allow-entry. A matching activity is always allowed
// regardless of violation rules.
type Entry struct {
	ID        int64
	Pattern   string
	Kind      Kind
	Note      string
	CreatedAt time.Time
}

// Matches reports whether the entry matches the given URL or domain.
// Comparisons are case-insensitive; an invalid regex pattern never matches.
func (e *Entry) Matches(rawURL, host string) bool {
	pattern := strings.ToLower(strings.TrimSpace(e.Pattern))
	if pattern == "" {
		return false
	}
	u := strings.ToLower(rawURL)
	h := strings.ToLower(host)

	switch e.Kind {
	case KindExact:
		return u == pattern || h == pattern
	case KindRegex:
		re, err := regexp.Compile("(?i)" + e.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(rawURL) || re.MatchString(host)
	default: // substring
		return strings.Contains(u, pattern) || strings.Contains(h, pattern)
	}
}
