package domain

import "testing"

func TestEntryMatches(t *testing.T) {
	cases := []struct {
		name    string
		entry   Entry
		rawURL  string
		host    string
		matches bool
	}{
		{"exactHost", Entry{Pattern: "wiki.example.com", Kind: KindExact}, "https://wiki.example.com/page", "wiki.example.com", true},
		{"exactHostCaseInsensitive", Entry{Pattern: "Wiki.Example.COM", Kind: KindExact}, "", "wiki.example.com", true},
		{"exactNoMatch", Entry{Pattern: "wiki.example.com", Kind: KindExact}, "https://docs.example.com", "docs.example.com", false},
		{"substringInURL", Entry{Pattern: "example-corp", Kind: KindSubstring}, "https://app.example-corp.io/board", "app.example-corp.io", true},
		{"substringNoMatch", Entry{Pattern: "example-corp", Kind: KindSubstring}, "https://github.com", "github.com", false},
		{"regex", Entry{Pattern: `^https://([a-z0-9-]+\.)?staging\.example\.com/`, Kind: KindRegex}, "https://api.staging.example.com/v1", "api.staging.example.com", true},
		{"regexNoMatch", Entry{Pattern: `^https://staging\.example\.com/`, Kind: KindRegex}, "https://prod.example.com/", "prod.example.com", false},
		{"invalidRegexNeverMatches", Entry{Pattern: `[unclosed`, Kind: KindRegex}, "https://unclosed.com", "unclosed.com", false},
		{"emptyPattern", Entry{Pattern: "   ", Kind: KindSubstring}, "https://anything.com", "anything.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.Matches(tc.rawURL, tc.host); got != tc.matches {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tc.rawURL, tc.host, got, tc.matches)
			}
		})
	}
}
