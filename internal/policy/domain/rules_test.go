package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSeverityForFallsBackToMedium(t *testing.T) {
	rs := DefaultRuleSet()
	if got := rs.SeverityFor(CategoryAdultContent); got != SeverityCritical {
		t.Fatalf("adult content severity = %s", got)
	}
	if got := rs.SeverityFor(Category("made-up")); got != SeverityMedium {
		t.Fatalf("unmapped category severity = %s, want medium", got)
	}
}

func TestLoadRulesEmptyPathReturnsDefaults(t *testing.T) {
	rs, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rs.ViolationFamilies) == 0 || len(rs.WorkDomains) == 0 {
		t.Fatal("defaults must be populated")
	}
}

func TestLoadRulesMergesOverlay(t *testing.T) {
	overlay := `
violation_keywords:
  - keyword: fantasy football
    category: gaming
work_domains:
  - internal-tools.example.com
severities:
  shopping: high
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	defaults := DefaultRuleSet()
	rs, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	if len(rs.ViolationKeywords) != len(defaults.ViolationKeywords)+1 {
		t.Fatalf("keywords = %d, want %d", len(rs.ViolationKeywords), len(defaults.ViolationKeywords)+1)
	}
	last := rs.ViolationKeywords[len(rs.ViolationKeywords)-1]
	if last.Keyword != "fantasy football" || last.Category != CategoryGaming {
		t.Fatalf("appended keyword rule = %+v", last)
	}
	if rs.WorkDomains[len(rs.WorkDomains)-1] != "internal-tools.example.com" {
		t.Fatal("work domain was not appended")
	}
	if rs.SeverityFor(CategoryShopping) != SeverityHigh {
		t.Fatalf("shopping severity = %s, want overridden high", rs.SeverityFor(CategoryShopping))
	}
	// Non-overridden entries keep their defaults.
	if rs.SeverityFor(CategorySocialMedia) != SeverityHigh {
		t.Fatalf("social media severity = %s", rs.SeverityFor(CategorySocialMedia))
	}
}

func TestLoadRulesBadFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("violation_keywords: {not: [a, list"), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
