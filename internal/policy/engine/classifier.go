// Package engine classifies observed activity against the compliance rule
// tables. The classifier is a pure function over its inputs; rule data lives
// in policy/domain.
package engine

import (
	"net/url"
	"strings"

	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
	"activity-compliance-plane/backend/internal/policy/domain"
	whitelistdomain "activity-compliance-plane/backend/internal/whitelist/domain"
)

// Verdict is the classification result for one activity.
type Verdict struct {
	Allowed  bool
	Kind     domain.Kind
	Category domain.Category
	Severity domain.Severity
	// Matched names the rule that decided the verdict (for alert descriptions).
	Matched string
}

// Classifier decides whether an observed activity is allowed or a violation.
type Classifier interface {
	Classify(activity *activitydomain.Record, whitelist []whitelistdomain.Entry) Verdict
}

// RuleClassifier evaluates the three-tier algorithm over a RuleSet:
// whitelist, then explicit violations, then work-related; anything left is a
// generic non-work violation.
type RuleClassifier struct {
	rules *domain.RuleSet
}

// New returns a classifier over the given rule set (defaults when nil).
func New(rules *domain.RuleSet) *RuleClassifier {
	if rules == nil {
		rules = domain.DefaultRuleSet()
	}
	return &RuleClassifier{rules: rules}
}

func allowed(matched string) Verdict {
	return Verdict{Allowed: true, Matched: matched}
}

func (c *RuleClassifier) violation(kind domain.Kind, category domain.Category, matched string) Verdict {
	return Verdict{
		Kind:     kind,
		Category: category,
		Severity: c.rules.SeverityFor(category),
		Matched:  matched,
	}
}

// Classify runs the tiers in order, first match wins. A nil activity or a
// malformed URL never errors: unparseable inputs simply match no rule and
// fall through to the non-work verdict.
func (c *RuleClassifier) Classify(activity *activitydomain.Record, whitelist []whitelistdomain.Entry) Verdict {
	if activity == nil {
		return c.violation(domain.KindNonWork, domain.CategoryGeneric, "no activity data")
	}

	host, path := normalize(activity)
	lowerText := strings.ToLower(activity.URL + " " + activity.Title)

	for i := range whitelist {
		if whitelist[i].Matches(activity.URL, host) {
			return allowed("whitelist: " + whitelist[i].Pattern)
		}
	}

	// Explicit violations run before the work check so a listed non-work
	// domain is never rescued by an incidental keyword like "docs".
	for _, fam := range c.rules.ViolationFamilies {
		for _, d := range fam.Domains {
			if domainMatch(host, d) {
				return c.violation(domain.KindExplicit, fam.Category, "domain: "+d)
			}
		}
	}
	for _, pr := range c.rules.ViolationPaths {
		if domainMatch(host, pr.Domain) && strings.HasPrefix(path, pr.Prefix) {
			return c.violation(domain.KindExplicit, pr.Category, "path: "+pr.Domain+pr.Prefix)
		}
	}
	for _, kw := range c.rules.ViolationKeywords {
		if kw.Keyword != "" && strings.Contains(lowerText, strings.ToLower(kw.Keyword)) {
			return c.violation(domain.KindExplicit, kw.Category, "keyword: "+kw.Keyword)
		}
	}

	for _, d := range c.rules.WorkDomains {
		if domainMatch(host, d) {
			return allowed("work domain: " + d)
		}
	}
	for _, kw := range c.rules.WorkKeywords {
		if kw != "" && strings.Contains(lowerText, strings.ToLower(kw)) {
			return allowed("work keyword: " + kw)
		}
	}
	for _, sh := range c.rules.SearchHosts {
		if domainMatch(host, sh) && (path == "" || path == "/" || strings.HasPrefix(path, "/search")) {
			return allowed("search: " + sh)
		}
	}
	for _, shp := range c.rules.SharedWorkPaths {
		if !domainMatch(host, shp.Host) {
			continue
		}
		for _, prefix := range shp.Prefixes {
			if strings.HasPrefix(path, prefix) {
				return allowed("shared host path: " + shp.Host + prefix)
			}
		}
	}
	// The monitoring product itself is always work-related, so agents never
	// flag their own dashboard.
	for _, self := range c.rules.SelfHosts {
		if domainMatch(host, self) {
			return allowed("self: " + self)
		}
	}

	return c.violation(domain.KindNonWork, domain.CategoryGeneric, "no matching rule")
}

// normalize derives a lower-cased host (no port, no www prefix) and URL path
// from the activity, preferring the declared domain and falling back to
// parsing the URL. Malformed inputs yield empty strings.
func normalize(activity *activitydomain.Record) (host, path string) {
	host = strings.ToLower(strings.TrimSpace(activity.Domain))
	path = activity.Path

	if host == "" || path == "" {
		raw := strings.TrimSpace(activity.URL)
		if raw != "" {
			if !strings.Contains(raw, "://") {
				raw = "http://" + raw
			}
			if u, err := url.Parse(raw); err == nil {
				if host == "" {
					host = strings.ToLower(u.Hostname())
				}
				if path == "" {
					path = u.Path
				}
			}
		}
	}

	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	return host, path
}

// domainMatch reports whether host equals d or is a subdomain of d.
func domainMatch(host, d string) bool {
	d = strings.ToLower(strings.TrimSpace(d))
	if host == "" || d == "" {
		return false
	}
	return host == d || strings.HasSuffix(host, "."+d)
}
