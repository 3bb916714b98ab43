// Package domain defines the compliance rule tables. The tables are data,
// not code: built-in defaults can be overridden or extended from a YAML file
// without touching the classification algorithm.
package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category classifies what kind of non-work activity was observed.
type Category string

const (
	CategorySocialMedia   Category = "social_media"
	CategoryGaming        Category = "gaming"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategoryDating        Category = "dating"
	CategoryAdultContent  Category = "adult_content"
	CategoryGeneric       Category = "generic"
)

// Severity ranks how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind distinguishes curated-list matches from the non-work fallthrough.
type Kind string

const (
	KindExplicit Kind = "explicit"
	KindNonWork  Kind = "non_work"
)

// DomainFamily groups violation domains under one category.
type DomainFamily struct {
	Category Category `yaml:"category"`
	Domains  []string `yaml:"domains"`
}

// PathRule flags a URL path prefix on a specific domain (e.g. a watch path
// on a video host).
type PathRule struct {
	Domain   string   `yaml:"domain"`
	Prefix   string   `yaml:"prefix"`
	Category Category `yaml:"category"`
}

// KeywordRule flags a lower-cased substring of the URL or title.
type KeywordRule struct {
	Keyword  string   `yaml:"keyword"`
	Category Category `yaml:"category"`
}

// SharedHostPaths allows specific sub-paths of an otherwise ambiguous shared
// host (e.g. a workspace suite's document/drive/calendar/mail paths).
type SharedHostPaths struct {
	Host     string   `yaml:"host"`
	Prefixes []string `yaml:"prefixes"`
}

// RuleSet is the complete classification rule table.
type RuleSet struct {
	ViolationFamilies []DomainFamily    `yaml:"violation_families"`
	ViolationPaths    []PathRule        `yaml:"violation_paths"`
	ViolationKeywords []KeywordRule     `yaml:"violation_keywords"`
	WorkDomains       []string          `yaml:"work_domains"`
	WorkKeywords      []string          `yaml:"work_keywords"`
	SearchHosts       []string          `yaml:"search_hosts"`
	SharedWorkPaths   []SharedHostPaths `yaml:"shared_work_paths"`
	SelfHosts         []string          `yaml:"self_hosts"`
	// Severities maps a category to its alert severity. Categories missing
	// from the map fall back to medium.
	Severities map[Category]Severity `yaml:"severities"`
}

// SeverityFor returns the configured severity for the category, medium when unmapped.
func (rs *RuleSet) SeverityFor(c Category) Severity {
	if s, ok := rs.Severities[c]; ok && s != "" {
		return s
	}
	return SeverityMedium
}

// DefaultRuleSet returns the built-in rule tables.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		ViolationFamilies: []DomainFamily{
			{Category: CategorySocialMedia, Domains: []string{
				"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
				"reddit.com", "snapchat.com", "pinterest.com", "threads.net", "tumblr.com",
			}},
			{Category: CategoryGaming, Domains: []string{
				"twitch.tv", "steampowered.com", "steamcommunity.com", "roblox.com",
				"epicgames.com", "miniclip.com", "battle.net", "leagueoflegends.com",
				"ea.com", "chess.com", "poki.com",
			}},
			{Category: CategoryEntertainment, Domains: []string{
				"youtube.com", "netflix.com", "hulu.com", "disneyplus.com", "primevideo.com",
				"hbomax.com", "max.com", "spotify.com", "soundcloud.com", "vimeo.com",
				"dailymotion.com", "crunchyroll.com", "9gag.com", "buzzfeed.com",
			}},
			{Category: CategoryShopping, Domains: []string{
				"amazon.com", "ebay.com", "etsy.com", "aliexpress.com", "walmart.com",
				"target.com", "bestbuy.com", "shein.com", "temu.com", "wish.com",
			}},
			{Category: CategoryDating, Domains: []string{
				"tinder.com", "bumble.com", "hinge.co", "okcupid.com", "match.com",
				"badoo.com", "pof.com", "grindr.com",
			}},
			{Category: CategoryAdultContent, Domains: []string{
				"pornhub.com", "xvideos.com", "xnxx.com", "onlyfans.com", "redtube.com",
				"youporn.com", "chaturbate.com",
			}},
		},
		ViolationPaths: []PathRule{
			{Domain: "youtube.com", Prefix: "/watch", Category: CategoryEntertainment},
			{Domain: "youtube.com", Prefix: "/shorts", Category: CategoryEntertainment},
			{Domain: "vk.com", Prefix: "/video", Category: CategoryEntertainment},
		},
		ViolationKeywords: []KeywordRule{
			{Keyword: "casino", Category: CategoryGaming},
			{Keyword: "poker", Category: CategoryGaming},
			{Keyword: "betting", Category: CategoryGaming},
			{Keyword: "porn", Category: CategoryAdultContent},
			{Keyword: "xxx", Category: CategoryAdultContent},
			{Keyword: "dating", Category: CategoryDating},
			{Keyword: "sale", Category: CategoryShopping},
			{Keyword: "shopping cart", Category: CategoryShopping},
			{Keyword: "movie", Category: CategoryEntertainment},
			{Keyword: "episode", Category: CategoryEntertainment},
			{Keyword: "meme", Category: CategoryEntertainment},
		},
		WorkDomains: []string{
			"github.com", "gitlab.com", "bitbucket.org", "stackoverflow.com",
			"stackexchange.com", "atlassian.net", "atlassian.com", "slack.com",
			"notion.so", "figma.com", "trello.com", "asana.com", "linear.app",
			"clickup.com", "monday.com", "miro.com", "zoom.us", "office.com",
			"sharepoint.com", "salesforce.com", "hubspot.com", "zendesk.com",
			"vercel.com", "cloudflare.com", "datadoghq.com", "grafana.com",
			"pagerduty.com", "golang.org", "go.dev", "pkg.go.dev", "npmjs.com",
			"developer.mozilla.org", "readthedocs.io",
		},
		WorkKeywords: []string{
			"documentation", "docs", "jira", "confluence", "ticket", "dashboard",
			"console", "admin panel", "pull request", "merge request", "repository",
			"sprint", "standup", "crm", "invoice", "timesheet", "api reference",
		},
		SearchHosts: []string{
			"google.com", "bing.com", "duckduckgo.com", "search.yahoo.com",
			"baidu.com", "ecosia.org",
		},
		SharedWorkPaths: []SharedHostPaths{
			{Host: "google.com", Prefixes: []string{
				"/document", "/spreadsheets", "/presentation", "/forms",
				"/drive", "/calendar", "/mail",
			}},
			{Host: "microsoft.com", Prefixes: []string{"/microsoft-365", "/teams"}},
		},
		SelfHosts: []string{
			"localhost", "127.0.0.1", "0.0.0.0",
			"complyview.app", "complyview-dashboard.vercel.app",
		},
		Severities: map[Category]Severity{
			CategorySocialMedia:   SeverityHigh,
			CategoryGaming:        SeverityHigh,
			CategoryDating:        SeverityHigh,
			CategoryEntertainment: SeverityMedium,
			CategoryShopping:      SeverityMedium,
			CategoryAdultContent:  SeverityCritical,
			CategoryGeneric:       SeverityMedium,
		},
	}
}

// LoadRules reads a YAML rule file and merges it over the defaults: list
// fields extend the defaults, severity entries override per category. An
// empty path returns the defaults unchanged.
func LoadRules(path string) (*RuleSet, error) {
	rs := DefaultRuleSet()
	if path == "" {
		return rs, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read rules file: %w", err)
	}
	var overlay RuleSet
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("policy: parse rules file: %w", err)
	}

	rs.ViolationFamilies = append(rs.ViolationFamilies, overlay.ViolationFamilies...)
	rs.ViolationPaths = append(rs.ViolationPaths, overlay.ViolationPaths...)
	rs.ViolationKeywords = append(rs.ViolationKeywords, overlay.ViolationKeywords...)
	rs.WorkDomains = append(rs.WorkDomains, overlay.WorkDomains...)
	rs.WorkKeywords = append(rs.WorkKeywords, overlay.WorkKeywords...)
	rs.SearchHosts = append(rs.SearchHosts, overlay.SearchHosts...)
	rs.SharedWorkPaths = append(rs.SharedWorkPaths, overlay.SharedWorkPaths...)
	rs.SelfHosts = append(rs.SelfHosts, overlay.SelfHosts...)
	for c, s := range overlay.Severities {
		rs.Severities[c] = s
	}
	return rs, nil
}
