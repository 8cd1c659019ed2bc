// Package schema holds the known-field table for profile resources. The clone
// validator and the payload builder both read from it so they cannot drift apart.
package schema

// Version is bumped whenever a section's key set changes.
const Version = "2025-06"

// Section lists the keys expected at one path of a profile object. Path "" is the root.
type Section struct {
	Path string
	// Known keys are understood and may be written back on create.
	Known []string
	// Skipped keys are expected on read but are server-generated or rejected on write.
	Skipped []string
}

func (s Section) has(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}

// IsKnown reports whether key is writable in this section.
func (s Section) IsKnown(key string) bool { return s.has(s.Known, key) }

// IsSkipped reports whether key is expected but never written.
func (s Section) IsSkipped(key string) bool { return s.has(s.Skipped, key) }

// Table is an ordered set of sections.
type Table struct {
	Version  string
	Sections []Section
}

// Lookup returns the section at path.
func (t Table) Lookup(path string) (Section, bool) {
	for _, s := range t.Sections {
		if s.Path == path {
			return s, true
		}
	}
	return Section{}, false
}

// Known reports whether key is writable at path. Unknown paths have no known keys.
func (t Table) Known(path, key string) bool {
	s, ok := t.Lookup(path)
	return ok && s.IsKnown(key)
}

// Skipped reports whether key is an expected but non-writable field at path.
func (t Table) Skipped(path, key string) bool {
	s, ok := t.Lookup(path)
	return ok && s.IsSkipped(key)
}

// Flag names per section, in display order.
var (
	SecurityFlags = []string{
		"threatIntelligenceFeeds",
		"aiThreatDetection",
		"googleSafeBrowsing",
		"cryptojacking",
		"dnsRebinding",
		"idnHomographs",
		"typosquatting",
		"dga",
		"nrd",
		"ddns",
		"parking",
		"csam",
	}
	PrivacyFlags  = []string{"disguisedTrackers", "allowAffiliate"}
	ParentalFlags = []string{"safeSearch", "youtubeRestrictedMode", "blockBypass"}
)

// Default is the table matching the current vendor API.
var Default = Table{
	Version: Version,
	Sections: []Section{
		{
			Path:    "",
			Known:   []string{"name", "security", "privacy", "parentalControl", "denylist", "allowlist", "settings", "rewrites"},
			Skipped: []string{"id", "fingerprint", "setup"},
		},
		{
			Path:  "security",
			Known: append(append([]string{}, SecurityFlags...), "tlds"),
		},
		{
			Path:  "privacy",
			Known: append(append([]string{}, PrivacyFlags...), "blocklists", "natives"),
		},
		{
			Path:    "parentalControl",
			Known:   append(append([]string{}, ParentalFlags...), "services", "categories"),
			Skipped: []string{"recreation"},
		},
		{
			Path:  "settings",
			Known: []string{"logs", "blockPage", "performance", "web3", "bav"},
		},
		{
			Path:  "settings.logs",
			Known: []string{"enabled", "drop", "retention", "location"},
		},
		{
			Path:  "settings.performance",
			Known: []string{"ecs", "cacheBoost", "cnameFlattening"},
		},
	},
}
