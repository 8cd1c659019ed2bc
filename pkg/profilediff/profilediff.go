// Package profilediff builds side-by-side comparison tables of profile
// configurations, section by section.
package profilediff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/schema"
	"github.com/nxsync/nxsync/pkg/targets"
	"github.com/tidwall/gjson"
)

type Section string

const (
	SectionSecurity Section = "security"
	SectionPrivacy  Section = "privacy"
	SectionParental Section = "parental"
	SectionSettings Section = "settings"
	SectionLists    Section = "lists"
	SectionAll      Section = "all"
)

// AllSections is the order sections are rendered in.
var AllSections = []Section{SectionSecurity, SectionPrivacy, SectionParental, SectionSettings, SectionLists}

var settingsFields = []string{"logs", "blockPage", "performance", "web3", "bav"}

func ParseSection(s string) (Section, error) {
	sec := Section(strings.ToLower(strings.TrimSpace(s)))
	if sec == SectionAll {
		return sec, nil
	}
	for _, known := range AllSections {
		if sec == known {
			return sec, nil
		}
	}
	return "", fmt.Errorf("invalid section %q (expected security, privacy, parental, settings, lists or all)", s)
}

// expand resolves "all", drops duplicates and defaults to every section.
func expand(sections []Section) []Section {
	want := map[Section]bool{}
	for _, s := range sections {
		if s == SectionAll {
			return AllSections
		}
		want[s] = true
	}
	if len(want) == 0 {
		return AllSections
	}
	var out []Section
	for _, s := range AllSections {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot is the part of a profile the tables are built from.
type Snapshot struct {
	Profile   nextdns.Profile
	Root      gjson.Result
	Denylist  map[string]bool
	Allowlist map[string]bool
}

// NewSnapshot prefers the raw API object so fields this tool does not model
// still show up in nested tables.
func NewSnapshot(p nextdns.Profile, pd *nextdns.ProfileData) Snapshot {
	raw := []byte(pd.Raw)
	if len(raw) == 0 {
		raw, _ = json.Marshal(pd)
	}
	root := gjson.ParseBytes(raw)
	return Snapshot{
		Profile:   p,
		Root:      root,
		Denylist:  domainMap(root.Get(string(nextdns.Denylist))),
		Allowlist: domainMap(root.Get(string(nextdns.Allowlist))),
	}
}

func domainMap(list gjson.Result) map[string]bool {
	m := map[string]bool{}
	list.ForEach(func(_, item gjson.Result) bool {
		active := item.Get("active")
		m[item.Get("id").String()] = !active.Exists() || active.Bool()
		return true
	})
	return m
}

type Table struct {
	Title     string  `json:"title" yaml:"title"`
	Section   Section `json:"section" yaml:"section"`
	Rows      []Row   `json:"rows" yaml:"rows"`
	Total     int     `json:"total" yaml:"total"`
	DiffCount int     `json:"diffCount" yaml:"diffCount"`
}

func (t Table) Heading() string {
	return fmt.Sprintf("%s (%d total, %d differing)", t.Title, t.Total, t.DiffCount)
}

type Result struct {
	Profiles []nextdns.Profile `json:"profiles" yaml:"profiles"`
	Tables   []Table           `json:"tables" yaml:"tables"`
}

// Request configures Diff.
type Request struct {
	ProfileIDs []string
	Sections   []Section
	DiffOnly   bool
	// Delay is the pause between two profile fetches.
	Delay time.Duration
	Log   targets.Logger
}

// Diff fetches every selected profile in turn and compares them. Any fetch
// failure aborts the whole diff.
func Diff(ctx context.Context, api nextdns.API, req Request) (*Result, error) {
	log := targets.LoggerOrNop(req.Log)

	profiles, err := targets.Resolve(ctx, api, req.ProfileIDs, 2)
	if err != nil {
		return nil, err
	}
	if missing := targets.Missing(req.ProfileIDs, profiles); len(missing) > 0 {
		log.Warnf("Ignoring unknown profiles: %s", strings.Join(missing, ", "))
	}

	snaps := make([]Snapshot, 0, len(profiles))
	for i, p := range profiles {
		if i > 0 {
			if err := targets.Throttle(ctx, req.Delay); err != nil {
				return nil, err
			}
		}
		log.Debugf("Fetching profile %s", p.DisplayName())
		pd, err := api.GetProfile(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching profile %s: %w", p.ID, err)
		}
		snaps = append(snaps, NewSnapshot(p, pd))
	}

	return &Result{Profiles: profiles, Tables: Compare(snaps, req.Sections, req.DiffOnly)}, nil
}

// Compare builds the tables for the given sections. Counts always cover every
// row; diffOnly only filters what is kept, and drops tables left empty.
func Compare(snaps []Snapshot, sections []Section, diffOnly bool) []Table {
	var tables []Table
	add := func(sec Section, title string, rows []Row) {
		t := Table{Title: title, Section: sec, Total: len(rows), Rows: rows}
		for _, r := range rows {
			if r.HasDiff {
				t.DiffCount++
			}
		}
		if diffOnly {
			if t.DiffCount == 0 {
				return
			}
			kept := make([]Row, 0, t.DiffCount)
			for _, r := range rows {
				if r.HasDiff {
					kept = append(kept, r)
				}
			}
			t.Rows = kept
		}
		if t.Rows == nil {
			t.Rows = []Row{}
		}
		tables = append(tables, t)
	}

	for _, sec := range expand(sections) {
		switch sec {
		case SectionSecurity:
			add(sec, "Security", flatRows(snaps, "security", schema.SecurityFlags))
			add(sec, "Blocked TLDs", keyedListRows(snaps, "security.tlds", false))
		case SectionPrivacy:
			add(sec, "Privacy", flatRows(snaps, "privacy", schema.PrivacyFlags))
			add(sec, "Privacy Blocklists", keyedListRows(snaps, "privacy.blocklists", false))
			add(sec, "Native Tracking Protection", keyedListRows(snaps, "privacy.natives", false))
		case SectionParental:
			add(sec, "Parental Control", flatRows(snaps, "parentalControl", schema.ParentalFlags))
			add(sec, "Parental Services", keyedListRows(snaps, "parentalControl.services", true))
			add(sec, "Parental Categories", keyedListRows(snaps, "parentalControl.categories", true))
		case SectionSettings:
			add(sec, "Settings", nestedRows(snaps, "settings", settingsFields))
		case SectionLists:
			add(sec, "Denylist", domainListRows(snaps, func(s Snapshot) map[string]bool { return s.Denylist }))
			add(sec, "Allowlist", domainListRows(snaps, func(s Snapshot) map[string]bool { return s.Allowlist }))
		}
	}
	return tables
}
