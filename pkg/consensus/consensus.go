// Package consensus computes the majority-vote state of a domain list across
// profiles and the operations that bring every profile to that state.
package consensus

import (
	"fmt"
	"sort"

	"github.com/nxsync/nxsync/pkg/nextdns"
)

// Canonical maps a domain to whether it should be active.
type Canonical map[string]bool

// Domains returns the canonical domains in ascending order.
func (c Canonical) Domains() []string {
	out := make([]string, 0, len(c))
	for d := range c {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

type Kind string

const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
)

// Operation brings one profile's entry for one domain to the canonical state.
type Operation struct {
	Kind         Kind             `json:"kind" yaml:"kind"`
	ProfileID    string           `json:"profileId" yaml:"profileId"`
	Domain       string           `json:"domain" yaml:"domain"`
	TargetActive bool             `json:"targetActive" yaml:"targetActive"`
	ListType     nextdns.ListType `json:"listType" yaml:"listType"`
}

func (o Operation) String() string {
	state := "disabled"
	if o.TargetActive {
		state = "enabled"
	}
	return fmt.Sprintf("%s %s %s on %s (%s)", o.Kind, o.Domain, o.ListType, o.ProfileID, state)
}

// Plan is the set of operations for one list type.
type Plan struct {
	ToAdd    []Operation `json:"toAdd" yaml:"toAdd"`
	ToUpdate []Operation `json:"toUpdate" yaml:"toUpdate"`
}

// All returns adds followed by updates.
func (p Plan) All() []Operation {
	out := make([]Operation, 0, p.Len())
	out = append(out, p.ToAdd...)
	return append(out, p.ToUpdate...)
}

func (p Plan) Len() int { return len(p.ToAdd) + len(p.ToUpdate) }

// Count is the vote tally for one domain.
type Count struct {
	Enabled  int `json:"enabled" yaml:"enabled"`
	Disabled int `json:"disabled" yaml:"disabled"`
	Missing  int `json:"missing" yaml:"missing"`
}

// index turns a list into a lookup. The first entry wins if a domain repeats.
func index(entries []nextdns.DomainEntry) map[string]bool {
	m := make(map[string]bool, len(entries))
	for _, e := range entries {
		if _, seen := m[e.ID]; !seen {
			m[e.ID] = e.Active
		}
	}
	return m
}

// Tally counts how the profiles vote on domain.
func Tally(snapshots map[string][]nextdns.DomainEntry, domain string) Count {
	var c Count
	for _, entries := range snapshots {
		active, ok := index(entries)[domain]
		switch {
		case !ok:
			c.Missing++
		case active:
			c.Enabled++
		default:
			c.Disabled++
		}
	}
	return c
}

// Canonicalize returns the majority state of every domain present in at least
// one profile. Profiles lacking a domain do not vote on it. Ties resolve to enabled.
func Canonicalize(snapshots map[string][]nextdns.DomainEntry) Canonical {
	enabled := map[string]int{}
	disabled := map[string]int{}
	for _, entries := range snapshots {
		for domain, active := range index(entries) {
			if active {
				enabled[domain]++
			} else {
				disabled[domain]++
			}
		}
	}

	canonical := Canonical{}
	for domain, n := range enabled {
		canonical[domain] = n >= disabled[domain]
	}
	for domain := range disabled {
		if _, ok := canonical[domain]; !ok {
			canonical[domain] = false
		}
	}
	return canonical
}

// PlanOperations lists the adds and updates needed for every profile in order to
// match canonical. Domains are visited in sorted order, then profiles in the given
// order, so the result is stable. Profiles in order without a snapshot are treated
// as having an empty list.
func PlanOperations(snapshots map[string][]nextdns.DomainEntry, order []string, canonical Canonical, lt nextdns.ListType) Plan {
	indexed := make(map[string]map[string]bool, len(order))
	for _, id := range order {
		indexed[id] = index(snapshots[id])
	}

	var plan Plan
	for _, domain := range canonical.Domains() {
		want := canonical[domain]
		for _, id := range order {
			have, ok := indexed[id][domain]
			op := Operation{ProfileID: id, Domain: domain, TargetActive: want, ListType: lt}
			switch {
			case !ok:
				op.Kind = KindAdd
				plan.ToAdd = append(plan.ToAdd, op)
			case have != want:
				op.Kind = KindUpdate
				plan.ToUpdate = append(plan.ToUpdate, op)
			}
		}
	}
	return plan
}
