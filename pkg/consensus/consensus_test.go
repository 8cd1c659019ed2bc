package consensus

import (
	"testing"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/stretchr/testify/assert"
)

func entries(pairs ...interface{}) []nextdns.DomainEntry {
	var out []nextdns.DomainEntry
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, nextdns.DomainEntry{ID: pairs[i].(string), Active: pairs[i+1].(bool)})
	}
	return out
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name      string
		snapshots map[string][]nextdns.DomainEntry
		want      Canonical
	}{
		{
			name:      "empty",
			snapshots: map[string][]nextdns.DomainEntry{"p1": nil, "p2": nil},
			want:      Canonical{},
		},
		{
			name: "tie resolves to enabled",
			snapshots: map[string][]nextdns.DomainEntry{
				"p1": entries("a.com", true),
				"p2": entries("a.com", false),
			},
			want: Canonical{"a.com": true},
		},
		{
			name: "missing profiles do not vote",
			snapshots: map[string][]nextdns.DomainEntry{
				"p1": entries("a.com", false),
				"p2": nil,
				"p3": nil,
			},
			want: Canonical{"a.com": false},
		},
		{
			name: "majority disabled",
			snapshots: map[string][]nextdns.DomainEntry{
				"p1": entries("a.com", false),
				"p2": entries("a.com", false),
				"p3": entries("a.com", true),
			},
			want: Canonical{"a.com": false},
		},
		{
			name: "duplicate entry counts once",
			snapshots: map[string][]nextdns.DomainEntry{
				"p1": entries("a.com", false, "a.com", true, "a.com", true),
				"p2": entries("a.com", false),
				"p3": entries("a.com", true),
			},
			want: Canonical{"a.com": false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.snapshots))
		})
	}
}

func TestThreeProfileScenario(t *testing.T) {
	snapshots := map[string][]nextdns.DomainEntry{
		"P1": entries("a.com", true, "b.com", false),
		"P2": entries("a.com", true, "b.com", false),
		"P3": entries("a.com", false, "c.com", true),
	}
	order := []string{"P1", "P2", "P3"}

	canonical := Canonicalize(snapshots)
	assert.Equal(t, Canonical{"a.com": true, "b.com": false, "c.com": true}, canonical)

	plan := PlanOperations(snapshots, order, canonical, nextdns.Denylist)
	assert.Equal(t, []Operation{
		{Kind: KindAdd, ProfileID: "P3", Domain: "b.com", TargetActive: false, ListType: nextdns.Denylist},
		{Kind: KindAdd, ProfileID: "P1", Domain: "c.com", TargetActive: true, ListType: nextdns.Denylist},
		{Kind: KindAdd, ProfileID: "P2", Domain: "c.com", TargetActive: true, ListType: nextdns.Denylist},
	}, plan.ToAdd)
	assert.Equal(t, []Operation{
		{Kind: KindUpdate, ProfileID: "P3", Domain: "a.com", TargetActive: true, ListType: nextdns.Denylist},
	}, plan.ToUpdate)
	assert.Equal(t, 4, plan.Len())
	assert.Equal(t, KindAdd, plan.All()[0].Kind)
	assert.Equal(t, KindUpdate, plan.All()[3].Kind)
}

func TestPlanIsIdempotent(t *testing.T) {
	snapshots := map[string][]nextdns.DomainEntry{
		"P1": entries("a.com", true, "b.com", false),
		"P2": entries("a.com", false, "c.com", true),
	}
	order := []string{"P1", "P2"}
	canonical := Canonicalize(snapshots)
	plan := PlanOperations(snapshots, order, canonical, nextdns.Allowlist)

	// Apply the plan in memory.
	applied := map[string]map[string]bool{"P1": {}, "P2": {}}
	for id, list := range snapshots {
		for _, e := range list {
			applied[id][e.ID] = e.Active
		}
	}
	for _, op := range plan.All() {
		applied[op.ProfileID][op.Domain] = op.TargetActive
	}
	after := map[string][]nextdns.DomainEntry{}
	for id, m := range applied {
		for d, a := range m {
			after[id] = append(after[id], nextdns.DomainEntry{ID: d, Active: a})
		}
	}

	assert.Equal(t, canonical, Canonicalize(after))
	again := PlanOperations(after, order, Canonicalize(after), nextdns.Allowlist)
	assert.Empty(t, again.ToAdd)
	assert.Empty(t, again.ToUpdate)
}

func TestTally(t *testing.T) {
	snapshots := map[string][]nextdns.DomainEntry{
		"P1": entries("a.com", true),
		"P2": entries("a.com", false),
		"P3": nil,
	}
	assert.Equal(t, Count{Enabled: 1, Disabled: 1, Missing: 1}, Tally(snapshots, "a.com"))
}

func TestOperationString(t *testing.T) {
	op := Operation{Kind: KindUpdate, ProfileID: "p1", Domain: "a.com", TargetActive: false, ListType: nextdns.Allowlist}
	assert.Equal(t, "update a.com allowlist on p1 (disabled)", op.String())
}
