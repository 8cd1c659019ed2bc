package profilediff

import (
	"sort"

	"github.com/tidwall/gjson"
)

// Row is one line of a comparison table. Values has one cell per profile.
type Row struct {
	Label   string   `json:"label" yaml:"label"`
	Values  []string `json:"values" yaml:"values"`
	HasDiff bool     `json:"hasDiff" yaml:"hasDiff"`
}

func valuesAt(snaps []Snapshot, path string) []gjson.Result {
	out := make([]gjson.Result, len(snaps))
	for i, s := range snaps {
		out[i] = s.Root.Get(path)
	}
	return out
}

func rowFor(label string, values []gjson.Result) Row {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = format(v)
	}
	return Row{Label: label, Values: cells, HasDiff: !allEqual(values)}
}

// flatRows compares one scalar field per row.
func flatRows(snaps []Snapshot, section string, fields []string) []Row {
	rows := make([]Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, rowFor(f, valuesAt(snaps, section+"."+f)))
	}
	return rows
}

// nestedRows expands object-valued fields into one row per subfield and falls
// back to a flat row for everything else.
func nestedRows(snaps []Snapshot, section string, fields []string) []Row {
	var rows []Row
	for _, f := range fields {
		values := valuesAt(snaps, section+"."+f)

		var subkeys []string
		seen := map[string]bool{}
		isObject := false
		for _, v := range values {
			if !v.IsObject() {
				continue
			}
			isObject = true
			v.ForEach(func(key, _ gjson.Result) bool {
				if k := key.String(); !seen[k] {
					seen[k] = true
					subkeys = append(subkeys, k)
				}
				return true
			})
		}
		if !isObject {
			rows = append(rows, rowFor(f, values))
			continue
		}
		for _, sub := range subkeys {
			rows = append(rows, rowFor(f+"."+sub, valuesAt(snaps, section+"."+f+"."+gjsonEscape(sub))))
		}
	}
	return rows
}

// keyedListRows compares list members by id. With withActive the cell also
// reflects the member's active flag; without it, presence alone counts.
func keyedListRows(snaps []Snapshot, path string, withActive bool) []Row {
	states := make([]map[string]bool, len(snaps))
	union := map[string]bool{}
	for i, s := range snaps {
		states[i] = map[string]bool{}
		s.Root.Get(path).ForEach(func(_, item gjson.Result) bool {
			id := item.Get("id").String()
			if id == "" {
				return true
			}
			active := true
			if withActive {
				active = item.Get("active").Bool()
			}
			states[i][id] = active
			union[id] = true
			return true
		})
	}
	return presenceRows(union, states)
}

// domainListRows compares a denylist or allowlist domain by domain.
func domainListRows(snaps []Snapshot, pick func(Snapshot) map[string]bool) []Row {
	states := make([]map[string]bool, len(snaps))
	union := map[string]bool{}
	for i, s := range snaps {
		states[i] = pick(s)
		for d := range states[i] {
			union[d] = true
		}
	}
	return presenceRows(union, states)
}

func presenceRows(union map[string]bool, states []map[string]bool) []Row {
	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		cells := make([]string, len(states))
		for i, st := range states {
			active, ok := st[id]
			switch {
			case !ok:
				cells[i] = markMissing
			case active:
				cells[i] = markOn
			default:
				cells[i] = markOff
			}
		}
		row := Row{Label: id, Values: cells}
		for i := 1; i < len(cells); i++ {
			if cells[i] != cells[0] {
				row.HasDiff = true
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// gjsonEscape escapes path metacharacters in a single key.
func gjsonEscape(key string) string {
	var out []rune
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
