package clone

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/schema"
	diff "github.com/r3labs/diff/v3"
	"github.com/tidwall/gjson"
)

// Verify compares a source profile with its clone and returns one line per
// discrepancy. Domain lists are compared by entry count only. Settings are
// compared for the blocks present in the source; the recreation schedule is
// never compared because it is never written.
func Verify(src, dst *nextdns.ProfileData, srcRewrites, dstRewrites []nextdns.Rewrite) []string {
	s, d := sourceRoot(src), sourceRoot(dst)
	var out []string

	flags := []struct {
		section string
		names   []string
	}{
		{"security", schema.SecurityFlags},
		{"privacy", schema.PrivacyFlags},
		{"parentalControl", schema.ParentalFlags},
	}
	for _, f := range flags {
		def := flagDefaults[f.section]
		for _, name := range f.names {
			path := f.section + "." + name
			if a, b := flag(s.Get(path), def), flag(d.Get(path), def); a != b {
				out = append(out, fmt.Sprintf("%s: source=%t destination=%t", path, a, b))
			}
		}
	}

	for _, path := range []string{"security.tlds", "privacy.blocklists", "privacy.natives"} {
		a, b := idSet(s.Get(path)), idSet(d.Get(path))
		if !reflect.DeepEqual(a, b) {
			out = append(out, fmt.Sprintf("%s: source=[%s] destination=[%s]", path, strings.Join(a, ","), strings.Join(b, ",")))
		}
	}

	for _, path := range []string{"parentalControl.services", "parentalControl.categories"} {
		out = append(out, activeMapMismatches(path, s.Get(path), d.Get(path))...)
	}

	for _, lt := range nextdns.ListTypes {
		a, b := len(s.Get(string(lt)).Array()), len(d.Get(string(lt)).Array())
		if a != b {
			out = append(out, fmt.Sprintf("%s: source has %d entries, destination has %d", lt, a, b))
		}
	}

	out = append(out, settingsMismatches(src, dst)...)
	out = append(out, rewriteMismatches(srcRewrites, dstRewrites)...)
	return out
}

func idSet(list gjson.Result) []string {
	ids := []string{}
	for _, item := range idItems(list) {
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)
	return ids
}

func activeMap(list gjson.Result) map[string]bool {
	m := map[string]bool{}
	for _, item := range activeItems(list, false) {
		m[item.ID] = *item.Active
	}
	return m
}

func activeMapMismatches(path string, src, dst gjson.Result) []string {
	a, b := activeMap(src), activeMap(dst)
	ids := map[string]bool{}
	for id := range a {
		ids[id] = true
	}
	for id := range b {
		ids[id] = true
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var out []string
	for _, id := range sorted {
		av, inA := a[id]
		bv, inB := b[id]
		switch {
		case !inB:
			out = append(out, fmt.Sprintf("%s.%s: missing in destination", path, id))
		case !inA:
			out = append(out, fmt.Sprintf("%s.%s: not in source", path, id))
		case av != bv:
			out = append(out, fmt.Sprintf("%s.%s: source active=%t destination active=%t", path, id, av, bv))
		}
	}
	return out
}

// settingsMismatches diffs the typed settings trees, limited to the blocks the
// source actually has.
func settingsMismatches(src, dst *nextdns.ProfileData) []string {
	if src == nil || src.Settings == nil {
		return nil
	}
	have := &nextdns.Settings{}
	if dst != nil && dst.Settings != nil {
		ds := dst.Settings
		if src.Settings.Logs != nil {
			have.Logs = ds.Logs
		}
		if src.Settings.BlockPage != nil {
			have.BlockPage = ds.BlockPage
		}
		if src.Settings.Performance != nil {
			have.Performance = ds.Performance
		}
		if src.Settings.Web3 != nil {
			have.Web3 = ds.Web3
		}
		if src.Settings.BAV != nil {
			have.BAV = ds.BAV
		}
	}

	changelog, err := diff.Diff(src.Settings, have)
	if err != nil {
		return []string{fmt.Sprintf("settings: could not compare: %v", err)}
	}
	out := make([]string, 0, len(changelog))
	for _, change := range changelog {
		fullPath := "settings." + strings.Join(change.Path, ".")
		switch change.Type {
		case diff.DELETE:
			out = append(out, fmt.Sprintf("%s: source=%s destination=-", fullPath, display(change.From)))
		case diff.CREATE:
			out = append(out, fmt.Sprintf("%s: source=- destination=%s", fullPath, display(change.To)))
		default:
			out = append(out, fmt.Sprintf("%s: source=%s destination=%s", fullPath, display(change.From), display(change.To)))
		}
	}
	return out
}

func display(v interface{}) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "-"
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%+v", rv.Interface())
}

type rewriteKey struct{ name, content string }

func rewriteSet(rws []nextdns.Rewrite) map[rewriteKey]bool {
	m := make(map[rewriteKey]bool, len(rws))
	for _, rw := range rws {
		m[rewriteKey{rw.Name, rw.Content}] = true
	}
	return m
}

func rewriteMismatches(src, dst []nextdns.Rewrite) []string {
	a, b := rewriteSet(src), rewriteSet(dst)
	var out []string
	for _, rw := range src {
		if k := (rewriteKey{rw.Name, rw.Content}); !b[k] {
			out = append(out, fmt.Sprintf("rewrite %s -> %s: missing in destination", rw.Name, rw.Content))
			b[k] = true
		}
	}
	for _, rw := range dst {
		if k := (rewriteKey{rw.Name, rw.Content}); !a[k] {
			out = append(out, fmt.Sprintf("rewrite %s -> %s: not in source", rw.Name, rw.Content))
			a[k] = true
		}
	}
	return out
}
