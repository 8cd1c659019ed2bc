package clone

import (
	"encoding/json"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/schema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultCloneName = "Cloned Profile"

// Default flag values used when the source omits a flag. The vendor defaults to
// protection on and restrictions off.
var flagDefaults = map[string]bool{
	"security":        true,
	"privacy":         true,
	"parentalControl": false,
}

// sourceRoot returns the raw object of a profile, falling back to its typed fields.
func sourceRoot(pd *nextdns.ProfileData) gjson.Result {
	if pd == nil {
		return gjson.Parse(`{}`)
	}
	if len(pd.Raw) > 0 {
		return gjson.ParseBytes(pd.Raw)
	}
	b, _ := json.Marshal(pd)
	return gjson.ParseBytes(b)
}

// builder writes only keys the schema table knows, so a key that fails
// validation can never reach a create call.
type builder struct {
	table schema.Table
	out   []byte
}

func (b *builder) set(section, key string, value interface{}) {
	if !b.table.Known(section, key) {
		return
	}
	b.out, _ = sjson.SetBytes(b.out, qualify(section, key), value)
}

func (b *builder) setRaw(section, key, raw string) {
	if !b.table.Known(section, key) {
		return
	}
	b.out, _ = sjson.SetRawBytes(b.out, qualify(section, key), []byte(raw))
}

// ReconstructPayload turns a read-shaped profile into a create body. Sections
// missing from the source are left out. Server-generated fields and the
// parental recreation schedule are never written.
func ReconstructPayload(src *nextdns.ProfileData, table schema.Table) json.RawMessage {
	root := sourceRoot(src)
	b := &builder{table: table, out: []byte(`{}`)}

	name := root.Get("name").String()
	if name == "" {
		name = defaultCloneName
	}
	b.set("", "name", name+" (Copy)")

	if sec := root.Get("security"); sec.IsObject() {
		b.setRaw("", "security", `{}`)
		for _, f := range schema.SecurityFlags {
			b.set("security", f, flag(sec.Get(f), flagDefaults["security"]))
		}
		if tlds := sec.Get("tlds"); tlds.IsArray() {
			b.set("security", "tlds", idItems(tlds))
		}
	}

	if priv := root.Get("privacy"); priv.IsObject() {
		b.setRaw("", "privacy", `{}`)
		for _, f := range schema.PrivacyFlags {
			b.set("privacy", f, flag(priv.Get(f), flagDefaults["privacy"]))
		}
		for _, list := range []string{"blocklists", "natives"} {
			if items := priv.Get(list); items.IsArray() {
				b.set("privacy", list, idItems(items))
			}
		}
	}

	if pc := root.Get("parentalControl"); pc.IsObject() {
		b.setRaw("", "parentalControl", `{}`)
		for _, f := range schema.ParentalFlags {
			b.set("parentalControl", f, flag(pc.Get(f), flagDefaults["parentalControl"]))
		}
		for _, list := range []string{"services", "categories"} {
			if items := pc.Get(list); items.IsArray() {
				b.set("parentalControl", list, activeItems(items, false))
			}
		}
	}

	for _, lt := range nextdns.ListTypes {
		if items := root.Get(string(lt)); items.IsArray() {
			b.set("", string(lt), domainEntries(items))
		}
	}

	if settings := root.Get("settings"); settings.IsObject() {
		b.setRaw("", "settings", `{}`)
		settings.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if _, nested := table.Lookup(qualify("settings", k)); nested && value.IsObject() {
				b.setRaw("settings", k, knownOnly(value, table, qualify("settings", k)))
				return true
			}
			b.setRaw("settings", k, value.Raw)
			return true
		})
	}

	return b.out
}

func flag(v gjson.Result, def bool) bool {
	if v.Type == gjson.True || v.Type == gjson.False {
		return v.Bool()
	}
	return def
}

func idItems(list gjson.Result) []nextdns.IDItem {
	out := []nextdns.IDItem{}
	list.ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("id").String(); id != "" {
			out = append(out, nextdns.IDItem{ID: id})
		}
		return true
	})
	return out
}

func activeItems(list gjson.Result, def bool) []nextdns.ActiveItem {
	out := []nextdns.ActiveItem{}
	list.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			return true
		}
		active := flag(item.Get("active"), def)
		out = append(out, nextdns.ActiveItem{ID: id, Active: &active})
		return true
	})
	return out
}

func domainEntries(list gjson.Result) []nextdns.DomainEntry {
	out := []nextdns.DomainEntry{}
	list.ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("id").String(); id != "" {
			out = append(out, nextdns.DomainEntry{ID: id, Active: flag(item.Get("active"), true)})
		}
		return true
	})
	return out
}

// knownOnly copies the keys of obj that the table knows at path.
func knownOnly(obj gjson.Result, table schema.Table, path string) string {
	out := `{}`
	obj.ForEach(func(key, value gjson.Result) bool {
		if table.Known(path, key.String()) {
			out, _ = sjson.SetRaw(out, key.String(), value.Raw)
		}
		return true
	})
	return out
}
