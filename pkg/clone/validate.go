package clone

import (
	"github.com/nxsync/nxsync/pkg/schema"
	"github.com/tidwall/gjson"
)

// ValidateSchema walks every section of table in raw and sorts each key into
// known, skipped or unknown. Unknown keys come back as warnings naming the key
// with its section path; skipped keys come back qualified the same way.
func ValidateSchema(raw []byte, table schema.Table) (warnings, skipped []string) {
	root := gjson.ParseBytes(raw)
	for _, sec := range table.Sections {
		obj := root
		if sec.Path != "" {
			obj = root.Get(sec.Path)
		}
		if !obj.IsObject() {
			continue
		}
		obj.ForEach(func(key, _ gjson.Result) bool {
			k := key.String()
			name := qualify(sec.Path, k)
			switch {
			case sec.IsKnown(k):
			case sec.IsSkipped(k):
				skipped = append(skipped, name)
			default:
				warnings = append(warnings, `unknown field "`+name+`"`)
			}
			return true
		})
	}
	return warnings, skipped
}

func qualify(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
