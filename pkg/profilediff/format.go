package profilediff

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	maxCellWidth = 30
	ellipsis     = "…"
	markOn       = "✓"
	markOff      = "✗"
	markMissing  = "-"
	markObject   = "{…}"
)

// format renders a raw value for display only. It never takes part in comparison.
func format(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return markMissing
	case v.Type == gjson.True:
		return markOn
	case v.Type == gjson.False:
		return markOff
	case v.IsArray():
		return strconv.Itoa(len(v.Array()))
	case v.IsObject():
		return markObject
	case v.Type == gjson.String:
		return truncate(v.String(), maxCellWidth)
	default:
		return v.Raw
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + ellipsis
}

// normalize turns a raw value into a comparable form. Arrays become sorted sets:
// of ids when the elements carry one, of their normalized values otherwise.
func normalize(v gjson.Result) interface{} {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil
	case v.IsArray():
		items := v.Array()
		keys := make([]string, 0, len(items))
		for _, item := range items {
			if id := item.Get("id"); item.IsObject() && id.Exists() {
				keys = append(keys, id.String())
				continue
			}
			keys = append(keys, fmt.Sprint(normalize(item)))
		}
		sort.Strings(keys)
		return keys
	case v.IsObject():
		m := map[string]interface{}{}
		v.ForEach(func(key, value gjson.Result) bool {
			m[key.String()] = normalize(value)
			return true
		})
		return m
	default:
		return v.Value()
	}
}

// allEqual reports whether every value is structurally equal after normalization.
func allEqual(values []gjson.Result) bool {
	if len(values) < 2 {
		return true
	}
	first := normalize(values[0])
	for _, v := range values[1:] {
		if !reflect.DeepEqual(first, normalize(v)) {
			return false
		}
	}
	return true
}
