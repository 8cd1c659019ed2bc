package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTable(t *testing.T) {
	assert.True(t, Default.Known("", "name"))
	assert.False(t, Default.Known("", "id"))
	assert.True(t, Default.Skipped("", "fingerprint"))
	assert.True(t, Default.Skipped("parentalControl", "recreation"))
	assert.False(t, Default.Known("parentalControl", "recreation"))
	assert.True(t, Default.Known("security", "csam"))
	assert.True(t, Default.Known("security", "tlds"))
	assert.True(t, Default.Known("settings.performance", "cnameFlattening"))
	assert.False(t, Default.Known("nope", "name"))

	_, ok := Default.Lookup("settings.logs")
	assert.True(t, ok)
	assert.Len(t, SecurityFlags, 12)
}

func TestSectionsDoNotOverlap(t *testing.T) {
	for _, s := range Default.Sections {
		for _, k := range s.Skipped {
			assert.False(t, s.IsKnown(k), "%q in %q is both known and skipped", k, s.Path)
		}
	}
}
