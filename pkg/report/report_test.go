package report

import (
	"bytes"
	"io"
	"testing"

	"github.com/nxsync/nxsync/pkg/clone"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/profilediff"
	"github.com/nxsync/nxsync/pkg/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)
	f, err = ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	v := syncer.Summary{AddSuccess: 2, Results: []syncer.OperationResult{}}
	noTable := func(io.Writer) error { t.Fatal("table renderer called"); return nil }

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, v, noTable))
	assert.Contains(t, buf.String(), `"addSuccess": 2`)

	buf.Reset()
	require.NoError(t, Write(&buf, FormatYAML, v, noTable))
	assert.Contains(t, buf.String(), "addSuccess: 2")

	buf.Reset()
	require.NoError(t, Write(&buf, FormatTable, v, func(w io.Writer) error { return Summary(w, v) }))
	assert.Contains(t, buf.String(), "SUCCEEDED")
}

func TestDiffTable(t *testing.T) {
	res := &profilediff.Result{
		Profiles: []nextdns.Profile{{ID: "p1", Name: "Home"}, {ID: "p2"}},
		Tables: []profilediff.Table{{
			Title: "Security", Total: 12, DiffCount: 1,
			Rows: []profilediff.Row{{Label: "csam", Values: []string{"✓", "✗"}, HasDiff: true}},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, Diff(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "Security (12 total, 1 differing)")
	assert.Contains(t, out, "Home")
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "* csam")

	buf.Reset()
	require.NoError(t, Diff(&buf, &profilediff.Result{}))
	assert.Equal(t, "No differences found.\n", buf.String())
}

func TestCopyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Copy(&buf, clone.Result{
		FailedStep:     clone.StepValidate,
		Error:          "source profile has 1 field(s) unknown",
		SchemaWarnings: []string{`unknown field "security.x"`},
	}))
	assert.Contains(t, buf.String(), "Clone failed at validate")
	assert.Contains(t, buf.String(), `  - unknown field "security.x"`)
}
