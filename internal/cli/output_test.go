package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrinter_Formats(t *testing.T) {
	for _, format := range []string{FormatTable, FormatJSON, FormatYAML} {
		_, err := NewPrinter(io.Discard, io.Discard, format)
		assert.NoError(t, err, format)
	}
	_, err := NewPrinter(io.Discard, io.Discard, "csv")
	assert.Error(t, err)
}

func TestPrinter_Messages(t *testing.T) {
	var out, errOut bytes.Buffer
	p, err := NewPrinter(&out, &errOut, FormatTable)
	require.NoError(t, err)

	p.Success("Created %d rules", 2)
	p.Info("note")
	p.Error("failed: %s", "boom")

	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "Created 2 rules")
	assert.Contains(t, out.String(), "note")
	assert.Contains(t, errOut.String(), "failed: boom")
	assert.False(t, p.Structured())
}

func TestPrinter_Render(t *testing.T) {
	value := map[string]any{"id": "rule_1", "count": 2}

	var out bytes.Buffer
	p, _ := NewPrinter(&out, io.Discard, FormatJSON)
	require.NoError(t, p.Render(value, nil))
	assert.JSONEq(t, `{"id":"rule_1","count":2}`, out.String())

	out.Reset()
	p, _ = NewPrinter(&out, io.Discard, FormatYAML)
	require.NoError(t, p.Render(value, nil))
	assert.Contains(t, out.String(), "id: rule_1")
	assert.Contains(t, out.String(), "count: 2")

	out.Reset()
	p, _ = NewPrinter(&out, io.Discard, FormatTable)
	called := false
	require.NoError(t, p.Render(value, func(w io.Writer) { called = true }))
	assert.True(t, called)
}

func TestTable_Render(t *testing.T) {
	table := NewTable("ID", "SID")
	table.AddRow("rule_abc", "1")
	table.AddRow("rule_d", "1000001")

	var out bytes.Buffer
	table.Render(&out)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Equal(t, "--------  -------  ", lines[1])
	assert.Equal(t, "rule_abc  1        ", lines[2])
	assert.Equal(t, "rule_d    1000001  ", lines[3])
}
