package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrint(t *testing.T) {
	table := NewTableData("Share", "Store")
	table.AddRow("/docs", "main")

	t.Run("TableRenderer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatTable, table))
		assert.Contains(t, buf.String(), "SHARE")
		assert.Contains(t, buf.String(), "/docs")
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatTable, map[string]string{"share": "/docs"}))
		assert.Contains(t, buf.String(), `"share": "/docs"`)
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatYAML, map[string]string{"share": "/docs"}))
		assert.Equal(t, "share: /docs\n", buf.String())
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.Error(t, Print(&bytes.Buffer{}, Format("xml"), nil))
	})
}

func TestStatus(t *testing.T) {
	var buf bytes.Buffer
	Status(&buf, true, false, "ok")
	assert.Equal(t, "ok\n", buf.String())

	buf.Reset()
	Status(&buf, true, true, "ok")
	assert.Contains(t, buf.String(), "\033[32m")

	buf.Reset()
	Status(&buf, false, true, "bad")
	assert.Contains(t, buf.String(), "\033[31m")
}
