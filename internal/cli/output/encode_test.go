package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shareRow struct {
	Name     string `json:"name" yaml:"name"`
	ReadOnly bool   `json:"read_only" yaml:"read_only"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, []shareRow{{Name: "/docs"}, {Name: "/media", ReadOnly: true}}))

	out := buf.String()
	assert.Contains(t, out, `"name": "/docs"`)
	assert.Contains(t, out, `"read_only": true`)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, []shareRow{{Name: "/docs"}, {Name: "/media", ReadOnly: true}}))

	out := buf.String()
	assert.Contains(t, out, "- name: /docs")
	assert.Contains(t, out, "  read_only: true")
}

type credentials struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Password        string `yaml:"password,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type endpoints struct {
	Remote []credentials `yaml:"remote"`
}

func TestSecretsMasked(t *testing.T) {
	data := endpoints{Remote: []credentials{
		{Host: "backup", Port: 5432, Password: "hunter2", SecretAccessKey: "AKIA/secret"},
		{Host: "mirror", Port: 8080},
	}}

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintYAML(&buf, data))

		out := buf.String()
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "AKIA/secret")
		assert.Contains(t, out, secretMask)
		assert.Contains(t, out, "host: mirror")
		assert.Contains(t, out, `secret_access_key: ""`)
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintJSON(&buf, data))

		out := buf.String()
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "AKIA/secret")
		assert.Contains(t, out, `"Password": "`+secretMask+`"`)
		assert.Contains(t, out, `"Port": 5432`)
	})
}

func TestPrintJSONKeepsLargeIntegers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int64{"max_buffer": 64 << 20}))
	assert.Contains(t, buf.String(), `"max_buffer": 67108864`)
}
