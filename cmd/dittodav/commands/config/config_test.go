package config

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Stores["archive"] = config.StoreConfig{
		Type:       "filesystem",
		Filesystem: config.FilesystemStoreConfig{Path: "/srv/archive"},
	}
	cfg.Shares = append(cfg.Shares, config.ShareConfig{
		Name: "/archive", Store: "archive", Root: "/2025", ReadOnly: true,
	})
	return cfg
}

func TestSharesTable(t *testing.T) {
	table := sharesTable(testConfig())

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"/", "default", "memory", "/", "false"}, rows[0])
	assert.Equal(t, []string{"/archive", "archive", "filesystem", "/2025", "true"}, rows[1])
}

func TestConfigWarnings(t *testing.T) {
	cfg := testConfig()

	warnings := configWarnings(cfg)
	assert.Contains(t, warnings, "Lock persistence disabled - explicit locks are lost on restart")
	assert.Contains(t, warnings, "Share / uses an in-memory store - content is lost on restart")
	assert.Len(t, warnings, 2)

	disabled := false
	cfg.Lock.Enabled = &disabled
	assert.Contains(t, configWarnings(cfg), "Locking disabled - LOCK requests will return 501")
}

func TestConfigSummary(t *testing.T) {
	summary := configSummary(testConfig())

	values := make(map[string]string, len(summary))
	for _, pair := range summary {
		values[pair[0]] = pair[1]
	}
	assert.Equal(t, "2", values["Shares"])
	assert.Equal(t, "2", values["Stores"])
	assert.Equal(t, "fastest", values["Transfer mode"])
	assert.Equal(t, "enabled", values["Locking"])
	assert.Equal(t, "disabled", values["Remote transfers"])
}

func TestGenerateSchema(t *testing.T) {
	data, err := generateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "DittoDAV Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "shares")
	assert.Contains(t, props, "stores")
	assert.Contains(t, props, "lock")

	timeout, ok := props["shutdown_timeout"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", timeout["type"])
	assert.Regexp(t, timeout["pattern"], "1h30m")
	assert.NotRegexp(t, timeout["pattern"], "30")
}

func TestSchemaTypeByteSize(t *testing.T) {
	s := schemaType(byteSizeType)
	require.NotNil(t, s)
	require.Len(t, s.OneOf, 2)
	assert.Regexp(t, s.OneOf[1].Pattern, "64Ki")
	assert.Regexp(t, s.OneOf[1].Pattern, "100 MB")
	assert.NotRegexp(t, s.OneOf[1].Pattern, "64 bananas")

	assert.Nil(t, schemaType(reflect.TypeOf("")))
}
