package pagecraft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sqlite
sqlite_path: /var/lib/pagecraft.db
listen: 0.0.0.0:9000
log:
  level: debug
`), 0o600))
	t.Setenv("PAGECRAFT_LISTEN", "127.0.0.1:9100")
	t.Setenv("PAGECRAFT_READ_ONLY", "true")
	t.Setenv("PAGECRAFT_ALLOWED_ORIGINS", "https://editor.example,https://preview.example")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/var/lib/pagecraft.db", cfg.SQLitePath)
	assert.Equal(t, "127.0.0.1:9100", cfg.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, []string{"https://editor.example", "https://preview.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "pagecraft", cfg.SurrealDB.Namespace, "defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backnd: badger\n"), 0o600))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory needs no path", func(c *Config) { c.Backend = BackendMemory; c.DataDir = "" }, true},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, false},
		{"badger without dir", func(c *Config) { c.DataDir = "" }, false},
		{"sqlite without path", func(c *Config) { c.Backend = BackendSQLite }, false},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, false},
		{"bad listen", func(c *Config) { c.Listen = "nope" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"empty allowed origin", func(c *Config) { c.AllowedOrigins = []string{""} }, false},
		{"missing registry file", func(c *Config) { c.Registry = "/does/not/exist.yaml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
