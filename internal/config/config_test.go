package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "*/30 * * * *", cfg.RefreshCron)
	assert.Empty(t, cfg.Units)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
listen: ":9090"
units:
  - id: "606"
    url: "https://example.com/calendar/ical/606.ics"
  - id: "908"
    name: "Penthouse"
    url: "https://example.com/calendar/ical/908.ics"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone)
	assert.Equal(t, 120, cfg.HorizonDays)
	require.Len(t, cfg.Units, 2)
	assert.Equal(t, "606", cfg.Units[0].Name, "name defaults to id")
	assert.Equal(t, "Penthouse", cfg.Units[1].Name)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = ":8888"
	cfg.Units = []UnitConfig{{ID: "1108", Name: "Studio", URL: "https://example.com/1108.ics"}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, loaded.Listen)
	assert.Equal(t, cfg.Units, loaded.Units)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "admin", loaded.BasicAuth.Username)
}

func TestUnitName(t *testing.T) {
	cfg := &Config{Units: []UnitConfig{{ID: "606", Name: "Van Gogh 606"}}}
	assert.Equal(t, "Van Gogh 606", cfg.UnitName("606"))
	assert.Equal(t, "unknown", cfg.UnitName("unknown"))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
