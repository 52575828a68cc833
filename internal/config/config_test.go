package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.Equal(t, SourceAPI, cfg.Source)
	assert.Equal(t, 1200, cfg.Widget.UpcomingSize)
	assert.Equal(t, 600, cfg.Widget.WindowSize)
	assert.Equal(t, 200, cfg.Widget.PanelSize)
	assert.Equal(t, 300, cfg.Widget.CalendarPageSize)
	assert.Equal(t, 15*time.Second, cfg.APITimeout())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
timezone: Asia/Shanghai
source: ICS
ics:
  - id: team
    url: https://example.com/team.ics
widget:
  calendar: team
  show_title: "off"
  panel_size: 50
basic_auth:
  username: admin
  password: secret
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, SourceICS, cfg.Source)
	assert.Equal(t, "team", cfg.Widget.Calendar)
	assert.Equal(t, "off", cfg.Widget.ShowTitle)
	assert.Equal(t, 50, cfg.Widget.PanelSize)
	assert.Equal(t, 600, cfg.Widget.WindowSize)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://blog.example.com/"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com", loaded.API.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.Validate(), "api.base_url")

	cfg.API.BaseURL = "http://x"
	assert.NoError(t, cfg.Validate())

	cfg.Timezone = "Nowhere/City"
	assert.ErrorContains(t, cfg.Validate(), "timezone")
	assert.Equal(t, time.UTC, cfg.Location())

	cfg = DefaultConfig()
	cfg.API.BaseURL = "http://x"
	cfg.RefreshCron = "whenever"
	assert.ErrorContains(t, cfg.Validate(), "refresh")

	cfg = DefaultConfig()
	cfg.Source = SourceICS
	cfg.ICS = []ICSConfig{{ID: "a", URL: "http://a"}, {ID: "a", URL: "http://b"}, {Name: "c"}}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "duplicate id")
	assert.ErrorContains(t, err, "url is required")
}

func TestCalendarID(t *testing.T) {
	assert.Equal(t, "id", ICSConfig{ID: "id", Name: "n", URL: "u"}.CalendarID())
	assert.Equal(t, "n", ICSConfig{Name: "n", URL: "u"}.CalendarID())
	assert.Equal(t, "u", ICSConfig{URL: "u"}.CalendarID())
}
