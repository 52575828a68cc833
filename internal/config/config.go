package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceAPI = "api"
	SourceICS = "ics"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultRefreshCron = "*/15 * * * *"
	defaultLogLevel    = "info"
	defaultAPITimeout  = 15
	defaultCacheDir    = "./cache/ics-cache"
	defaultCaptureOut  = "./cache/preview.png"
	defaultIdleMinutes = 60
)

// APIConfig points at the schedule event store.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ICSConfig describes a single ICS subscription source. Each feed is exposed
// as one calendar whose identifier is ID.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is the calendar identifier widgets refer to.
	ID string `yaml:"id" json:"id"`
	// Name overrides the feed's X-WR-CALNAME as display name.
	Name string `yaml:"name" json:"name"`
}

// WidgetConfig holds defaults for newly created widget sessions.
type WidgetConfig struct {
	Calendar         string `yaml:"calendar" json:"calendar"`
	ShowTitle        string `yaml:"show_title" json:"show_title"`
	RenderStyle      string `yaml:"render_style" json:"render_style"`
	UpcomingSize     int    `yaml:"upcoming_size" json:"upcoming_size"`
	WindowSize       int    `yaml:"window_size" json:"window_size"`
	PanelSize        int    `yaml:"panel_size" json:"panel_size"`
	CalendarPageSize int    `yaml:"calendar_page_size" json:"calendar_page_size"`
	// SessionIdleMinutes evicts sessions nobody touched for this long.
	SessionIdleMinutes int `yaml:"session_idle_minutes" json:"session_idle_minutes"`
}

// CaptureConfig controls headless PNG capture of the default widget.
type CaptureConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Output         string `yaml:"output" json:"output"`
	Width          int    `yaml:"width" json:"width"`
	Height         int    `yaml:"height" json:"height"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone all local date math uses (e.g. "Asia/Shanghai").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Source selects the event store: "api" or "ics".
	Source string `yaml:"source" json:"source"`

	API      APIConfig   `yaml:"api" json:"api"`
	ICS      []ICSConfig `yaml:"ics" json:"ics"`
	CacheDir string      `yaml:"cache_dir" json:"cache_dir"`

	Widget  WidgetConfig  `yaml:"widget" json:"widget"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	switch strings.ToLower(strings.TrimSpace(c.Source)) {
	case SourceICS:
		c.Source = SourceICS
	default:
		// Unknown kinds fall back to the HTTP store.
		c.Source = SourceAPI
	}

	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeout
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}

	w := &c.Widget
	if w.RenderStyle == "" {
		w.RenderStyle = "default"
	}
	if w.UpcomingSize <= 0 {
		w.UpcomingSize = 1200
	}
	if w.WindowSize <= 0 {
		w.WindowSize = 600
	}
	if w.PanelSize <= 0 {
		w.PanelSize = 200
	}
	if w.CalendarPageSize <= 0 {
		w.CalendarPageSize = 300
	}
	if w.SessionIdleMinutes <= 0 {
		w.SessionIdleMinutes = defaultIdleMinutes
	}

	cp := &c.Capture
	if cp.Output == "" {
		cp.Output = defaultCaptureOut
	}
	if cp.Width <= 0 {
		cp.Width = 1200
	}
	if cp.Height <= 0 {
		cp.Height = 900
	}
	if cp.TimeoutSeconds <= 0 {
		cp.TimeoutSeconds = 30
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	switch c.Source {
	case SourceAPI:
		if c.API.BaseURL == "" {
			errs = append(errs, errors.New("api.base_url is required when source is api"))
		}
	case SourceICS:
		seen := make(map[string]bool)
		for i, feed := range c.ICS {
			if feed.URL == "" {
				errs = append(errs, fmt.Errorf("ics[%d]: url is required", i))
			}
			id := feed.CalendarID()
			if seen[id] {
				errs = append(errs, fmt.Errorf("ics[%d]: duplicate id %q", i, id))
			}
			seen[id] = true
		}
	}
	return errors.Join(errs...)
}

// CalendarID is the identifier a feed is addressed by.
func (f ICSConfig) CalendarID() string {
	switch {
	case f.ID != "":
		return f.ID
	case f.Name != "":
		return f.Name
	default:
		return f.URL
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// APITimeout returns the store request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SessionIdle returns how long an untouched session stays alive.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.Widget.SessionIdleMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written with 0600
// permissions and returned. Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename), creating the
// parent directory (0700) and leaving the file at 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
