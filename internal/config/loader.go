package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// EnvConfigPath names the variable main reads the config file path from.
const EnvConfigPath = "SCHEDULER_CONFIG"

// SlotConfig is an allowed window for a job type, as HH:MM strings.
type SlotConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// EventTypeConfig describes one job type tag.
type EventTypeConfig struct {
	Color           string       `yaml:"color"`
	DurationMinutes int          `yaml:"duration_minutes"`
	AllowedSlots    []SlotConfig `yaml:"allowed_slots,omitempty"`
}

// OfficeHoursConfig bounds the interactive grid in whole hours.
type OfficeHoursConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// FeedConfig is one external ICS subscription.
type FeedConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AuthConfig enables HTTP basic auth when both fields are set.
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Config captures file and environment driven settings for the scheduler service.
type Config struct {
	HTTPPort  int    `yaml:"http_port"`
	SQLiteDSN string `yaml:"sqlite_dsn"`
	Timezone  string `yaml:"timezone"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	OfficeHours *OfficeHoursConfig `yaml:"office_hours,omitempty"`
	// ZoomLevels are pixels per hour, ascending.
	ZoomLevels        []float64                  `yaml:"zoom_levels"`
	DefaultZoom       float64                    `yaml:"default_zoom"`
	EventTypes        map[string]EventTypeConfig `yaml:"event_types"`
	DefaultEventColor string                     `yaml:"default_event_color"`
	ExternalColor     string                     `yaml:"external_color"`
	// Resources lists employee ids shown first in the day view, in order.
	Resources       []string `yaml:"resources,omitempty"`
	StrictConflicts bool     `yaml:"strict_conflicts"`

	Feeds       []FeedConfig  `yaml:"feeds"`
	FeedRefresh string        `yaml:"feed_refresh"`
	ViewIdleTTL time.Duration `yaml:"view_idle_ttl"`
	ViewSweep   string        `yaml:"view_sweep"`

	Auth AuthConfig `yaml:"auth"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:    8080,
		SQLiteDSN:   "data/scheduler.db",
		Timezone:    "Local",
		LogLevel:    "info",
		LogFormat:   "json",
		ZoomLevels:  append([]float64(nil), calendar.DefaultZoomLevels...),
		DefaultZoom: calendar.DefaultZoom,
		EventTypes: map[string]EventTypeConfig{
			"regular":  {Color: "#3b82f6", DurationMinutes: 120},
			"deep":     {Color: "#8b5cf6", DurationMinutes: 240},
			"move_out": {Color: "#f59e0b", DurationMinutes: 360},
		},
		DefaultEventColor: calendar.DefaultEventColor,
		ExternalColor:     calendar.DefaultExternalColor,
		Feeds:             []FeedConfig{},
		FeedRefresh:       "*/15 * * * *",
		ViewIdleTTL:       30 * time.Minute,
		ViewSweep:         "@every 1m",
	}
}

// Normalize fills zero values with defaults so partial files still load.
func (c *Config) Normalize() {
	def := Default()
	if c.HTTPPort == 0 {
		c.HTTPPort = def.HTTPPort
	}
	if strings.TrimSpace(c.SQLiteDSN) == "" {
		c.SQLiteDSN = def.SQLiteDSN
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = def.Timezone
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if len(c.ZoomLevels) == 0 {
		c.ZoomLevels = def.ZoomLevels
	}
	if c.DefaultZoom <= 0 {
		c.DefaultZoom = def.DefaultZoom
	}
	if c.EventTypes == nil {
		c.EventTypes = def.EventTypes
	}
	if c.DefaultEventColor == "" {
		c.DefaultEventColor = def.DefaultEventColor
	}
	if c.ExternalColor == "" {
		c.ExternalColor = def.ExternalColor
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.FeedRefresh == "" {
		c.FeedRefresh = def.FeedRefresh
	}
	if c.ViewIdleTTL <= 0 {
		c.ViewIdleTTL = def.ViewIdleTTL
	}
	if c.ViewSweep == "" {
		c.ViewSweep = def.ViewSweep
	}
}

// Load reads the optional YAML file at path, applies defaults and then
// SCHEDULER_ environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			cfg = Config{}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.Normalize()

	invalid := applyEnv(&cfg)
	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func applyEnv(cfg *Config) []string {
	invalid := make([]string, 0, 2)

	if portValue := env("SCHEDULER_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if dsn := env("SCHEDULER_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if tz := env("SCHEDULER_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if level := env("SCHEDULER_LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if user := env("SCHEDULER_AUTH_USERNAME"); user != "" {
		cfg.Auth.Username = user
	}
	if hash := env("SCHEDULER_AUTH_PASSWORD_HASH"); hash != "" {
		cfg.Auth.PasswordHash = hash
	}
	if ttlValue := env("SCHEDULER_VIEW_IDLE_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_VIEW_IDLE_TTL")
		} else {
			cfg.ViewIdleTTL = ttl
		}
	}
	return invalid
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (c Config) validate() []string {
	var invalid []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}
	if _, err := c.Location(); err != nil {
		invalid = append(invalid, "timezone")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log_level")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "log_format")
	}
	if o := c.OfficeHours; o != nil && !(o.Start >= 0 && o.Start < o.End && o.End <= 24) {
		invalid = append(invalid, "office_hours")
	}
	for _, z := range c.ZoomLevels {
		if z <= 0 {
			invalid = append(invalid, "zoom_levels")
			break
		}
	}
	for tag, t := range c.EventTypes {
		if t.Color != "" {
			if _, _, _, ok := calendar.ParseHexColor(t.Color); !ok {
				invalid = append(invalid, "event_types."+tag+".color")
			}
		}
		if t.DurationMinutes < 0 {
			invalid = append(invalid, "event_types."+tag+".duration_minutes")
		}
		if _, err := t.slots(); err != nil {
			invalid = append(invalid, "event_types."+tag+".allowed_slots")
		}
	}
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.URL) == "" {
			invalid = append(invalid, fmt.Sprintf("feeds[%d]", i))
		}
	}
	if (c.Auth.Username == "") != (c.Auth.PasswordHash == "") {
		invalid = append(invalid, "auth")
	}
	return invalid
}

// Location loads the configured time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Office returns the configured office hours, or nil for a full-day grid.
func (c Config) Office() *calendar.OfficeHours {
	if c.OfficeHours == nil {
		return nil
	}
	return &calendar.OfficeHours{Start: c.OfficeHours.Start, End: c.OfficeHours.End}
}

// CalendarEventTypes converts the event type table. Slots that do not parse are dropped;
// Load has already rejected them.
func (c Config) CalendarEventTypes() map[string]calendar.EventType {
	types := make(map[string]calendar.EventType, len(c.EventTypes))
	for tag, t := range c.EventTypes {
		slots, _ := t.slots()
		types[tag] = calendar.EventType{Color: t.Color, DurationMinutes: t.DurationMinutes, AllowedSlots: slots}
	}
	return types
}

// StyleTable builds the color table consulted by the calendar views.
func (c Config) StyleTable() calendar.StyleTable {
	return calendar.StyleTable{
		Types:         c.CalendarEventTypes(),
		DefaultColor:  c.DefaultEventColor,
		ExternalColor: c.ExternalColor,
	}
}

// BasicAuthEnabled reports whether the API requires credentials.
func (c Config) BasicAuthEnabled() bool {
	return c.Auth.Username != "" && c.Auth.PasswordHash != ""
}

func (t EventTypeConfig) slots() ([]calendar.TimeSlot, error) {
	slots := make([]calendar.TimeSlot, 0, len(t.AllowedSlots))
	for _, s := range t.AllowedSlots {
		start, err := parseClock(s.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(s.End)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("slot %s-%s ends before it starts", s.Start, s.End)
		}
		slots = append(slots, calendar.TimeSlot{Start: start, End: end})
	}
	return slots, nil
}

// parseClock converts HH:MM (24:00 allowed) into minutes from midnight.
func parseClock(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Save writes cfg as YAML through a temp file and rename, with 0600 permissions.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("config path is empty")
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

	tmp, err := os.CreateTemp(dir, ".scheduler-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
