package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

type SnoozeBackend string

const (
	SnoozeBackendSQLite SnoozeBackend = "sqlite"
	SnoozeBackendRedis  SnoozeBackend = "redis"
)

type SourceBackend string

const (
	SourceBackendSQLite   SourceBackend = "sqlite"
	SourceBackendPostgres SourceBackend = "postgres"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Nudges   NudgesConfig   `toml:"nudges"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Snooze   SnoozeConfig   `toml:"snooze"`
	Source   SourceConfig   `toml:"source"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// NudgesConfig mirrors domain.NudgeSettings plus the evaluation zone.
type NudgesConfig struct {
	Enabled               bool   `toml:"enabled"`
	StaleLeadWarningDays  int    `toml:"stale_lead_warning_days"`
	StaleLeadCriticalDays int    `toml:"stale_lead_critical_days"`
	DealStalledDays       int    `toml:"deal_stalled_days"`
	Timezone              string `toml:"timezone"` // IANA name; empty means local
}

type RefreshConfig struct {
	Leads        Duration `toml:"leads"`
	Deals        Duration `toml:"deals"`
	Captures     Duration `toml:"captures"`
	FetchTimeout Duration `toml:"fetch_timeout"`
	Compaction   string   `toml:"compaction"` // cron spec
}

type SnoozeConfig struct {
	DefaultDuration Duration      `toml:"default_duration"`
	DismissDuration Duration      `toml:"dismiss_duration"`
	Backend         SnoozeBackend `toml:"backend"`
	RedisURL        string        `toml:"redis_url"`
}

type SourceConfig struct {
	Backend     SourceBackend `toml:"backend"`
	PostgresDSN string        `toml:"postgres_dsn"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// Duration is a time.Duration decoded from a Go duration string such as "90s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func Default(dbPath string) Config {
	settings := domain.DefaultNudgeSettings()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".nudger/log",
			},
		},
		Nudges: NudgesConfig{
			Enabled:               settings.Enabled,
			StaleLeadWarningDays:  settings.StaleLeadWarningDays,
			StaleLeadCriticalDays: settings.StaleLeadCriticalDays,
			DealStalledDays:       settings.DealStalledDays,
		},
		Refresh: RefreshConfig{
			Leads:        Duration{app.DefaultLeadsInterval},
			Deals:        Duration{app.DefaultDealsInterval},
			Captures:     Duration{app.DefaultCapturesInterval},
			FetchTimeout: Duration{app.DefaultFetchTimeout},
			Compaction:   "@hourly",
		},
		Snooze: SnoozeConfig{
			DefaultDuration: Duration{24 * time.Hour},
			DismissDuration: Duration{app.DefaultDismissDuration},
			Backend:         SnoozeBackendSQLite,
		},
		Source: SourceConfig{
			Backend: SourceBackendSQLite,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	cfg.Nudges = cfg.Nudges.normalized()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	for name, d := range map[string]Duration{
		"refresh.leads":           c.Refresh.Leads,
		"refresh.deals":           c.Refresh.Deals,
		"refresh.captures":        c.Refresh.Captures,
		"snooze.dismiss_duration": c.Snooze.DismissDuration,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.Refresh.FetchTimeout.Duration < 0 {
		return errors.New("refresh.fetch_timeout must be >= 0")
	}
	if c.Snooze.DefaultDuration.Duration < 0 {
		return errors.New("snooze.default_duration must be >= 0")
	}
	if spec := strings.TrimSpace(c.Refresh.Compaction); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid refresh.compaction %q: %w", spec, err)
		}
	}

	switch c.Snooze.Backend {
	case SnoozeBackendSQLite:
	case SnoozeBackendRedis:
		if strings.TrimSpace(c.Snooze.RedisURL) == "" {
			return errors.New("snooze.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid snooze.backend: %q", c.Snooze.Backend)
	}

	switch c.Source.Backend {
	case SourceBackendSQLite:
	case SourceBackendPostgres:
		if strings.TrimSpace(c.Source.PostgresDSN) == "" {
			return errors.New("source.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid source.backend: %q", c.Source.Backend)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}
	return nil
}

// NudgeSettings returns the configured thresholds, repaired if malformed.
func (c Config) NudgeSettings() domain.NudgeSettings {
	return c.Nudges.settings().Normalize()
}

// Location resolves the evaluation zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Nudges.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid nudges.timezone %q: %w", name, err)
	}
	return loc, nil
}

// ControllerConfig maps refresh and snooze settings onto the refresh controller.
func (c Config) ControllerConfig() app.ControllerConfig {
	return app.ControllerConfig{
		LeadsInterval:    c.Refresh.Leads.Duration,
		DealsInterval:    c.Refresh.Deals.Duration,
		CapturesInterval: c.Refresh.Captures.Duration,
		FetchTimeout:     c.Refresh.FetchTimeout.Duration,
		DismissDuration:  c.Snooze.DismissDuration.Duration,
	}
}

func (n NudgesConfig) settings() domain.NudgeSettings {
	return domain.NudgeSettings{
		Enabled:               n.Enabled,
		StaleLeadWarningDays:  n.StaleLeadWarningDays,
		StaleLeadCriticalDays: n.StaleLeadCriticalDays,
		DealStalledDays:       n.DealStalledDays,
	}
}

func (n NudgesConfig) normalized() NudgesConfig {
	s := n.settings().Normalize()
	n.Enabled = s.Enabled
	n.StaleLeadWarningDays = s.StaleLeadWarningDays
	n.StaleLeadCriticalDays = s.StaleLeadCriticalDays
	n.DealStalledDays = s.DealStalledDays
	return n
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
