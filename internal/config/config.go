package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	Feed      FeedConfig      `yaml:"feed"`
	Console   ConsoleConfig   `yaml:"console"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type RelayConfig struct {
	MetricsInterval  Duration `yaml:"metrics_interval"`
	FeedbackInterval Duration `yaml:"feedback_interval"`
	SendBuffer       int      `yaml:"send_buffer"`
	SessionTTL       Duration `yaml:"session_ttl"`
	MetricsSource    string   `yaml:"metrics_source"`
}

type FeedConfig struct {
	Enabled      bool     `yaml:"enabled"`
	URL          string   `yaml:"url"`
	PollInterval Duration `yaml:"poll_interval"`
	Timeout      Duration `yaml:"timeout"`
	Target       string   `yaml:"target"`
	OutageLimit  int      `yaml:"outage_limit"`
}

type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Metrics sources.
const (
	SourceSynthetic = "synthetic"
	SourceFeed      = "feed"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Duration is a time.Duration written as a Go duration string ("5s", "30m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps log.level to a slog level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used when a field is not set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Relay: RelayConfig{
			MetricsInterval:  Duration{5 * time.Second},
			FeedbackInterval: Duration{10 * time.Second},
			SendBuffer:       32,
			SessionTTL:       Duration{30 * time.Minute},
			MetricsSource:    SourceSynthetic,
		},
		Feed: FeedConfig{
			PollInterval: Duration{500 * time.Millisecond},
			Timeout:      Duration{2 * time.Second},
			Target:       "1",
			OutageLimit:  20,
		},
		Console:   ConsoleConfig{Enabled: true},
		Database:  DatabaseConfig{Driver: DriverSQLite, Path: "fitrelay.db", Port: 5432},
		Tailscale: TailscaleConfig{Hostname: "fitrelay", StateDir: "tsnet-state"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. An empty path skips the file. Env vars
// use the prefix RELAY_ and underscore-separated paths:
//
//	RELAY_SERVER_HOST, RELAY_SERVER_PORT, RELAY_SERVER_API_KEY,
//	RELAY_METRICS_INTERVAL, RELAY_FEEDBACK_INTERVAL, RELAY_SESSION_TTL,
//	RELAY_METRICS_SOURCE, RELAY_FEED_ENABLED, RELAY_FEED_URL,
//	RELAY_FEED_TARGET, RELAY_CONSOLE_ENABLED,
//	RELAY_DB_DRIVER, RELAY_DB_PATH, RELAY_DB_HOST, RELAY_DB_PORT,
//	RELAY_DB_NAME, RELAY_DB_USER, RELAY_DB_PASSWORD, RELAY_DB_SSLMODE,
//	RELAY_TAILSCALE_ENABLED, RELAY_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"RELAY_SERVER_HOST":        &cfg.Server.Host,
		"RELAY_SERVER_API_KEY":     &cfg.Server.APIKey,
		"RELAY_METRICS_SOURCE":     &cfg.Relay.MetricsSource,
		"RELAY_FEED_URL":           &cfg.Feed.URL,
		"RELAY_FEED_TARGET":        &cfg.Feed.Target,
		"RELAY_DB_DRIVER":          &cfg.Database.Driver,
		"RELAY_DB_PATH":            &cfg.Database.Path,
		"RELAY_DB_HOST":            &cfg.Database.Host,
		"RELAY_DB_NAME":            &cfg.Database.Name,
		"RELAY_DB_USER":            &cfg.Database.User,
		"RELAY_DB_PASSWORD":        &cfg.Database.Password,
		"RELAY_DB_SSLMODE":         &cfg.Database.SSLMode,
		"RELAY_TAILSCALE_HOSTNAME": &cfg.Tailscale.Hostname,
		"RELAY_LOG_LEVEL":          &cfg.Log.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RELAY_SERVER_PORT": &cfg.Server.Port,
		"RELAY_DB_PORT":     &cfg.Database.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"RELAY_METRICS_INTERVAL":  &cfg.Relay.MetricsInterval,
		"RELAY_FEEDBACK_INTERVAL": &cfg.Relay.FeedbackInterval,
		"RELAY_SESSION_TTL":       &cfg.Relay.SessionTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			dst.Duration = d
		}
	}

	bools := map[string]*bool{
		"RELAY_FEED_ENABLED":      &cfg.Feed.Enabled,
		"RELAY_CONSOLE_ENABLED":   &cfg.Console.Enabled,
		"RELAY_TAILSCALE_ENABLED": &cfg.Tailscale.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Relay.MetricsInterval.Duration <= 0 {
		return fmt.Errorf("relay.metrics_interval must be positive")
	}
	if c.Relay.FeedbackInterval.Duration <= 0 {
		return fmt.Errorf("relay.feedback_interval must be positive")
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be positive")
	}
	if c.Relay.SessionTTL.Duration < 0 {
		return fmt.Errorf("relay.session_ttl must not be negative")
	}
	switch c.Relay.MetricsSource {
	case SourceSynthetic:
	case SourceFeed:
		if !c.Feed.Enabled {
			return fmt.Errorf("relay.metrics_source %q requires feed.enabled", SourceFeed)
		}
	default:
		return fmt.Errorf("relay.metrics_source must be %q or %q", SourceSynthetic, SourceFeed)
	}
	if c.Feed.Enabled {
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.url is required when the feed is enabled")
		}
		if c.Feed.PollInterval.Duration <= 0 {
			return fmt.Errorf("feed.poll_interval must be positive")
		}
		if c.Feed.Timeout.Duration <= 0 {
			return fmt.Errorf("feed.timeout must be positive")
		}
		if strings.TrimSpace(c.Feed.Target) == "" {
			return fmt.Errorf("feed.target is required when the feed is enabled")
		}
		if c.Feed.OutageLimit < 0 {
			return fmt.Errorf("feed.outage_limit must not be negative")
		}
	}
	switch c.Database.Driver {
	case DriverNone:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q, %q or %q", DriverSQLite, DriverPostgres, DriverNone)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
