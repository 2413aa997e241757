package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonwraymond/authcache/observe"
	"github.com/jonwraymond/authcache/secret"
)

// Duration wraps time.Duration so values can be written in TOML as
// strings like "45s" or "24h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, string(text))
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EdgeConfig configures the optional shared edge tier. The tier is
// enabled when Endpoint is non-empty.
type EdgeConfig struct {
	Endpoint      string   `toml:"endpoint"`
	Token         string   `toml:"token"`
	SigningSecret string   `toml:"signing_secret"`
	Timeout       Duration `toml:"timeout"`
}

// CacheConfig configures freshness windows and the local tier.
type CacheConfig struct {
	Fresh         Duration   `toml:"fresh"`
	Stale         Duration   `toml:"stale"`
	LocalCapacity int        `toml:"local_capacity"`
	Edge          EdgeConfig `toml:"edge"`
}

// DatabaseConfig configures the origin store.
type DatabaseConfig struct {
	DSN string `toml:"dsn"`
}

// ObserveConfig configures telemetry. Fields mirror observe.Config but
// carry TOML tags.
type ObserveConfig struct {
	ServiceName     string  `toml:"service_name"`
	TracingEnabled  bool    `toml:"tracing_enabled"`
	TracingExporter string  `toml:"tracing_exporter"`
	SamplePct       float64 `toml:"sample_pct"`
	MetricsEnabled  bool    `toml:"metrics_enabled"`
	MetricsExporter string  `toml:"metrics_exporter"`
	LogLevel        string  `toml:"log_level"`
}

// Config is the root authcached configuration.
type Config struct {
	Listen string `toml:"listen"`

	// AdminToken guards the cache invalidation endpoints. Empty leaves
	// them open, which only makes sense behind a trusted proxy.
	AdminToken string `toml:"admin_token"`

	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	Observe  ObserveConfig  `toml:"observe"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Listen: ":8080",
		Cache: CacheConfig{
			Fresh:         Duration(time.Minute),
			Stale:         Duration(24 * time.Hour),
			LocalCapacity: 10_000,
			Edge: EdgeConfig{
				Timeout: Duration(2 * time.Second),
			},
		},
		Database: DatabaseConfig{
			DSN: "authcache.db",
		},
		Observe: ObserveConfig{
			ServiceName: "authcached",
			SamplePct:   1.0,
			LogLevel:    "info",
		},
	}
}

// Load reads a TOML file and merges it over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveSecrets expands env references and secretref values so
// credentials stay out of the config file.
func (c *Config) resolveSecrets() error {
	resolver := secret.NewResolver()
	ctx := context.Background()

	for name, field := range map[string]*string{
		"admin_token":               &c.AdminToken,
		"cache.edge.token":          &c.Cache.Edge.Token,
		"cache.edge.signing_secret": &c.Cache.Edge.SigningSecret,
		"database.dsn":              &c.Database.DSN,
	} {
		resolved, err := resolver.ResolveValue(ctx, *field)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*field = resolved
	}
	return nil
}

// Validate checks the configuration for fatal mistakes.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidListen, c.Listen)
	}

	fresh, stale := c.Cache.Fresh.Std(), c.Cache.Stale.Std()
	if fresh <= 0 || stale <= 0 || fresh > stale {
		return fmt.Errorf("%w: fresh=%s stale=%s", ErrInvalidWindows, fresh, stale)
	}
	if c.Cache.LocalCapacity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, c.Cache.LocalCapacity)
	}

	if endpoint := c.Cache.Edge.Endpoint; endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
		}
		if c.Cache.Edge.Timeout.Std() <= 0 {
			return fmt.Errorf("%w: edge timeout %s", ErrInvalidDuration, c.Cache.Edge.Timeout.Std())
		}
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return ErrMissingDSN
	}

	return (&observe.Config{
		ServiceName: c.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingEnabled,
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsEnabled,
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}).Validate()
}

// ObserverConfig converts the TOML view into the observe package's config.
func (c *Config) ObserverConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingEnabled,
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsEnabled,
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}
