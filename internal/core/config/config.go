// Package config loads the adapter's settings: built-in defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RedisCfg struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type InvalidationCfg struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
	Brokers string `yaml:"brokers"`
	GroupID string `yaml:"group_id"`
}

type Config struct {
	Addr       string `yaml:"addr"`
	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`
	LogSampleN int    `yaml:"log_sample_n"`

	// BackendURL is the server URL TargetPath is resolved against. Empty
	// means the scheme and host of the inbound request.
	BackendURL string `yaml:"backend_url"`
	// ProxyEndpoint overrides the online resource advertised in capabilities.
	ProxyEndpoint      string `yaml:"proxy_endpoint"`
	BackendTLSInsecure bool   `yaml:"backend_tls_insecure"`
	// ServiceTitle replaces the service title in capabilities documents.
	ServiceTitle string `yaml:"service_title"`

	RegistryTTL  time.Duration `yaml:"registry_ttl"`
	RegistrySize int           `yaml:"registry_size"`

	TileFetchWorkers   int           `yaml:"tile_fetch_workers"`
	TileFetchTimeout   time.Duration `yaml:"tile_fetch_timeout"`
	MaxTilesPerRequest int           `yaml:"max_tiles_per_request"`
	MaxWidth           int           `yaml:"max_width"`
	MaxHeight          int           `yaml:"max_height"`
	StrictCRS          bool          `yaml:"strict_crs"`

	// AdminToken guards POST /admin/registry/invalidate as a bearer token.
	// The endpoint is not mounted while it is empty.
	AdminToken string `yaml:"admin_token"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	Redis        RedisCfg        `yaml:"redis"`
	Invalidation InvalidationCfg `yaml:"invalidation"`
}

func Defaults() Config {
	return Config{
		Addr:               ":8090",
		LogLevel:           "info",
		RegistryTTL:        60 * time.Second,
		RegistrySize:       128,
		TileFetchWorkers:   16,
		TileFetchTimeout:   10 * time.Second,
		MaxTilesPerRequest: 1024,
		MaxWidth:           4096,
		MaxHeight:          4096,
		MetricsEnabled:     true,
		Redis: RedisCfg{
			Addr:      "localhost:6379",
			OpTimeout: 250 * time.Millisecond,
		},
		Invalidation: InvalidationCfg{
			Topic:   "gee-publish-events",
			Brokers: "localhost:9092",
			GroupID: "wms-registry-invalidator",
		},
	}
}

// FromEnv applies environment overrides to the defaults, ignoring CONFIG_FILE.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load is FromEnv with the YAML file named by CONFIG_FILE layered in between.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)

	c.BackendURL = getenv("BACKEND_URL", c.BackendURL)
	c.ProxyEndpoint = getenv("PROXY_ENDPOINT", c.ProxyEndpoint)
	c.ServiceTitle = getenv("SERVICE_TITLE", c.ServiceTitle)
	c.BackendTLSInsecure = getbool("BACKEND_TLS_INSECURE", c.BackendTLSInsecure)

	c.RegistryTTL = getduration("REGISTRY_TTL", c.RegistryTTL)
	c.RegistrySize = getint("REGISTRY_SIZE", c.RegistrySize)

	c.TileFetchWorkers = getint("TILE_FETCH_WORKERS", c.TileFetchWorkers)
	c.TileFetchTimeout = getduration("TILE_FETCH_TIMEOUT", c.TileFetchTimeout)
	c.MaxTilesPerRequest = getint("MAX_TILES_PER_REQUEST", c.MaxTilesPerRequest)
	c.MaxWidth = getint("MAX_WIDTH", c.MaxWidth)
	c.MaxHeight = getint("MAX_HEIGHT", c.MaxHeight)
	c.StrictCRS = getbool("STRICT_CRS", c.StrictCRS)
	c.AdminToken = getenv("ADMIN_TOKEN", c.AdminToken)

	c.MetricsEnabled = getbool("METRICS_ENABLED", c.MetricsEnabled)

	c.Redis.Enabled = getbool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getenv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.OpTimeout = getduration("REDIS_OP_TIMEOUT", c.Redis.OpTimeout)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	c.Invalidation.Topic = getenv("KAFKA_TOPIC", c.Invalidation.Topic)
	c.Invalidation.Brokers = getenv("KAFKA_BROKERS", c.Invalidation.Brokers)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)
}

func (c Config) Validate() error {
	if c.TileFetchWorkers <= 0 {
		return fmt.Errorf("tile_fetch_workers must be > 0 (got %d)", c.TileFetchWorkers)
	}
	if c.TileFetchTimeout <= 0 {
		return fmt.Errorf("tile_fetch_timeout must be > 0 (got %s)", c.TileFetchTimeout)
	}
	if c.RegistrySize <= 0 {
		return fmt.Errorf("registry_size must be > 0 (got %d)", c.RegistrySize)
	}
	if c.MaxTilesPerRequest <= 0 {
		return fmt.Errorf("max_tiles_per_request must be > 0 (got %d)", c.MaxTilesPerRequest)
	}
	if c.MaxWidth <= 0 || c.MaxHeight <= 0 {
		return fmt.Errorf("max_width and max_height must be > 0 (got %dx%d)", c.MaxWidth, c.MaxHeight)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
