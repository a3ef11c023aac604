// Package config loads node-wide operational settings for a compute node
// binary: reusables directory, worker concurrency, admin surface address,
// and protocol knobs that are not already pinned by a CLI positional
// argument. Grounded on internal/config/config.go's YAML-plus-env-override
// singleton.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the node-wide configuration for any of the three CN binaries.
// Per spec.md §6, the per-invocation CLI positional arguments
// (non_first_frac, use_cache, …) remain authoritative for the fields they
// cover and are layered on top of this after load.
type Config struct {
	Node   NodeConfig   `yaml:"node"`
	Cache  CacheConfig  `yaml:"cache"`
	Stage  StageConfig  `yaml:"stage"`
	Admin  AdminConfig  `yaml:"admin"`
	Logger LoggerConfig `yaml:"logger"`
}

// NodeConfig covers transport and worker-pool sizing.
type NodeConfig struct {
	Listen            string `yaml:"listen"`
	AppOctetLimit     int    `yaml:"app_octet_limit"`
	WorkerPoolSize    int    `yaml:"worker_pool_size"`
	SessionDeadlineMs int    `yaml:"session_deadline_ms"`
}

// CacheConfig points at the on-disk reuse-cache state.
type CacheConfig struct {
	ReusablesDir string  `yaml:"reusables_dir"`
	ChessShards  int     `yaml:"chess_shards"`
	NonFirstFrac float64 `yaml:"non_first_frac"`
}

// StageConfig holds pacing and lifetime values for the bulk-staging
// protocol. They are loaded and defaulted here, but internal/bulkstage
// does not read them: it always uses its fixed PacingInterval and
// Lifetime values.
type StageConfig struct {
	PacingMs         int `yaml:"pacing_ms"`
	MatrixLifetimeMs int `yaml:"matrix_lifetime_ms"`
	CameraLifetimeMs int `yaml:"camera_lifetime_ms"`
}

// AdminConfig configures the operational HTTP surface.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Enabled    bool   `yaml:"enabled"`
}

// LoggerConfig configures slog's level.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton, loading CONFIG_PATH (default
// "config.yaml") on first call and applying environment overrides.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and decodes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Node.Listen = getEnv("CN_LISTEN", c.Node.Listen)
	if v := getEnvInt("APP_OCTET_LIMIT", 0); v > 0 {
		c.Node.AppOctetLimit = v
	}
	if v := getEnvInt("WORKER_POOL_SIZE", 0); v > 0 {
		c.Node.WorkerPoolSize = v
	}
	if v := getEnvInt("SESSION_DEADLINE_MS", 0); v > 0 {
		c.Node.SessionDeadlineMs = v
	}

	c.Cache.ReusablesDir = getEnv("REUSABLES_DIR", c.Cache.ReusablesDir)
	if v := getEnvInt("CHESS_SHARDS", 0); v > 0 {
		c.Cache.ChessShards = v
	}
	if v := getEnvFloat("NON_FIRST_FRAC", -1); v >= 0 {
		c.Cache.NonFirstFrac = v
	}

	if v := getEnvInt("STAGE_PACING_MS", 0); v > 0 {
		c.Stage.PacingMs = v
	}
	if v := getEnvInt("MATRIX_LIFETIME_MS", 0); v > 0 {
		c.Stage.MatrixLifetimeMs = v
	}
	if v := getEnvInt("CAMERA_LIFETIME_MS", 0); v > 0 {
		c.Stage.CameraLifetimeMs = v
	}

	c.Admin.ListenAddr = getEnv("ADMIN_LISTEN_ADDR", c.Admin.ListenAddr)
	c.Admin.Enabled = getEnvBool("ADMIN_ENABLED", c.Admin.Enabled)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Node.Listen == "" {
		c.Node.Listen = "edge-compute"
	}
	if c.Node.AppOctetLimit == 0 {
		c.Node.AppOctetLimit = 1400
	}
	if c.Node.WorkerPoolSize == 0 {
		c.Node.WorkerPoolSize = 4
	}
	if c.Cache.ReusablesDir == "" {
		c.Cache.ReusablesDir = "reusables"
	}
	if c.Cache.ChessShards == 0 {
		c.Cache.ChessShards = 16
	}
	if c.Stage.PacingMs == 0 {
		c.Stage.PacingMs = 30
	}
	if c.Stage.MatrixLifetimeMs == 0 {
		c.Stage.MatrixLifetimeMs = 1000
	}
	if c.Stage.CameraLifetimeMs == 0 {
		c.Stage.CameraLifetimeMs = 2000
	}
	if c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = ":9090"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}

// SessionDeadline returns Node.SessionDeadlineMs as a time.Duration; zero
// disables the optional per-session deadline of spec.md §9's open question.
func (c *Config) SessionDeadline() time.Duration {
	return time.Duration(c.Node.SessionDeadlineMs) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
