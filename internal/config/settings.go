package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all mission and runtime configuration.
type Config struct {
	Coords      string    `mapstructure:"coords"`
	FOV         float64   `mapstructure:"fov"`
	AspectRatio []float64 `mapstructure:"aspect_ratio"`
	MapType     string    `mapstructure:"map_type"`
	DataDir     string    `mapstructure:"data_dir"`
	Overlap     float64   `mapstructure:"overlap"`
	ResLevel    int       `mapstructure:"res_level"`
	Workers     int       `mapstructure:"workers"`

	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CacheConfig controls the persistent tile cache.
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dir       string `mapstructure:"dir"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	TTLDays   int    `mapstructure:"ttl_days"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load assembles configuration by precedence: built-in defaults, an
// optional config.json, TERRAINAV_* environment variables, then
// command-line flags. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("coords", "35.16_-89.90_35.115_-89.823_120")
	v.SetDefault("fov", 78.8)
	v.SetDefault("aspect_ratio", []float64{4, 3})
	v.SetDefault("map_type", "satellite")
	v.SetDefault("data_dir", "dataset/Memphis")
	v.SetDefault("overlap", 0.0)
	v.SetDefault("res_level", 2)
	v.SetDefault("workers", 10)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "dataset/.tile_cache")
	v.SetDefault("cache.max_size_mb", 1024)
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TERRAINAV_CACHE_DIR → cache.dir
	v.SetEnvPrefix("TERRAINAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Coords == "" {
		errs = append(errs, "coords is required")
	}
	if c.FOV <= 0 || c.FOV >= 180 {
		errs = append(errs, fmt.Sprintf("fov must be in (0, 180), got %g", c.FOV))
	}
	if len(c.AspectRatio) != 2 {
		errs = append(errs, fmt.Sprintf("aspect_ratio needs exactly 2 values, got %d", len(c.AspectRatio)))
	} else if c.AspectRatio[0] <= 0 || c.AspectRatio[1] <= 0 {
		errs = append(errs, "aspect_ratio values must be positive")
	}
	switch c.MapType {
	case "satellite", "roadmap", "terrain":
	default:
		errs = append(errs, fmt.Sprintf("map_type must be satellite, roadmap or terrain, got %q", c.MapType))
	}
	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		errs = append(errs, fmt.Sprintf("overlap must be in [0, 1), got %g", c.Overlap))
	}
	if c.ResLevel < 0 {
		errs = append(errs, fmt.Sprintf("res_level must be non-negative, got %d", c.ResLevel))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("workers must be positive, got %d", c.Workers))
	}
	if c.Cache.Enabled {
		if c.Cache.Dir == "" {
			errs = append(errs, "cache.dir is required when the cache is enabled")
		}
		if c.Cache.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Sprintf("cache.max_size_mb must be positive, got %d", c.Cache.MaxSizeMB))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
