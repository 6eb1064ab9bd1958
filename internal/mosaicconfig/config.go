// Package mosaicconfig reads the environment variables this module
// recognizes into a typed Config, rather than threading opaque string
// maps through the core — grounded on
// jobrunner-ortus/internal/config's viper.AutomaticEnv pattern.
package mosaicconfig

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the recognized environment surface: AWS_REGION (DynamoDB
// region default), MAX_THREADS (reader concurrency), MOSAIC_CACHE_TTL,
// MOSAIC_CACHE_SIZE, MOSAIC_DISABLE_CACHE.
type Config struct {
	AWSRegion     string        `mapstructure:"aws_region"`
	MaxThreads    int           `mapstructure:"max_threads"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheDisabled bool          `mapstructure:"cache_disabled"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("max_threads", 10)
	v.SetDefault("cache_ttl", 300*time.Second)
	v.SetDefault("cache_size", 512)
	v.SetDefault("cache_disabled", false)
}

// Load reads Config from the process environment. It recognizes the
// literal variable names AWS_REGION, MAX_THREADS, MOSAIC_CACHE_TTL,
// MOSAIC_CACHE_SIZE, and MOSAIC_DISABLE_CACHE via explicit BindEnv
// calls, since those names don't follow a single MOSAIC_ prefix viper could
// derive automatically.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("aws_region", "AWS_REGION")
	_ = v.BindEnv("max_threads", "MAX_THREADS")
	_ = v.BindEnv("cache_ttl", "MOSAIC_CACHE_TTL")
	_ = v.BindEnv("cache_size", "MOSAIC_CACHE_SIZE")
	_ = v.BindEnv("cache_disabled", "MOSAIC_DISABLE_CACHE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// MOSAIC_CACHE_TTL is documented in seconds, not a Go duration
	// string; viper's duration decode hook accepts bare integers as
	// nanoseconds, so re-read it explicitly when set as a plain number.
	if seconds := v.GetInt("cache_ttl"); seconds > 0 && cfg.CacheTTL < time.Second {
		cfg.CacheTTL = time.Duration(seconds) * time.Second
	}
	return &cfg, nil
}
