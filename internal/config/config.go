// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	BackendFS     = "fs"
	BackendBadger = "badger"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs crawl admission defaults.
type CrawlerConfig struct {
	DefaultPageBudget int    `mapstructure:"default_page_budget"`
	UserAgent         string `mapstructure:"user_agent"`
	SiteListPath      string `mapstructure:"site_list_path"`
}

// FetchConfig configures the page-fetch collaborator.
type FetchConfig struct {
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	ExcludedTags       []string `mapstructure:"excluded_tags"`
	MinBlockWords      int      `mapstructure:"min_block_words"`
	WordCountThreshold int      `mapstructure:"word_count_threshold"`
	CacheEnabled       bool     `mapstructure:"cache_enabled"`
	CacheDir           string   `mapstructure:"cache_dir"`
}

// HeadlessConfig configures the headless rendering variant.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects and locates the snapshot store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITESNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("crawler.default_page_budget", 30)
	v.SetDefault("crawler.user_agent", "sitesnap/0.1")
	v.SetDefault("crawler.site_list_path", "list_of_website.txt")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.excluded_tags", []string{"nav", "footer", "header", "aside"})
	v.SetDefault("fetch.min_block_words", 10)
	v.SetDefault("fetch.word_count_threshold", 50)
	v.SetDefault("fetch.cache_enabled", true)
	v.SetDefault("fetch.cache_dir", ".fetch-cache")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("storage.backend", BackendFS)
	v.SetDefault("storage.dir", "cache")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.DefaultPageBudget < 1 {
		return fmt.Errorf("crawler.default_page_budget must be >= 1")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Storage.Backend != BackendFS && c.Storage.Backend != BackendBadger {
		return fmt.Errorf("storage.backend must be %q or %q", BackendFS, BackendBadger)
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	return nil
}

// FetchTimeout converts the configured timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
