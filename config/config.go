package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quoteflow/models"
)

type Config struct {
	Quoteflow QuoteflowConfig `yaml:"quoteflow"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Venues    VenuesConfig    `yaml:"venues"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	Publish   PublishConfig   `yaml:"publish"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Server    ServerConfig    `yaml:"server"`
}

type QuoteflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	// UsedWeight toggles the Binance REST weight gauge.
	UsedWeight bool `yaml:"used_weight"`
}

type VenuesConfig struct {
	Binance     VenueConfig `yaml:"binance"`
	Bybit       VenueConfig `yaml:"bybit"`
	Bitget      VenueConfig `yaml:"bitget"`
	Gate        VenueConfig `yaml:"gate"`
	Mexc        VenueConfig `yaml:"mexc"`
	Dexscreener DexConfig   `yaml:"dexscreener"`
}

type VenueConfig struct {
	Enabled bool `yaml:"enabled"`
	// SpotWSURL and PerpWSURL override the production stream endpoints,
	// mainly for tests.
	SpotWSURL   string `yaml:"spot_ws_url"`
	PerpWSURL   string `yaml:"perp_ws_url"`
	RestURL     string `yaml:"rest_url"`
	PerpRestURL string `yaml:"perp_rest_url"`
}

type DexConfig struct {
	Enabled bool   `yaml:"enabled"`
	RestURL string `yaml:"rest_url"`
	// PollInterval is the per-pool refresh cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// RequestsPerMinute caps outbound REST calls across all pools.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type DiscoveryConfig struct {
	Refresh       time.Duration    `yaml:"refresh"`
	DeleteStale   bool             `yaml:"delete_stale"`
	DexSeedAssets []string         `yaml:"dex_seed_assets"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`
	Quality       QualityConfig    `yaml:"quality"`
}

type ThresholdsConfig struct {
	SpotVol24hUSD float64       `yaml:"spot_vol24h_usd"`
	PerpVol24hUSD float64       `yaml:"perp_vol24h_usd"`
	DexVol24hUSD  float64       `yaml:"dex_vol24h_usd"`
	DexTvlUSD     float64       `yaml:"dex_tvl_usd"`
	DexMinAge     time.Duration `yaml:"dex_min_age"`

	// Per-venue overrides keyed by venue code, e.g. "GATE".
	SpotOverrides   map[string]float64 `yaml:"spot_overrides"`
	PerpOverrides   map[string]float64 `yaml:"perp_overrides"`
	DexVolOverrides map[string]float64 `yaml:"dex_vol_overrides"`
	DexTvlOverrides map[string]float64 `yaml:"dex_tvl_overrides"`
}

type QualityConfig struct {
	VolWeight   float64 `yaml:"vol_weight"`
	DepthWeight float64 `yaml:"depth_weight"`
}

type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

type PublishConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Bucket        string        `yaml:"bucket"`
	Prefix        string        `yaml:"prefix"`
	Region        string        `yaml:"region"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} references before parsing so secrets stay out of the file.
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	config := Config{}
	applyDefaults(&config)
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		config.Storage.PostgresDSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Publish.RedisAddr = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
	cfg.Metrics.UsedWeight = true
	cfg.Venues.Dexscreener.PollInterval = 2 * time.Second
	cfg.Venues.Dexscreener.RequestsPerMinute = 300
	cfg.Discovery.Refresh = time.Hour
	cfg.Discovery.Thresholds = ThresholdsConfig{
		SpotVol24hUSD: 200_000,
		PerpVol24hUSD: 5_000_000,
		DexVol24hUSD:  20_000,
		DexTvlUSD:     100_000,
		DexMinAge:     24 * time.Hour,
	}
	cfg.Discovery.Quality = QualityConfig{VolWeight: 0.5, DepthWeight: 0.5}
	cfg.Archive.FlushInterval = time.Minute
	cfg.Server.Addr = ":8080"
}

func validateConfig(cfg *Config) error {
	if cfg.Quoteflow.Name == "" {
		return fmt.Errorf("quoteflow.name is required")
	}
	if cfg.Quoteflow.Version == "" {
		return fmt.Errorf("quoteflow.version is required")
	}
	if cfg.Discovery.Refresh <= 0 {
		return fmt.Errorf("discovery.refresh must be greater than 0")
	}
	if cfg.Venues.Dexscreener.Enabled && cfg.Venues.Dexscreener.PollInterval <= 0 {
		return fmt.Errorf("venues.dexscreener.poll_interval must be greater than 0")
	}
	q := cfg.Discovery.Quality
	if q.VolWeight < 0 || q.DepthWeight < 0 || q.VolWeight+q.DepthWeight == 0 {
		return fmt.Errorf("discovery.quality weights must be non-negative and not both zero")
	}
	if cfg.Publish.Enabled && cfg.Publish.RedisAddr == "" {
		return fmt.Errorf("publish.redis_addr is required when publishing is enabled")
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archiving is enabled")
		}
		if cfg.Archive.Region == "" {
			return fmt.Errorf("archive.region is required when archiving is enabled")
		}
	}
	return nil
}

// SpotVolThreshold returns the spot 24h volume threshold for a venue,
// honoring per-venue overrides.
func (t ThresholdsConfig) SpotVolThreshold(venue string) float64 {
	if v, ok := t.SpotOverrides[venue]; ok {
		return v
	}
	return t.SpotVol24hUSD
}

// PerpVolThreshold returns the perp 24h volume threshold for a venue.
func (t ThresholdsConfig) PerpVolThreshold(venue string) float64 {
	if v, ok := t.PerpOverrides[venue]; ok {
		return v
	}
	return t.PerpVol24hUSD
}

// DexVolThreshold returns the DEX 24h volume threshold for a venue.
func (t ThresholdsConfig) DexVolThreshold(venue string) float64 {
	if v, ok := t.DexVolOverrides[venue]; ok {
		return v
	}
	return t.DexVol24hUSD
}

// DexTvlThreshold returns the DEX liquidity threshold for a venue.
func (t ThresholdsConfig) DexTvlThreshold(venue string) float64 {
	if v, ok := t.DexTvlOverrides[venue]; ok {
		return v
	}
	return t.DexTvlUSD
}

// VolThreshold resolves the effective volume threshold for a market kind.
func (t ThresholdsConfig) VolThreshold(venue string, kind models.MarketKind) float64 {
	switch kind {
	case models.KindSpot:
		return t.SpotVolThreshold(venue)
	case models.KindPerp, models.KindFutures:
		return t.PerpVolThreshold(venue)
	case models.KindDex:
		return t.DexVolThreshold(venue)
	default:
		return t.SpotVol24hUSD
	}
}
