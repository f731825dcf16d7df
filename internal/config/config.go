package config

import (
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	OSM        OSMConfig        `yaml:"osm" mapstructure:"osm"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GoogleConfig holds Google Maps Platform credentials. PlacesKey and MapsKey
// fall back to APIKey when empty.
type GoogleConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	PlacesKey        string  `yaml:"places_api_key" mapstructure:"places_api_key"`
	MapsKey          string  `yaml:"maps_api_key" mapstructure:"maps_api_key"`
	GeocodeRateLimit float64 `yaml:"geocode_rate_limit" mapstructure:"geocode_rate_limit"`
	PlacesRateLimit  float64 `yaml:"places_rate_limit" mapstructure:"places_rate_limit"`
}

// PlacesAPIKey returns the key used for nearby search.
func (g GoogleConfig) PlacesAPIKey() string {
	if g.PlacesKey != "" {
		return g.PlacesKey
	}
	return g.APIKey
}

// MapsAPIKey returns the key used for the distance matrix.
func (g GoogleConfig) MapsAPIKey() string {
	if g.MapsKey != "" {
		return g.MapsKey
	}
	return g.APIKey
}

// NominatimConfig configures the open geocoding fallback.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OSMConfig configures the Overpass endpoint.
type OSMConfig struct {
	OverpassURL string `yaml:"overpass_url" mapstructure:"overpass_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EnrichmentConfig tunes the enrichment pipeline.
type EnrichmentConfig struct {
	HTTPTimeoutSecs   int  `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	ListingIntervalMs int  `yaml:"listing_interval_ms" mapstructure:"listing_interval_ms"`
	OnlyPending       bool `yaml:"only_pending" mapstructure:"only_pending"`
	// GeocodeConcurrency bounds parallel geocoder calls when a batch run
	// prefetches queries for pending listings.
	GeocodeConcurrency int `yaml:"geocode_concurrency" mapstructure:"geocode_concurrency"`
}

// HTTPTimeout returns the per-call timeout for provider requests.
func (e EnrichmentConfig) HTTPTimeout() time.Duration {
	return time.Duration(e.HTTPTimeoutSecs) * time.Second
}

// ScoringConfig holds the default combined mix and rescore batching.
type ScoringConfig struct {
	InvestmentMix    float64 `yaml:"investment_mix" mapstructure:"investment_mix"`
	LifestyleMix     float64 `yaml:"lifestyle_mix" mapstructure:"lifestyle_mix"`
	RescoreBatchSize int     `yaml:"rescore_batch_size" mapstructure:"rescore_batch_size"`
}

// SchedulerConfig configures the background enrichment schedule.
type SchedulerConfig struct {
	Times    []string `yaml:"times" mapstructure:"times"`
	Timezone string   `yaml:"timezone" mapstructure:"timezone"`
	LockFile string   `yaml:"lock_file" mapstructure:"lock_file"`
}

// ResilienceConfig configures retries and circuit breakers for provider calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and LANDSCORE_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LANDSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "landscore.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.places_api_key", "")
	v.SetDefault("google.maps_api_key", "")
	v.SetDefault("google.geocode_rate_limit", 10)
	v.SetDefault("google.places_rate_limit", 10)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "landscore/1.0")
	v.SetDefault("nominatim.rate_limit", 1)
	v.SetDefault("osm.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("osm.timeout_secs", 30)
	v.SetDefault("enrichment.http_timeout_secs", 15)
	v.SetDefault("enrichment.listing_interval_ms", 500)
	v.SetDefault("enrichment.only_pending", true)
	v.SetDefault("enrichment.geocode_concurrency", 2)
	v.SetDefault("scoring.investment_mix", 0.32)
	v.SetDefault("scoring.lifestyle_mix", 0.68)
	v.SetDefault("scoring.rescore_batch_size", 50)
	v.SetDefault("scheduler.times", []string{"07:00", "19:00"})
	v.SetDefault("scheduler.timezone", "Europe/Madrid")
	v.SetDefault("scheduler.lock_file", "")
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode:
// "enrich", "rescore", "schedule" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if c.Scoring.InvestmentMix < 0 || c.Scoring.LifestyleMix < 0 {
		errs = append(errs, "scoring mix values must be >= 0")
	} else if math.Abs(c.Scoring.InvestmentMix+c.Scoring.LifestyleMix-1) > 1e-3 {
		errs = append(errs, "scoring.investment_mix + scoring.lifestyle_mix must equal 1.0")
	}
	if c.Scoring.RescoreBatchSize < 1 || c.Scoring.RescoreBatchSize > 1000 {
		errs = append(errs, "scoring.rescore_batch_size must be between 1 and 1000")
	}

	switch mode {
	case "enrich", "rescore":
	case "schedule":
		if len(c.Scheduler.Times) == 0 {
			errs = append(errs, "scheduler.times must not be empty")
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			errs = append(errs, "scheduler.timezone is invalid")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
