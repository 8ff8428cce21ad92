package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Catalog CatalogConfig
	Breaker BreakerConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// APIConfig describes the remote POS API the terminal talks to.
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	AuthScheme string // empty sends the raw token
}

type CatalogConfig struct {
	RefreshInterval   time.Duration
	LowStockThreshold int
}

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	// API_AUTH_SCHEME= must be able to switch the scheme off.
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("API_AUTH_SCHEME", "Bearer")
	v.SetDefault("CATALOG_REFRESH_INTERVAL", "5s")
	v.SetDefault("CATALOG_LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("BREAKER_MAX_FAILURES", 3)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		API: APIConfig{
			BaseURL:    strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			Timeout:    v.GetDuration("API_TIMEOUT"),
			AuthScheme: v.GetString("API_AUTH_SCHEME"),
		},
		Catalog: CatalogConfig{
			RefreshInterval:   v.GetDuration("CATALOG_REFRESH_INTERVAL"),
			LowStockThreshold: v.GetInt("CATALOG_LOW_STOCK_THRESHOLD"),
		},
		Breaker: BreakerConfig{
			MaxFailures: v.GetUint32("BREAKER_MAX_FAILURES"),
			OpenTimeout: v.GetDuration("BREAKER_OPEN_TIMEOUT"),
		},
	}

	// A zero or negative cadence would spin the refresher.
	if cfg.Catalog.RefreshInterval <= 0 {
		cfg.Catalog.RefreshInterval = 5 * time.Second
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 1
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
