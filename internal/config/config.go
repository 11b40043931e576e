package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	PredictorURL     string   `mapstructure:"PREDICTOR_URL"`
	PredictorTimeout int      `mapstructure:"PREDICTOR_TIMEOUT_SECONDS"`
	RecalcFanout     int      `mapstructure:"RECALC_FANOUT"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("PREDICTOR_URL", "http://ml_service:8001")
	v.SetDefault("PREDICTOR_TIMEOUT_SECONDS", 5)
	v.SetDefault("RECALC_FANOUT", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("PREDICTOR_URL")
	v.BindEnv("PREDICTOR_TIMEOUT_SECONDS")
	v.BindEnv("RECALC_FANOUT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// PredictorRequestTimeout returns the per-call deadline for the wait
// estimator service.
func (c *Config) PredictorRequestTimeout() time.Duration {
	if c.PredictorTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PredictorTimeout) * time.Second
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	if c.PredictorURL == "" {
		return fmt.Errorf("PREDICTOR_URL is required")
	}
	if !strings.HasPrefix(c.PredictorURL, "http://") && !strings.HasPrefix(c.PredictorURL, "https://") {
		return fmt.Errorf("PREDICTOR_URL must be an http(s) URL, got %q", c.PredictorURL)
	}
	if c.DBMaxConns < c.DBMinConns {
		return fmt.Errorf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.DBMaxConns, c.DBMinConns)
	}
	if c.RecalcFanout < 1 {
		return fmt.Errorf("RECALC_FANOUT must be at least 1, got %d", c.RecalcFanout)
	}
	return nil
}
