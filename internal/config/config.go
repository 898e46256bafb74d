package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"ENV" validate:"required,oneof=development test staging production"`
	Port string `mapstructure:"PORT" validate:"required,numeric"`

	APIURL             string        `mapstructure:"API_URL" validate:"required,url"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxParallelFetches int           `mapstructure:"MAX_PARALLEL_FETCHES" validate:"min=1,max=64"`

	GatewayPort  string `mapstructure:"GATEWAY_PORT" validate:"required,numeric"`
	GatewayStore string `mapstructure:"GATEWAY_STORE" validate:"oneof=memory postgres"`
	DatabaseURL  string `mapstructure:"DATABASE_URL" validate:"required_if=GatewayStore postgres"`
	DBMaxConns   int32  `mapstructure:"DB_MAX_CONNS" validate:"min=1"`
	DBMinConns   int32  `mapstructure:"DB_MIN_CONNS" validate:"min=0,ltefield=DBMaxConns"`

	Seed         int64 `mapstructure:"SEED"`
	SeedPatients int   `mapstructure:"SEED_PATIENTS" validate:"min=0,max=10000"`
	SeedDoctors  int   `mapstructure:"SEED_DOCTORS" validate:"min=0,max=1000"`

	LogLevel      string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	TraceExporter string `mapstructure:"TRACE_EXPORTER" validate:"oneof=none stdout"`
}

var keys = []string{
	"ENV", "PORT",
	"API_URL", "REQUEST_TIMEOUT", "MAX_PARALLEL_FETCHES",
	"GATEWAY_PORT", "GATEWAY_STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SEED", "SEED_PATIENTS", "SEED_DOCTORS",
	"LOG_LEVEL", "TRACE_EXPORTER",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("API_URL", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("MAX_PARALLEL_FETCHES", 8)
	v.SetDefault("GATEWAY_PORT", "3000")
	v.SetDefault("GATEWAY_STORE", "memory")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SEED", 1)
	v.SetDefault("SEED_PATIENTS", 25)
	v.SetDefault("SEED_DOCTORS", 8)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRACE_EXPORTER", "none")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the zerolog level for LOG_LEVEL, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var validate = validator.New()

// Validate checks field ranges and the rules that span fields. The first
// problem found is reported by its environment key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := verrs[0]
	key := envKey(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", key)
	case "required_if":
		return fmt.Errorf("%s is required when GATEWAY_STORE is %q", key, c.GatewayStore)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Errorf("%s must not exceed %s", key, envKey(fe.Param()))
	default:
		return fmt.Errorf("%s is invalid (%s=%s): %v", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

var envKeys = map[string]string{
	"Env":                "ENV",
	"Port":               "PORT",
	"APIURL":             "API_URL",
	"RequestTimeout":     "REQUEST_TIMEOUT",
	"MaxParallelFetches": "MAX_PARALLEL_FETCHES",
	"GatewayPort":        "GATEWAY_PORT",
	"GatewayStore":       "GATEWAY_STORE",
	"DatabaseURL":        "DATABASE_URL",
	"DBMaxConns":         "DB_MAX_CONNS",
	"DBMinConns":         "DB_MIN_CONNS",
	"Seed":               "SEED",
	"SeedPatients":       "SEED_PATIENTS",
	"SeedDoctors":        "SEED_DOCTORS",
	"LogLevel":           "LOG_LEVEL",
	"TraceExporter":      "TRACE_EXPORTER",
}

func envKey(field string) string {
	if k, ok := envKeys[field]; ok {
		return k
	}
	return field
}
