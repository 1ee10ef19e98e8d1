package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger backends accepted by LEDGER_BACKEND.
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// DevTokenSecret signs tokens in development when TOKEN_SECRET is unset.
const DevTokenSecret = "termbridge-development-secret"

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	TokenSecret    string        `mapstructure:"TOKEN_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	MappingFile    string        `mapstructure:"MAPPING_FILE"`
	UsersFile      string        `mapstructure:"USERS_FILE"`
	LedgerBackend  string        `mapstructure:"LEDGER_BACKEND"`
	HistoryFile    string        `mapstructure:"HISTORY_FILE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	RedisLedgerKey string        `mapstructure:"REDIS_LEDGER_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	// UsingDevSecret is set by Load when TOKEN_SECRET was empty in
	// development and DevTokenSecret was substituted.
	UsingDevSecret bool `mapstructure:"-"`
}

var keys = []string{
	"PORT", "ENV", "TOKEN_SECRET", "TOKEN_TTL", "MAPPING_FILE", "USERS_FILE",
	"LEDGER_BACKEND", "HISTORY_FILE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "REDIS_URL", "REDIS_LEDGER_KEY", "CORS_ORIGINS", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("MAPPING_FILE", "data/combined_namaste_icd_snomed_loinc.csv")
	v.SetDefault("USERS_FILE", "data/abha_mock_users.csv")
	v.SetDefault("LEDGER_BACKEND", LedgerFile)
	v.SetDefault("HISTORY_FILE", "data/translation_history.json")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("REDIS_LEDGER_KEY", "termbridge:translation_history")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))

	if cfg.TokenSecret == "" && cfg.IsDev() {
		cfg.TokenSecret = DevTokenSecret
		cfg.UsingDevSecret = true
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run: a real token
// secret outside development and the settings the chosen ledger backend
// needs.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.TokenSecret == DevTokenSecret {
		return fmt.Errorf("TOKEN_SECRET must not be the development secret when ENV=%q", c.Env)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.MappingFile == "" {
		return fmt.Errorf("MAPPING_FILE is required")
	}

	switch c.LedgerBackend {
	case LedgerFile:
		if c.HistoryFile == "" {
			return fmt.Errorf("HISTORY_FILE is required when LEDGER_BACKEND=file")
		}
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_BACKEND=postgres")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case LedgerRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LEDGER_BACKEND=redis")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q, %q or %q, got %q",
			LedgerFile, LedgerPostgres, LedgerRedis, c.LedgerBackend)
	}
	return nil
}
