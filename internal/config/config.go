package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string `mapstructure:"PORT"`
	Env             string `mapstructure:"ENV"`
	DutyType        string `mapstructure:"DUTY_TYPE"`
	RulesetVersion  string `mapstructure:"RULESET_VERSION"`
	LocalOnly       bool   `mapstructure:"LOCAL_ONLY"`
	VaultBackend    string `mapstructure:"VAULT_BACKEND"`
	VaultRoot       string `mapstructure:"VAULT_ROOT"`
	VaultScope      string `mapstructure:"VAULT_SCOPE"`
	VaultSQLitePath string `mapstructure:"VAULT_SQLITE_PATH"`
	VaultDefaultTTL int64  `mapstructure:"VAULT_DEFAULT_TTL_MS"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32  `mapstructure:"DB_MIN_CONNS"`
	LogFile         string `mapstructure:"LOG_FILE"`
}

// Vault backends.
const (
	VaultBackendMemory   = "memory"
	VaultBackendSQLite   = "sqlite"
	VaultBackendPostgres = "postgres"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DUTY_TYPE", "day")
	v.SetDefault("RULESET_VERSION", "2025.08")
	v.SetDefault("LOCAL_ONLY", true)
	v.SetDefault("VAULT_BACKEND", VaultBackendMemory)
	v.SetDefault("VAULT_ROOT", "handover")
	v.SetDefault("VAULT_SCOPE", "default")
	v.SetDefault("VAULT_SQLITE_PATH", "handover-vault.sqlite")
	v.SetDefault("VAULT_DEFAULT_TTL_MS", 8*60*60*1000) // one shift
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DUTY_TYPE")
	v.BindEnv("RULESET_VERSION")
	v.BindEnv("LOCAL_ONLY")
	v.BindEnv("VAULT_BACKEND")
	v.BindEnv("VAULT_ROOT")
	v.BindEnv("VAULT_SCOPE")
	v.BindEnv("VAULT_SQLITE_PATH")
	v.BindEnv("VAULT_DEFAULT_TTL_MS")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("LOG_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.VaultBackend {
	case VaultBackendMemory, VaultBackendSQLite:
	case VaultBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when VAULT_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown VAULT_BACKEND %q", cfg.VaultBackend)
	}

	switch strings.ToLower(cfg.DutyType) {
	case "day", "evening", "night":
	default:
		return nil, fmt.Errorf("unknown DUTY_TYPE %q", cfg.DutyType)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
