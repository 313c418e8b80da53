package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrSecretInConfig rejects config files carrying a database password.
var ErrSecretInConfig = errors.New("database password not allowed in config files (use " + DatabasePasswordEnv + " environment variable)")

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"db-url":     "database.url",
	"catalog":    "catalog.file",
	"log-level":  "log.level",
	"log-format": "log.format",
}

type synonym struct {
	Text string `mapstructure:"text"`
	Code string `mapstructure:"code"`
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence. flags may
// be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("database.url", d.DatabaseURL)
	v.SetDefault("catalog.file", d.CatalogFile)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
	v.SetDefault("attribute.general_column", "")
	v.SetDefault("attribute.non_applicable_value", "")
	v.SetDefault("attribute.unknown_value", "")
	v.SetDefault("connectivity.count_parallelism", d.CountParallelism)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// checked before env binding so only file values are seen
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("QM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("database.url"),
		CatalogFile:        v.GetString("catalog.file"),
		LogLevel:           v.GetString("log.level"),
		LogFormat:          v.GetString("log.format"),
		GeneralColumn:      v.GetString("attribute.general_column"),
		NonApplicableValue: v.GetString("attribute.non_applicable_value"),
		UnknownValue:       v.GetString("attribute.unknown_value"),
		CountParallelism:   v.GetInt("connectivity.count_parallelism"),
	}
	// a list keeps the case of the free text; viper folds map keys
	if v.IsSet("attribute.synonyms") {
		var synonyms []synonym
		if err := v.UnmarshalKey("attribute.synonyms", &synonyms); err != nil {
			return nil, fmt.Errorf("failed to read attribute.synonyms: %w", err)
		}
		cfg.Synonyms = make(map[string]string, len(synonyms))
		for _, s := range synonyms {
			if s.Text == "" || s.Code == "" {
				return nil, fmt.Errorf("attribute.synonyms entries need text and code, got %+v", s)
			}
			cfg.Synonyms[s.Text] = s.Code
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks log settings and the count parallelism.
func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", cfg.LogFormat)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.CountParallelism <= 0 {
		return fmt.Errorf("connectivity.count_parallelism must be positive, got %d", cfg.CountParallelism)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database passwords.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("database.password") || hasPassword(v.GetString("database.url")) {
		return ErrSecretInConfig
	}
	return nil
}
