// Package config provides configuration management for the qamatrix tools.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// DatabasePasswordEnv carries the database password. Passwords are never
// read from config files.
const DatabasePasswordEnv = "QM_DATABASE_PASSWORD"

// Config holds all settings of the command line tools.
type Config struct {
	DatabaseURL string
	CatalogFile string

	LogLevel  string
	LogFormat string

	// Attribute matrix sentinel names; empty means built-in default.
	GeneralColumn      string
	NonApplicableValue string
	UnknownValue       string
	Synonyms           map[string]string

	// CountParallelism bounds concurrent row count queries.
	CountParallelism int
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:      "sqlite://./qamatrix.db",
		LogLevel:         "info",
		LogFormat:        "console",
		CountParallelism: 4,
	}
}

// ResolvedDatabaseURL returns DatabaseURL with the password from
// QM_DATABASE_PASSWORD filled in, if set.
func (c *Config) ResolvedDatabaseURL() (string, error) {
	return WithPassword(c.DatabaseURL, os.Getenv(DatabasePasswordEnv))
}

// WithPassword sets the password of a database URL. sqlite URLs and an
// empty password leave the URL unchanged.
func WithPassword(rawURL, password string) (string, error) {
	if password == "" || strings.HasPrefix(rawURL, "sqlite://") {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	if user == "" {
		return "", fmt.Errorf("%s set but database URL names no user", DatabasePasswordEnv)
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
