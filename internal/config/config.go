// Package config collects the process-level settings shared by the api and
// worker binaries. Values come from flags, with environment variables as
// defaults so containerized deployments need no argument list.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the settings every service binary needs.
type Config struct {
	Port            string
	DBPath          string
	RulesPath       string
	MetaPath        string
	CredentialsPath string
	TokenPath       string
	Workers         int
}

// FromFlags parses the command line. Call at most once per process.
func FromFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Port, "port", envOr("PORT", "8080"), "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", envOr("DB_PATH", "mailspend.db"), "SQLite database path")
	flag.StringVar(&cfg.RulesPath, "rules", envOr("RULES_PATH", "config/rules.json"), "Categorization rules file")
	flag.StringVar(&cfg.MetaPath, "meta", envOr("CATEGORY_META_PATH", "config/categories.json"), "Category metadata file")
	flag.StringVar(&cfg.CredentialsPath, "credentials", envOr("GMAIL_CREDENTIALS", "credentials.json"), "Gmail OAuth client credentials file")
	flag.StringVar(&cfg.TokenPath, "token", envOr("GMAIL_TOKEN", "token.json"), "Gmail OAuth token file")
	flag.IntVar(&cfg.Workers, "workers", envIntOr("SYNC_WORKERS", 2), "Concurrent sync jobs")
	flag.Parse()

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
