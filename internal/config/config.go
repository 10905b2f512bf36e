// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/staticlift/internal/auth"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// MinJWTSecretLength is the minimum required length for the signing secret.
const MinJWTSecretLength = 32

// passwordHashPrefix is the environment prefix for per-administrator password
// hash entries; the suffix is derived from the identity (see auth.SecretName).
const passwordHashPrefix = "SLIFT_ADMIN_PASSWORD_HASH_"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"SLIFT_DB_PATH" envDefault:"./data/staticlift.db"`
	JWTSecret  string `env:"SLIFT_JWT_SECRET,required"`
	ServerHost string `env:"SLIFT_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"SLIFT_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"SLIFT_ENV" envDefault:"development"`
	LogLevel   string `env:"SLIFT_LOG_LEVEL" envDefault:"info"`

	// SiteDir is the root of the static multi-page site that serve-time
	// content injection operates on.
	SiteDir string `env:"SLIFT_SITE_DIR" envDefault:"./site"`

	// AdminUsers is the administrator allow-list. Identities are normalized
	// (trimmed, case-folded) at load time.
	AdminUsers []string `env:"SLIFT_ADMIN_USERS" envSeparator:","`

	// TokenTTL is the credential lifetime in seconds.
	TokenTTL int `env:"SLIFT_TOKEN_TTL" envDefault:"86400"`

	// HistoryRetentionDays bounds how long content history snapshots live.
	HistoryRetentionDays int `env:"SLIFT_HISTORY_RETENTION_DAYS" envDefault:"30"`

	// Image storage: an S3 bucket when provisioned, a local directory
	// otherwise. When neither is set the image API reports the storage
	// backend as unavailable.
	S3Bucket   string `env:"SLIFT_S3_BUCKET"`
	S3Prefix   string `env:"SLIFT_S3_PREFIX"`
	UploadsDir string `env:"SLIFT_UPLOADS_DIR"`

	// RSSFeeds maps feed names to upstream URLs for the RSS proxy,
	// e.g. "blog:https://example.substack.com/feed".
	RSSFeeds map[string]string `env:"SLIFT_RSS_FEEDS"`

	// AdminPasswordHashes maps auth.SecretName-style env suffixes to
	// PBKDF2 hashes, collected from SLIFT_ADMIN_PASSWORD_HASH_* entries.
	AdminPasswordHashes map[string]string `env:"-"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ImageStorageConfigured reports whether any image storage backend is set up.
func (c Config) ImageStorageConfigured() bool {
	return c.S3Bucket != "" || c.UploadsDir != ""
}

// IsAdmin reports whether the given identity is on the allow-list.
// The input is normalized before comparison.
func (c Config) IsAdmin(email string) bool {
	normalized := auth.NormalizeEmail(email)
	for _, admin := range c.AdminUsers {
		if admin == normalized {
			return true
		}
	}
	return false
}

// PasswordHashFor returns the stored password hash for an identity, or ""
// if no hash entry is configured.
func (c Config) PasswordHashFor(email string) string {
	return c.AdminPasswordHashes[auth.SecretName(email)]
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("SLIFT_JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(cfg.JWTSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.JWTSecret == weak {
			return nil, fmt.Errorf("SLIFT_JWT_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("SLIFT_JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	// Normalize the allow-list once so request-time checks are a plain compare
	for i, admin := range cfg.AdminUsers {
		cfg.AdminUsers[i] = auth.NormalizeEmail(admin)
	}

	cfg.AdminPasswordHashes = collectPasswordHashes(os.Environ())

	return cfg, nil
}

// collectPasswordHashes scans the environment for per-administrator password
// hash entries.
func collectPasswordHashes(environ []string) map[string]string {
	hashes := make(map[string]string)
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, passwordHashPrefix) {
			continue
		}
		if value != "" {
			hashes[name] = value
		}
	}
	return hashes
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
