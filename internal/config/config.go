// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package config loads shopfront settings. Flag defaults are the base layer,
// an optional YAML file overrides them, and flags set on the command line
// override the file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/authctx"
	"github.com/shopfront/shopfront/internal/xdg"
)

// CodeInvalid is attached to every configuration error.
const CodeInvalid = "CONFIG_INVALID"

// Config is the full shopfront configuration.
type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Database   DatabaseConfig   `koanf:"database"`
	Log        LogConfig        `koanf:"log"`
	Session    SessionConfig    `koanf:"session"`
	Identity   IdentityConfig   `koanf:"identity"`
	Routes     RoutesConfig     `koanf:"routes"`
	Nav        NavConfig        `koanf:"nav"`
	Audit      AuditConfig      `koanf:"audit"`
	Revocation RevocationConfig `koanf:"revocation"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// MetricsConfig configures the metrics and health listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// SessionConfig describes how identity service tokens are verified.
type SessionConfig struct {
	Cookie   string `koanf:"cookie"`
	Secret   string `koanf:"secret"`
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`
}

// IdentityConfig points at the identity service. Empty URL disables remote
// sign-out and password changes.
type IdentityConfig struct {
	URL string `koanf:"url"`
}

// RoutesConfig names the login and neutral destinations used for redirects.
type RoutesConfig struct {
	Login   string `koanf:"login"`
	Neutral string `koanf:"neutral"`
}

// NavConfig points at an optional navigation manifest.
type NavConfig struct {
	Manifest string `koanf:"manifest"`
}

// AuditConfig configures the audit fallback file.
type AuditConfig struct {
	WALPath string `koanf:"wal_path"`
}

// RevocationConfig controls cleanup of the sign-out revocation list.
type RevocationConfig struct {
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// Defaults.
const (
	DefaultHTTPAddr      = "127.0.0.1:8080"
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultPurgeInterval = time.Hour
)

// DatabaseURLEnv is consulted when neither the file nor a flag sets
// database.url.
const DatabaseURLEnv = "DATABASE_URL"

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":                 "http.addr",
	"cors-origin":               "http.cors_origins",
	"metrics-addr":              "metrics.addr",
	"database-url":              "database.url",
	"log-format":                "log.format",
	"log-level":                 "log.level",
	"session-cookie":            "session.cookie",
	"session-secret":            "session.secret",
	"session-issuer":            "session.issuer",
	"session-audience":          "session.audience",
	"identity-url":              "identity.url",
	"login-path":                "routes.login",
	"neutral-path":              "routes.neutral",
	"nav-manifest":              "nav.manifest",
	"audit-wal":                 "audit.wal_path",
	"revocation-purge-interval": "revocation.purge_interval",
}

// RegisterFlags adds every configuration flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.StringSlice("cors-origin", nil, "browser origin allowed to call the API (repeatable)")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health listen address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("session-cookie", auth.DefaultCookieName, "session cookie name")
	fs.String("session-secret", "", "HMAC secret shared with the identity service")
	fs.String("session-issuer", "", "required token issuer (empty = any)")
	fs.String("session-audience", "", "required token audience (empty = any)")
	fs.String("identity-url", "", "identity service base URL")
	fs.String("login-path", authctx.DefaultLoginPath, "where unauthenticated users are sent")
	fs.String("neutral-path", authctx.DefaultNeutralPath, "where users lacking a role are sent")
	fs.String("nav-manifest", "", "navigation manifest YAML (empty = built-in)")
	fs.String("audit-wal", "", "audit fallback file (default: XDG_STATE_HOME/shopfront/audit-wal.jsonl)")
	fs.Duration("revocation-purge-interval", DefaultPurgeInterval, "how often expired revocations are deleted")
}

// DefaultPath returns config.yaml in the XDG config directory when that file
// exists, and "" otherwise.
func DefaultPath() string {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Load builds a Config from the flag defaults in fs, the YAML file at path
// (skipped when empty), and the flags explicitly set in fs. A database URL
// still unset afterwards is taken from $DATABASE_URL.
func Load(fs *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalid).
				With("path", path).
				With("operation", "read config file").
				Wrap(err)
		}
	}

	// With k passed in, posflag only lets unchanged flags fill keys the file
	// left unset; changed flags always win.
	provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "read flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "decode config").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}
	return &cfg, nil
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code(CodeInvalid).With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return oops.Code(CodeInvalid).With("key", "log.level").
			Errorf("unknown log.level %q", c.Log.Level)
	}
	for key, p := range map[string]string{"routes.login": c.Routes.Login, "routes.neutral": c.Routes.Neutral} {
		if !strings.HasPrefix(p, "/") {
			return oops.Code(CodeInvalid).With("key", key).
				Errorf("%s must be an absolute path, got %q", key, p)
		}
	}
	return nil
}

// ValidateServe checks what the API server needs on top of Validate.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code(CodeInvalid).With("key", "http.addr").Errorf("http.addr is required")
	}
	if c.Session.Secret == "" {
		return oops.Code(CodeInvalid).With("key", "session.secret").Errorf("session.secret is required")
	}
	if c.Revocation.PurgeInterval <= 0 {
		return oops.Code(CodeInvalid).With("key", "revocation.purge_interval").
			Errorf("revocation.purge_interval must be positive")
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code(CodeInvalid).With("key", "database.url").Errorf("database.url is required")
	}
	return nil
}
