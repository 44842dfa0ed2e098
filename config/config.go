// Package config loads the switchboard configuration from defaults, an
// optional TOML file and the environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/bjaus/switchboard"
)

// EnvFile names the environment variable holding the config file path.
const EnvFile = "SWITCHBOARD_CONFIG"

// Config is the complete configuration.
type Config struct {
	Log   Log   `toml:"log"`
	HTTP  HTTP  `toml:"http"`
	Batch Batch `toml:"batch"`
	Audit Audit `toml:"audit"`
	Auth  Auth  `toml:"auth"`
	Local Local `toml:"local"`
}

// Log configures the process logger.
type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// HTTP configures response headers and preflight checks.
type HTTP struct {
	AllowedOrigins     []string `toml:"allowed_origins"`
	AllowLocalhost     bool     `toml:"allow_localhost"`
	CORSAllowedDomains []string `toml:"cors_allowed_domains"`
}

// Batch configures batch event dispatch.
type Batch struct {
	Concurrency int `toml:"concurrency"`
}

// Audit configures the audit log.
type Audit struct {
	Suppress bool `toml:"suppress"`
}

// Auth configures bearer token verification.
type Auth struct {
	Secret   string `toml:"secret"`
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`
}

// Local configures the development server.
type Local struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:   Log{Level: "info"},
		HTTP:  HTTP{AllowedOrigins: []string{"*"}},
		Local: Local{Addr: ":8080"},
	}
}

// Load builds the configuration. The file at path, or at $SWITCHBOARD_CONFIG
// when path is empty, is optional; environment variables override it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML data over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("parse config at %d:%d: %w", row, col, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("CORS_ALLOWED_DOMAINS"); ok {
		c.HTTP.CORSAllowedDomains = splitList(v)
	}
	if v, ok := lookup("ALLOW_LOCALHOST"); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("ALLOW_LOCALHOST: %w", err)
		}
		c.HTTP.AllowLocalhost = b
	}
	if v, ok := lookup("SUPPRESS_AUDIT_LOGS"); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("SUPPRESS_AUDIT_LOGS: %w", err)
		}
		c.Audit.Suppress = b
	}
	if v, ok := lookup("BATCH_CONCURRENCY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("BATCH_CONCURRENCY: %w", err)
		}
		c.Batch.Concurrency = n
	}
	if v, ok := lookup("JWT_SECRET"); ok {
		c.Auth.Secret = v
	}
	if v, ok := lookup("JWT_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := lookup("JWT_AUDIENCE"); ok {
		c.Auth.Audience = v
	}
	if v, ok := lookup("LOCAL_ADDR"); ok {
		c.Local.Addr = v
	}
	return nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Batch.Concurrency < 0 {
		errs = append(errs, errors.New("batch.concurrency: must not be negative"))
	}
	if (c.Auth.Issuer != "" || c.Auth.Audience != "") && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret: required when issuer or audience is set"))
	}
	for _, d := range c.HTTP.CORSAllowedDomains {
		if strings.Contains(d, "://") {
			errs = append(errs, fmt.Errorf("http.cors_allowed_domains: %q must be a domain, not a URL", d))
		}
	}
	return errors.Join(errs...)
}

// ResponseDefaults returns the response header defaults.
func (c Config) ResponseDefaults() switchboard.ResponseDefaults {
	return switchboard.ResponseDefaults{
		AllowedOrigins: c.HTTP.AllowedOrigins,
		AllowLocalhost: c.HTTP.AllowLocalhost,
	}
}

// HandlerOptions returns the handler options the configuration implies.
func (c Config) HandlerOptions() []switchboard.Option {
	opts := []switchboard.Option{
		switchboard.WithBatchConcurrency(c.Batch.Concurrency),
	}
	if len(c.HTTP.CORSAllowedDomains) > 0 {
		opts = append(opts, switchboard.WithAllowedOrigins(c.HTTP.CORSAllowedDomains...))
	}
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "on":
		return true, nil
	case "n", "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
