// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package config loads keyward settings from defaults, a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/httpapi"
	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/notify"
	"github.com/keyward/keyward/internal/store"
	"github.com/keyward/keyward/internal/token"
	"github.com/keyward/keyward/internal/xdg"
)

// EnvPrefix prefixes every environment variable; "__" separates levels, so
// KEYWARD_EMAIL_CHANGE__MAX_ATTEMPTS sets email_change.max_attempts.
const EnvPrefix = "KEYWARD_"

// Notification drivers.
const (
	DriverLog      = "log"
	DriverRabbitMQ = "rabbitmq"
)

// Config is the full keyward configuration.
type Config struct {
	HTTP struct {
		Addr           string   `koanf:"addr"`
		CORSOrigins    []string `koanf:"cors_origins"`
		TrustedProxies []string `koanf:"trusted_proxies"`
	} `koanf:"http"`
	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
	Log      logging.Options `koanf:"log"`
	Database struct {
		URL  string            `koanf:"url"`
		Pool store.PoolOptions `koanf:",squash"`
	} `koanf:"database"`
	Hashing     credential.Params `koanf:"hashing"`
	Token       token.Config      `koanf:"token"`
	EmailChange struct {
		Expiration  time.Duration `koanf:"expiration"`
		MaxAttempts int           `koanf:"max_attempts"`
	} `koanf:"email_change"`
	Frontend struct {
		URL string `koanf:"url"`
	} `koanf:"frontend"`
	Notify struct {
		Driver      string             `koanf:"driver"`
		RabbitMQURL string             `koanf:"rabbitmq_url"`
		Queue       string             `koanf:"queue"`
		Retry       notify.RetryPolicy `koanf:"retry"`
		Prefetch    int                `koanf:"prefetch"`
		SendTimeout time.Duration      `koanf:"send_timeout"`
	} `koanf:"notify"`
	Mailgun notify.MailgunConfig `koanf:"mailgun"`
	Redis   struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`
	RateLimit struct {
		Rules []httpapi.RateRule `koanf:"rules"`
	} `koanf:"rate_limit"`
}

func defaults() map[string]any {
	hashing := credential.DefaultParams()
	retry := notify.DefaultRetryPolicy()

	rules := make([]any, 0)
	for _, r := range httpapi.DefaultRateRules() {
		rules = append(rules, map[string]any{
			"pattern": r.Pattern,
			"limit":   r.Limit,
			"window":  r.Window.String(),
		})
	}

	return map[string]any{
		"http.addr":                 ":8080",
		"http.cors_origins":         []any{"http://localhost:4200"},
		"http.trusted_proxies":      []any{},
		"metrics.addr":              "127.0.0.1:9100",
		"log.format":                logging.FormatJSON,
		"log.level":                 "info",
		"hashing.salt_size":         hashing.SaltSize,
		"hashing.key_size":          hashing.KeySize,
		"hashing.iterations":        hashing.Iterations,
		"hashing.memory_kb":         hashing.MemoryKB,
		"hashing.parallelism":       hashing.Parallelism,
		"token.ttl":                 "15m",
		"token.rotation_interval":   "24h",
		"token.key_bits":            2048,
		"email_change.expiration":   "10m",
		"email_change.max_attempts": 3,
		"frontend.url":              "http://localhost:4200",
		"notify.driver":             DriverLog,
		"notify.queue":              "keyward.email",
		"notify.retry.base":         retry.Base.String(),
		"notify.retry.cap":          retry.Cap.String(),
		"notify.retry.max_retries":  retry.MaxRetries,
		"notify.prefetch":           10,
		"notify.send_timeout":       "15s",
		"redis.db":                  0,
		"rate_limit.rules":          rules,
	}
}

// Load reads the configuration. An empty path means the XDG default file,
// which may be absent; an explicit path must exist. flags may be nil; its
// changed flags override everything else, with "-" mapping to the first
// level separator ("http-addr" sets http.addr).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		switch {
		case err == nil:
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	if k.String("database.url") == "" {
		if u := os.Getenv("DATABASE_URL"); u != "" {
			_ = k.Set("database.url", u)
		}
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.Replace(f.Name, "-", ".", 1), posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func invalid(key string, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return invalid("log.format", "log format must be %q or %q", logging.FormatJSON, logging.FormatText)
	}
	if err := c.Hashing.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "hashing").Wrap(err)
	}
	if err := c.Token.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "token").Wrap(err)
	}
	if err := c.Account().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "email_change").Wrap(err)
	}
	if u, err := url.Parse(c.Frontend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("frontend.url", "frontend url must be absolute, got %q", c.Frontend.URL)
	}

	for _, origin := range c.HTTP.CORSOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("http.cors_origins", "cors origin must be absolute or \"*\", got %q", origin)
		}
	}

	for _, proxy := range c.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			return invalid("http.trusted_proxies", "trusted proxy must be an IP or CIDR, got %q", proxy)
		}
	}

	switch c.Notify.Driver {
	case DriverLog:
	case DriverRabbitMQ:
		if c.Notify.RabbitMQURL == "" {
			return invalid("notify.rabbitmq_url", "rabbitmq url is required for the rabbitmq driver")
		}
	default:
		return invalid("notify.driver", "notify driver must be %q or %q", DriverLog, DriverRabbitMQ)
	}
	if c.Notify.Queue == "" {
		return invalid("notify.queue", "queue name is required")
	}

	for i, r := range c.RateLimit.Rules {
		if r.Pattern == "" || r.Limit <= 0 || r.Window <= 0 {
			return oops.Code("CONFIG_INVALID").With("key", "rate_limit.rules").With("index", i).
				Errorf("rate rule needs a pattern, a positive limit and a positive window")
		}
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database url is required (set database.url, %sDATABASE__URL or DATABASE_URL)", EnvPrefix)
	}
	return nil
}

// ValidateWorker checks the settings the email worker needs.
func (c *Config) ValidateWorker() error {
	if c.Notify.RabbitMQURL == "" {
		return invalid("notify.rabbitmq_url", "rabbitmq url is required by the worker")
	}
	if c.Notify.Prefetch <= 0 {
		return invalid("notify.prefetch", "prefetch must be positive")
	}
	if err := c.Mailgun.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "mailgun").Wrap(err)
	}
	return nil
}

// Account returns the lifecycle settings.
func (c *Config) Account() account.Config {
	return account.Config{
		FrontendURL:            c.Frontend.URL,
		EmailChangeExpiration:  c.EmailChange.Expiration,
		EmailChangeMaxAttempts: c.EmailChange.MaxAttempts,
	}
}
