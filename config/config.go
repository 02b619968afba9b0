// Package config loads the svcauth command configuration from YAML with
// SVCAUTH_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/signing"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SVCAUTH_"

var (
	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrInvalidEnv is returned when an override cannot be parsed.
	ErrInvalidEnv = errors.New("config: invalid environment override")
)

// Config is the svcauth configuration file.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Client   ClientConfig   `yaml:"client"`
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PublicURL, when set, replaces scheme and host of the reconstructed
	// request URL.
	PublicURL string `yaml:"public_url"`

	// TrustedProxies enables forwarding headers from these peers. Empty
	// disables proxy handling.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// RegistryConfig selects where service records come from. Exactly one of File
// and Badger must be set.
type RegistryConfig struct {
	File      string `yaml:"file"`
	Badger    string `yaml:"badger"`
	MasterKey string `yaml:"master_key"`
	CacheSize int    `yaml:"cache_size"`

	// Preload reads the whole badger store into memory at startup instead
	// of looking records up through the cache.
	Preload bool `yaml:"preload"`
}

// ClientConfig configures the call command.
type ClientConfig struct {
	Endpoint        string          `yaml:"endpoint"`
	Identity        string          `yaml:"identity"`
	Keys            signing.KeyPair `yaml:"keys"`
	ServerPublicKey string          `yaml:"server_public_key"`
	Exempt          bool            `yaml:"exempt"`
	Timeout         time.Duration   `yaml:"timeout"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Listen:          ":8080",
			MaxConnections:  1024,
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Registry: RegistryConfig{
			CacheSize: registry.DefaultCacheSize,
		},
		Client: ClientConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}

		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values of absent keys. Unknown
// keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// envOverride binds one SVCAUTH_* variable to a config field.
type envOverride struct {
	name string
	set  func(c *Config, v string) error
}

var envOverrides = []envOverride{
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"LISTEN", func(c *Config, v string) error { c.Server.Listen = v; return nil }},
	{"MAX_CONNECTIONS", func(c *Config, v string) error { return parseInt(v, &c.Server.MaxConnections) }},
	{"MAX_BODY_BYTES", func(c *Config, v string) error { return parseInt64(v, &c.Server.MaxBodyBytes) }},
	{"PUBLIC_URL", func(c *Config, v string) error { c.Server.PublicURL = v; return nil }},
	{"TRUSTED_PROXIES", func(c *Config, v string) error { c.Server.TrustedProxies = splitList(v); return nil }},
	{"REGISTRY_FILE", func(c *Config, v string) error { c.Registry.File = v; return nil }},
	{"REGISTRY_BADGER", func(c *Config, v string) error { c.Registry.Badger = v; return nil }},
	{"MASTER_KEY", func(c *Config, v string) error { c.Registry.MasterKey = v; return nil }},
	{"ENDPOINT", func(c *Config, v string) error { c.Client.Endpoint = v; return nil }},
	{"IDENTITY", func(c *Config, v string) error { c.Client.Identity = v; return nil }},
	{"PRIVATE_KEY", func(c *Config, v string) error { c.Client.Keys.Private = v; return nil }},
	{"PUBLIC_KEY", func(c *Config, v string) error { c.Client.Keys.Public = v; return nil }},
	{"SERVER_PUBLIC_KEY", func(c *Config, v string) error { c.Client.ServerPublicKey = v; return nil }},
	{"EXEMPT", func(c *Config, v string) error { return parseBool(v, &c.Client.Exempt) }},
}

// ApplyEnv overrides fields from SVCAUTH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error

	for _, o := range envOverrides {
		v, ok := lookup(EnvPrefix + o.name)
		if !ok {
			continue
		}

		if err := o.set(c, strings.TrimSpace(v)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s%s: %w", ErrInvalidEnv, EnvPrefix, o.name, err))
		}
	}

	return errs
}

// Logger builds a logger from the log section.
func (l LogConfig) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}

	log := logrus.New()
	log.SetLevel(level)

	switch l.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, l.Format)
	}

	return log, nil
}

// ValidateServer checks the sections used by the serve command.
func (c Config) ValidateServer() error {
	var errs error

	if _, err := c.Log.Logger(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Server.Listen == "" {
		errs = multierr.Append(errs, invalid("server.listen is required"))
	}

	if c.Server.MaxConnections < 0 {
		errs = multierr.Append(errs, invalid("server.max_connections must not be negative"))
	}

	if c.Server.MaxBodyBytes <= 0 {
		errs = multierr.Append(errs, invalid("server.max_body_bytes must be positive"))
	}

	if c.Server.PublicURL != "" {
		if err := validateURL(c.Server.PublicURL); err != nil {
			errs = multierr.Append(errs, invalid("server.public_url: %v", err))
		}
	}

	return multierr.Append(errs, c.ValidateRegistry())
}

// ValidateRegistry checks the registry section.
func (c Config) ValidateRegistry() error {
	var errs error

	r := c.Registry

	switch {
	case r.File == "" && r.Badger == "":
		errs = multierr.Append(errs, invalid("one of registry.file and registry.badger is required"))
	case r.File != "" && r.Badger != "":
		errs = multierr.Append(errs, invalid("registry.file and registry.badger are mutually exclusive"))
	}

	if r.Badger != "" && r.MasterKey == "" {
		errs = multierr.Append(errs, invalid("registry.master_key is required with registry.badger"))
	}

	if r.CacheSize < 0 {
		errs = multierr.Append(errs, invalid("registry.cache_size must not be negative"))
	}

	return errs
}

// ValidateClient checks the sections used by the call command.
func (c Config) ValidateClient() error {
	var errs error

	if _, err := c.Log.Logger(); err != nil {
		errs = multierr.Append(errs, err)
	}

	cl := c.Client

	if err := validateURL(cl.Endpoint); err != nil {
		errs = multierr.Append(errs, invalid("client.endpoint: %v", err))
	}

	if !registry.ValidIdentity(cl.Identity) {
		errs = multierr.Append(errs, invalid("client.identity %q is not a valid identity", cl.Identity))
	}

	if !cl.Exempt {
		if cl.Keys.Private == "" {
			errs = multierr.Append(errs, invalid("client.keys.private is required unless exempt"))
		} else if err := cl.Keys.Validate(); err != nil {
			errs = multierr.Append(errs, invalid("client.keys: %v", err))
		}
	}

	if cl.ServerPublicKey != "" {
		if _, err := signing.ParsePublicKey(cl.ServerPublicKey); err != nil {
			errs = multierr.Append(errs, invalid("client.server_public_key: %v", err))
		}
	}

	return errs
}

// invalid wraps ErrInvalid with a formatted message.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// validateURL requires an absolute http or https URL.
func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}

	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}

func parseInt64(v string, dst *int64) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*dst = b

	return nil
}

// splitList splits v on commas and whitespace.
func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}
