// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/gravito-framework/helioscope-go/internal/redis"
	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// DefaultPath is the config file read when no -config flag is given.
const DefaultPath = "helioscope.toml"

const (
	defaultIntervalSecs = 60
	defaultRedisTTLSecs = 300
	defaultLogLevel     = "info"
)

// Config holds all configuration for the Helioscope agent
type Config struct {
	// Passed through untouched; the agent never interprets these.
	NodeID        string `toml:"node_id"`
	CollectorAddr string `toml:"metrics_collector_addr"`

	// Watch-mode period. Zero runs a single cycle.
	CollectionIntervalSecs int `toml:"collection_interval_secs" validate:"gte=0"`

	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`

	// Optional Redis sink
	RedisURL     string `toml:"redis_url"`
	RedisTTLSecs int    `toml:"redis_ttl_secs" validate:"gte=0"`

	// Optional Prometheus textfile with the agent's own counters
	MetricsTextfile string `toml:"metrics_textfile"`

	Probes ProbeConfig `toml:"-" validate:"-"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		CollectionIntervalSecs: defaultIntervalSecs,
		LogLevel:               defaultLogLevel,
		RedisTTLSecs:           defaultRedisTTLSecs,
		Probes:                 NewProbeConfig(nil),
	}
}

// Interval returns the watch-mode period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CollectionIntervalSecs) * time.Second
}

// RedisTTL returns the expiry applied to the node's record list.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSecs) * time.Second
}

// Load reads path, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Message: "cannot read " + path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ConfigError{Field: "env", Message: "cannot load " + path, Err: err}
	}
	return nil
}

// Parse decodes a TOML document. Unknown keys are ignored at every level;
// a recognized key holding the wrong type is a ConfigError.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Field: "toml", Message: "malformed document", Err: err}
	}

	cfg := DefaultConfig()

	var err error
	if cfg.NodeID, err = stringKey(raw, "node_id", cfg.NodeID); err != nil {
		return nil, err
	}
	if cfg.CollectorAddr, err = stringKey(raw, "metrics_collector_addr", cfg.CollectorAddr); err != nil {
		return nil, err
	}
	if cfg.CollectionIntervalSecs, err = intKey(raw, "collection_interval_secs", cfg.CollectionIntervalSecs); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = stringKey(raw, "log_level", cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = stringKey(raw, "redis_url", cfg.RedisURL); err != nil {
		return nil, err
	}
	if cfg.RedisTTLSecs, err = intKey(raw, "redis_ttl_secs", cfg.RedisTTLSecs); err != nil {
		return nil, err
	}
	if cfg.MetricsTextfile, err = stringKey(raw, "metrics_textfile", cfg.MetricsTextfile); err != nil {
		return nil, err
	}

	if cfg.Probes, err = parseProbes(raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseProbes reads [probes.<source>] tables, falling back to flat keys
// directly under [probes]. Source tables win over flat keys.
func parseProbes(raw map[string]any) (ProbeConfig, error) {
	flags := make(map[string]bool)

	section, ok := raw["probes"]
	if !ok {
		return NewProbeConfig(flags), nil
	}
	table, ok := section.(map[string]any)
	if !ok {
		return ProbeConfig{}, typeError("probes", "table", section)
	}

	for _, kp := range types.KnownProbes {
		v, ok := table[kp.Name]
		if !ok {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return ProbeConfig{}, typeError("probes."+kp.Name, "boolean", v)
		}
		flags[kp.Name] = b
	}

	for _, kp := range types.KnownProbes {
		src := string(kp.Source)
		srcRaw, ok := table[src]
		if !ok {
			continue
		}
		srcTable, ok := srcRaw.(map[string]any)
		if !ok {
			return ProbeConfig{}, typeError("probes."+src, "table", srcRaw)
		}
		v, ok := srcTable[kp.Name]
		if !ok {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return ProbeConfig{}, typeError("probes."+src+"."+kp.Name, "boolean", v)
		}
		flags[kp.Name] = b
	}

	return NewProbeConfig(flags), nil
}

func stringKey(raw map[string]any, key, fallback string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

func intKey(raw map[string]any, key string, fallback int) (int, error) {
	v, ok := raw[key]
	if !ok {
		return fallback, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, typeError(key, "integer", v)
	}
	return int(n), nil
}

func typeError(field, want string, got any) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

// applyEnv overrides file values from HELIOSCOPE_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("HELIOSCOPE_NODE_ID"); v != "" {
		c.NodeID = v
	}

	if v := os.Getenv("HELIOSCOPE_COLLECTOR_ADDR"); v != "" {
		c.CollectorAddr = v
	}

	if v := os.Getenv("HELIOSCOPE_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "HELIOSCOPE_INTERVAL", Message: "expected whole seconds", Err: err}
		}
		c.CollectionIntervalSecs = seconds
	}

	if v := os.Getenv("HELIOSCOPE_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("HELIOSCOPE_REDIS_URL"); v != "" {
		c.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" && c.RedisURL == "" {
		// Common convention
		c.RedisURL = v
	}

	if v := os.Getenv("HELIOSCOPE_METRICS_TEXTFILE"); v != "" {
		c.MetricsTextfile = v
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the fields the agent itself owns. node_id and
// metrics_collector_addr are accepted as-is.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigError{Field: "config", Message: "validation failed", Err: err}
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseRedisURL(c.RedisURL); err != nil {
			return &ConfigError{Field: "redis_url", Message: "invalid Redis URL", Err: err}
		}
	}
	return nil
}

// ConfigError represents a configuration loading or validation error
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "config error: " + e.Field + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
