// Package config loads the gateway configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Opentelemetry OpentelemetryConfig `yaml:"opentelemetry"`
	Subschemas    []SubschemaConfig   `yaml:"subschemas"`

	// dir is where relative schema files are looked up.
	dir string
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	Timeout        string   `yaml:"timeout"`
	Pretty         bool     `yaml:"pretty"`
	GraphiQL       *bool    `yaml:"graphiql"`
	Introspection  *bool    `yaml:"introspection"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	CORSOrigins    []string `yaml:"cors_origins"`
	ForwardHeaders []string `yaml:"forward_headers"`
}

type OpentelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type SubschemaConfig struct {
	Name        string            `yaml:"name"`
	Endpoint    string            `yaml:"endpoint"`
	SchemaFiles []string          `yaml:"schema_files"`
	Timeout     string            `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	Retry       RetryConfig       `yaml:"retry"`
	Hoist       []HoistConfig     `yaml:"hoist"`
}

// RetryConfig controls fetching the SDL of a subschema without schema files.
type RetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Timeout  string `yaml:"timeout"`
}

type HoistConfig struct {
	Type     string        `yaml:"type"`
	Path     []PathSegment `yaml:"path"`
	NewField string        `yaml:"new_field"`
	Alias    string        `yaml:"alias"`
}

// PathSegment is written either as a bare field name or as
// {field: name, args: [...]}. Args nil keeps the default argument filter.
type PathSegment struct {
	Field string   `yaml:"field"`
	Args  []string `yaml:"args"`
}

func (p *PathSegment) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err == nil {
		*p = PathSegment{Field: name}
		return nil
	}
	type plain PathSegment
	var seg plain
	if err := unmarshal(&seg); err != nil {
		return errors.New("path segment must be a field name or {field, args}")
	}
	*p = PathSegment(seg)
	return nil
}

const (
	defaultAddr          = ":8080"
	defaultTimeout       = "10s"
	defaultServiceName   = "gqlwrap"
	defaultMaxBodyBytes  = 1 << 20
	defaultSubTimeout    = "5s"
	defaultRetryAttempts = 3
	defaultRetryTimeout  = "5s"
)

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.Timeout == "" {
		cfg.Server.Timeout = defaultTimeout
	}
	if cfg.Server.GraphiQL == nil {
		enabled := true
		cfg.Server.GraphiQL = &enabled
	}
	if cfg.Server.Introspection == nil {
		enabled := true
		cfg.Server.Introspection = &enabled
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Opentelemetry.ServiceName == "" {
		cfg.Opentelemetry.ServiceName = defaultServiceName
	}
	for i := range cfg.Subschemas {
		sub := &cfg.Subschemas[i]
		if sub.Timeout == "" {
			sub.Timeout = defaultSubTimeout
		}
		if sub.Retry.Attempts <= 0 {
			sub.Retry.Attempts = defaultRetryAttempts
		}
		if sub.Retry.Timeout == "" {
			sub.Retry.Timeout = defaultRetryTimeout
		}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("server.timeout: %w", err))
	}
	if len(c.Subschemas) == 0 {
		errs = append(errs, errors.New("at least one subschema is required"))
	}
	names := map[string]bool{}
	for i, sub := range c.Subschemas {
		where := fmt.Sprintf("subschemas[%d]", i)
		if sub.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if names[sub.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", where, sub.Name))
		}
		names[sub.Name] = true
		if sub.Endpoint == "" {
			errs = append(errs, fmt.Errorf("%s: endpoint is required", where))
		}
		if _, err := time.ParseDuration(sub.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("%s.timeout: %w", where, err))
		}
		if _, err := time.ParseDuration(sub.Retry.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("%s.retry.timeout: %w", where, err))
		}
		for j, h := range sub.Hoist {
			hw := fmt.Sprintf("%s.hoist[%d]", where, j)
			if h.Type == "" {
				errs = append(errs, fmt.Errorf("%s: type is required", hw))
			}
			if h.NewField == "" {
				errs = append(errs, fmt.Errorf("%s: new_field is required", hw))
			}
			if len(h.Path) == 0 {
				errs = append(errs, fmt.Errorf("%s: path is required", hw))
			}
		}
	}
	return errors.Join(errs...)
}

// ServerTimeout returns the parsed server timeout.
func (c *Config) ServerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.Timeout)
	return d
}

func (c *Config) resolve(file string) string {
	if filepath.IsAbs(file) || c.dir == "" {
		return file
	}
	return filepath.Join(c.dir, file)
}
