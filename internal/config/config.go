// Package config holds the generator configuration and loads it from
// defaults, an optional YAML or TOML file and LIBMGEN_* environment
// variables. Command-line flags are applied last by the driver.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/ajroetker/libmgen/internal/emit"
	"github.com/ajroetker/libmgen/internal/family"
	"github.com/ajroetker/libmgen/internal/quantize"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "LIBMGEN"

// ErrFormat reports a configuration file with an unknown extension.
var ErrFormat = errors.New("config: unknown file format")

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all generator configuration.
type Config struct {
	// Output is the output path without extension.
	Output string `yaml:"output" toml:"output" envconfig:"OUTPUT"`
	// Bits is the float width, 32 or 64.
	Bits int `yaml:"bits" toml:"bits" envconfig:"BITS"`
	// NumberType is f32_hex, f32_simd, f64_hex or f64_simd. Empty
	// selects the scalar type of Bits.
	NumberType string `yaml:"number_type" toml:"number_type" envconfig:"NUMBER_TYPE"`
	// Language is go (native) or c.
	Language string `yaml:"language" toml:"language" envconfig:"LANGUAGE"`

	Package   string `yaml:"package" toml:"package" envconfig:"PACKAGE"`
	HwyImport string `yaml:"hwy_import" toml:"hwy_import" envconfig:"HWY_IMPORT"`
	CPrefix   string `yaml:"c_prefix" toml:"c_prefix" envconfig:"C_PREFIX"`

	TrigStrategy string   `yaml:"trig_strategy" toml:"trig_strategy" envconfig:"TRIG_STRATEGY"`
	Samples      int      `yaml:"samples" toml:"samples" envconfig:"SAMPLES"`
	Digits       int      `yaml:"digits" toml:"digits" envconfig:"DIGITS"`
	Families     []string `yaml:"families" toml:"families" envconfig:"FAMILIES"`
	// Jobs bounds the worker pool; 0 uses GOMAXPROCS.
	Jobs int `yaml:"jobs" toml:"jobs" envconfig:"JOBS"`

	LogLevel string `yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	// LogFormat is console, json, or empty to pick by terminal.
	LogFormat string `yaml:"log_format" toml:"log_format" envconfig:"LOG_FORMAT"`

	// Targets lists several outputs for one invocation. Empty fields
	// inherit the top-level values.
	Targets []Target `yaml:"targets" toml:"targets" ignored:"true"`
}

// Target is one output of an invocation.
type Target struct {
	Output     string `yaml:"output" toml:"output"`
	Bits       int    `yaml:"bits" toml:"bits"`
	NumberType string `yaml:"number_type" toml:"number_type"`
	Language   string `yaml:"language" toml:"language"`
	Package    string `yaml:"package" toml:"package"`
	CPrefix    string `yaml:"c_prefix" toml:"c_prefix"`
}

// Default returns the default configuration: 32-bit scalar Go output.
func Default() *Config {
	return &Config{
		Output:       "libm32",
		Bits:         32,
		Language:     "go",
		Package:      "libm",
		HwyImport:    emit.DefaultHwyImport,
		CPrefix:      emit.DefaultCPrefix,
		TrigStrategy: family.SinglePass.String(),
		Samples:      1000,
		LogLevel:     "info",
	}
}

// Load applies the file at path, if any, and then the environment on
// top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML or TOML file at path, chosen by extension.
// Keys absent from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays the LIBMGEN_* environment variables that are set.
func (c *Config) LoadEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Runs returns the outputs of the invocation with inherited fields
// filled in.
func (c *Config) Runs() []Target {
	top := Target{
		Output:     c.Output,
		Bits:       c.Bits,
		NumberType: c.NumberType,
		Language:   c.Language,
		Package:    c.Package,
		CPrefix:    c.CPrefix,
	}
	if len(c.Targets) == 0 {
		return []Target{top.withNumberType()}
	}
	out := make([]Target, len(c.Targets))
	for i, t := range c.Targets {
		if t.Bits == 0 {
			t.Bits = top.Bits
			if t.NumberType == "" {
				t.NumberType = top.NumberType
			}
		}
		if t.Output == "" {
			t.Output = fmt.Sprintf("%s_%d", top.Output, i)
		}
		if t.Language == "" {
			t.Language = top.Language
		}
		if t.Package == "" {
			t.Package = top.Package
		}
		if t.CPrefix == "" {
			t.CPrefix = top.CPrefix
		}
		out[i] = t.withNumberType()
	}
	return out
}

func (t Target) withNumberType() Target {
	if t.NumberType == "" {
		t.NumberType = fmt.Sprintf("f%d_hex", t.Bits)
	}
	return t
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	seen := map[string]bool{}
	for _, t := range c.Runs() {
		if t.Output == "" {
			bad("empty output path")
		}
		if seen[t.Output] {
			bad("output %q used twice", t.Output)
		}
		seen[t.Output] = true
		if t.Bits != 32 && t.Bits != 64 {
			bad("%s: bits must be 32 or 64, got %d", t.Output, t.Bits)
		}
		nt, err := quantize.ParseNumberType(t.NumberType)
		if err != nil {
			bad("%s: %v", t.Output, err)
		} else if nt.Bits() != t.Bits {
			bad("%s: number type %s is not %d-bit", t.Output, nt, t.Bits)
		}
		if _, err := emit.ParseLanguage(t.Language); err != nil {
			bad("%s: %v", t.Output, err)
		}
	}
	if _, err := family.ParseStrategy(c.TrigStrategy); err != nil {
		bad("%v", err)
	}
	for _, name := range c.Families {
		if _, err := family.Lookup(name); err != nil {
			bad("%v", err)
		}
	}
	if c.Samples <= 0 {
		bad("samples must be positive, got %d", c.Samples)
	}
	if c.Digits < 0 {
		bad("digits must not be negative, got %d", c.Digits)
	}
	if c.Jobs < 0 {
		bad("jobs must not be negative, got %d", c.Jobs)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		bad("log format must be console or json, got %q", c.LogFormat)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
