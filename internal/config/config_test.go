package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "libm32", cfg.Output)
	assert.Equal(t, 32, cfg.Bits)
	assert.Equal(t, "go", cfg.Language)
	assert.Equal(t, "libm", cfg.Package)
	assert.Equal(t, "mg_", cfg.CPrefix)
	assert.Equal(t, "single_pass", cfg.TrigStrategy)
	assert.Equal(t, 1000, cfg.Samples)
	assert.Empty(t, cfg.Families)
	require.NoError(t, cfg.Validate())

	runs := cfg.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "f32_hex", runs[0].NumberType)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "libmgen.yaml", `
output: out/libm64
bits: 64
language: c
c_prefix: mg_
families: [trig, log_exp]
samples: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "out/libm64", cfg.Output)
	assert.Equal(t, 64, cfg.Bits)
	assert.Equal(t, "c", cfg.Language)
	assert.Equal(t, "mg_", cfg.CPrefix)
	assert.Equal(t, []string{"trig", "log_exp"}, cfg.Families)
	assert.Equal(t, 50, cfg.Samples)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "libm", cfg.Package)
	assert.Equal(t, "f64_hex", cfg.Runs()[0].NumberType)
	require.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "libmgen.toml", `
trig_strategy = "quadrant"

[[targets]]
output = "libm32"

[[targets]]
output = "libm64_simd"
bits = 64
number_type = "f64_simd"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quadrant", cfg.TrigStrategy)

	runs := cfg.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, Target{Output: "libm32", Bits: 32, NumberType: "f32_hex", Language: "go", Package: "libm"}, runs[0])
	assert.Equal(t, "f64_simd", runs[1].NumberType)
	assert.Equal(t, "go", runs[1].Language)
	require.NoError(t, cfg.Validate())
}

func TestLoadUnknownFormat(t *testing.T) {
	path := writeFile(t, "libmgen.json", `{}`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	path := writeFile(t, "libmgen.yaml", "bits: 64\nlanguage: c\nsamples: 20\n")
	t.Setenv("LIBMGEN_LANGUAGE", "go")
	t.Setenv("LIBMGEN_FAMILIES", "trig,aux")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Bits, "file over default")
	assert.Equal(t, "go", cfg.Language, "env over file")
	assert.Equal(t, 20, cfg.Samples, "file value kept when env is unset")
	assert.Equal(t, []string{"trig", "aux"}, cfg.Families)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bits", func(c *Config) { c.Bits = 48 }, "bits must be 32 or 64"},
		{"width mismatch", func(c *Config) { c.NumberType = "f64_hex" }, "is not 32-bit"},
		{"number type", func(c *Config) { c.NumberType = "f16_hex" }, "unknown number type"},
		{"language", func(c *Config) { c.Language = "rust" }, "unsupported language"},
		{"strategy", func(c *Config) { c.TrigStrategy = "octant" }, "octant"},
		{"family", func(c *Config) { c.Families = []string{"gamma"} }, "gamma"},
		{"samples", func(c *Config) { c.Samples = 0 }, "samples must be positive"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"duplicate output", func(c *Config) {
			c.Targets = []Target{{Output: "a"}, {Output: "a", Bits: 64}}
		}, `output "a" used twice`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Bits = 16
	cfg.Language = "rust"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bits must be 32 or 64")
	assert.Contains(t, err.Error(), "unsupported language")
}
