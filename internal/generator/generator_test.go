package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/libmgen/internal/config"
	"github.com/ajroetker/libmgen/internal/emit"
	"github.com/ajroetker/libmgen/internal/family"
	"github.com/ajroetker/libmgen/internal/quantize"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

func recipConfig(out string, lang emit.Language) Config {
	return Config{
		Output:   out,
		Type:     quantize.F32,
		Language: lang,
		Families: []string{"recip_sqrt"},
		Samples:  10,
	}
}

func TestGenerateGo(t *testing.T) {
	out, err := Generate(context.Background(), recipConfig("libm32", emit.Go))
	require.NoError(t, err)

	require.Len(t, out.Files, 2)
	assert.Equal(t, []string{"libm32.go", "libm32_test.go"}, out.Paths())
	assert.Contains(t, out.Files[0].Content, "func Sqrt(a float32) float32")
	assert.Contains(t, out.Files[1].Content, "func TestSqrt(t *testing.T)")
	// Three functions followed by three tests.
	assert.Len(t, out.Items, 6)
}

func TestGenerateC(t *testing.T) {
	cfg := recipConfig("libm32", emit.C)
	cfg.Emit.Prefix = "mg_"
	out, err := Generate(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, out.Files, 1)
	assert.Equal(t, []string{"libm32.c"}, out.Paths())
	assert.True(t, strings.HasPrefix(out.Files[0].Content, emit.CPreamble))
	assert.Contains(t, out.Files[0].Content, "f32 mg_cbrt(f32 a)")
}

func TestGenerateRequiredFamilies(t *testing.T) {
	cfg := recipConfig("libm32", emit.Go)
	cfg.Families = []string{"aux"}
	out, err := Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out.Files[0].Content, "func Exp(")
	assert.Contains(t, out.Files[0].Content, "func Pow(")
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"language", func(c *Config) { c.Language = emit.Language(9) }, emit.ErrUnsupportedLanguage},
		{"c vector", func(c *Config) {
			c.Language = emit.C
			c.Type = quantize.F32Vec
		}, emit.ErrUnsupported},
		{"family", func(c *Config) { c.Families = []string{"gamma"} }, family.ErrUnknownFamily},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := recipConfig("libm32", emit.Go)
			tt.modify(&cfg)
			_, err := Generate(context.Background(), cfg)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, recipConfig("libm32", emit.Go))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	pool := workerpool.New(2)
	defer pool.Close()
	g := &Generator{Pool: pool}

	c := recipConfig(filepath.Join(dir, "c", "libm32"), emit.C)
	c.Emit.Prefix = emit.DefaultCPrefix
	goCfg := recipConfig(filepath.Join(dir, "libm32"), emit.Go)
	paths, err := g.Run(context.Background(), []Config{goCfg, c})
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "libm32.go"),
		filepath.Join(dir, "libm32_test.go"),
		filepath.Join(dir, "c", "libm32.c"),
	}
	assert.Equal(t, want, paths)
	for _, p := range want {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestRunWritesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	good := recipConfig(filepath.Join(dir, "good"), emit.Go)
	bad := recipConfig(filepath.Join(dir, "bad"), emit.C)
	bad.Type = quantize.F32Vec

	_, err := (&Generator{}).Run(context.Background(), []Config{good, bad})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheck(t *testing.T) {
	reports, err := (&Generator{}).Check(context.Background(), recipConfig("libm32", emit.Go))
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Pass, "%s: %s", r.Func, r.Stats)
	}
	assert.Equal(t, "sqrt", reports[0].Func)
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.TrigStrategy = "quadrant"
	c.Families = []string{"trig"}
	c.Targets = []config.Target{
		{Output: "a"},
		{Output: "b", Bits: 64, NumberType: "f64_simd", Language: "go", Package: "vec"},
		{Output: "c", Language: "c", CPrefix: "mg_"},
	}

	cfgs, err := FromConfig(c)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	assert.Equal(t, quantize.F32, cfgs[0].Type)
	assert.Equal(t, emit.Go, cfgs[0].Language)
	assert.Equal(t, family.Quadrant, cfgs[0].TrigStrategy)
	assert.Equal(t, "libm", cfgs[0].Emit.Package)
	assert.Equal(t, emit.DefaultCPrefix, cfgs[0].Emit.Prefix)

	assert.Equal(t, quantize.F64Vec, cfgs[1].Type)
	assert.Equal(t, "vec", cfgs[1].Emit.Package)
	assert.Equal(t, emit.DefaultHwyImport, cfgs[1].Emit.HwyImport)

	assert.Equal(t, emit.C, cfgs[2].Language)
	assert.Equal(t, "mg_", cfgs[2].Emit.Prefix)
	assert.Equal(t, []string{"trig"}, cfgs[2].Families)
	assert.Equal(t, 1000, cfgs[2].Samples)
}

func TestFromConfigInvalid(t *testing.T) {
	c := config.Default()
	c.Language = "rust"
	_, err := FromConfig(c)
	assert.ErrorIs(t, err, emit.ErrUnsupportedLanguage)
}
