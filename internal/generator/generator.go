// Package generator runs the generation pipeline for one or more output
// configurations: resolve families, fit and assemble their functions,
// render the items with the selected backend and, in Run, write the
// files.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/libmgen/internal/config"
	"github.com/ajroetker/libmgen/internal/emit"
	"github.com/ajroetker/libmgen/internal/family"
	"github.com/ajroetker/libmgen/internal/ir"
	"github.com/ajroetker/libmgen/internal/logging"
	"github.com/ajroetker/libmgen/internal/oracle"
	"github.com/ajroetker/libmgen/internal/quantize"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

// Config is one output configuration.
type Config struct {
	// Output is the output path without extension.
	Output   string
	Type     quantize.NumberType
	Language emit.Language
	Emit     emit.Options

	// Families to generate; empty selects all. Required families are
	// added.
	Families     []string
	TrigStrategy family.Strategy
	Samples      int
	Digits       int
	Terms        family.TermTable
}

// FromConfig resolves the targets of a validated configuration.
func FromConfig(c *config.Config) ([]Config, error) {
	strategy, err := family.ParseStrategy(c.TrigStrategy)
	if err != nil {
		return nil, err
	}
	var out []Config
	for _, t := range c.Runs() {
		nt, err := quantize.ParseNumberType(t.NumberType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Output, err)
		}
		lang, err := emit.ParseLanguage(t.Language)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Output, err)
		}
		out = append(out, Config{
			Output:   t.Output,
			Type:     nt,
			Language: lang,
			Emit: emit.Options{
				Package:   t.Package,
				HwyImport: c.HwyImport,
				Prefix:    t.CPrefix,
			},
			Families:     c.Families,
			TrigStrategy: strategy,
			Samples:      c.Samples,
			Digits:       c.Digits,
		})
	}
	return out, nil
}

// Output is the result of one configuration.
type Output struct {
	Config Config
	Items  []ir.Item
	Files  []emit.File
}

// Paths returns the file paths Run writes for o.
func (o *Output) Paths() []string {
	return lo.Map(o.Files, func(f emit.File, _ int) string { return o.Config.Output + f.Suffix })
}

// Generator carries the shared resources of an invocation. The zero
// value generates sequentially without logging.
type Generator struct {
	Logger *logging.Logger
	Pool   *workerpool.Pool
}

// Generate runs one configuration with a zero Generator.
func Generate(ctx context.Context, cfg Config) (*Output, error) {
	return (&Generator{}).Generate(ctx, cfg)
}

func (g *Generator) logger() *logging.Logger {
	if g.Logger == nil {
		return logging.NewNop()
	}
	return g.Logger
}

// Generate fits, assembles and renders one configuration. It performs no
// file I/O.
func (g *Generator) Generate(ctx context.Context, cfg Config) (*Output, error) {
	backend, err := emit.New(cfg.Language, cfg.Emit)
	if err != nil {
		return nil, err
	}
	if cfg.Language == emit.C && cfg.Type.IsVector() {
		return nil, &emit.UnsupportedError{Lang: emit.C, Item: cfg.Output, What: "vector type " + cfg.Type.String()}
	}
	log := g.logger().WithRun(logging.NewRunID()).With(
		zap.Int("bits", cfg.Type.Bits()),
		zap.String("lang", cfg.Language.String()),
		zap.String("type", cfg.Type.String()),
	)

	items, err := g.items(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	files, err := backend.Files(items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Output, err)
	}
	log.Info("rendered", zap.String("output", cfg.Output), zap.Int("items", len(items)))
	return &Output{Config: cfg, Items: items, Files: files}, nil
}

// items generates every family of cfg: all functions in family order,
// then all tests in the same order.
func (g *Generator) items(ctx context.Context, cfg Config, log *zap.Logger) ([]ir.Item, error) {
	fams, err := family.Resolve(cfg.Families)
	if err != nil {
		return nil, err
	}
	opts := family.Options{
		Type:         cfg.Type,
		Digits:       cfg.Digits,
		Terms:        cfg.Terms,
		TrigStrategy: cfg.TrigStrategy,
		Samples:      cfg.Samples,
		Pool:         g.Pool,
	}
	all := &family.Output{}
	for _, f := range fams {
		start := time.Now()
		out, err := f.Generate(ctx, opts)
		if err != nil {
			log.Debug("family failed", zap.String("family", f.Name()), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", cfg.Output, err)
		}
		log.Debug("family generated",
			zap.String("family", f.Name()),
			zap.Int("functions", len(out.Functions)),
			zap.Duration("elapsed", time.Since(start)))
		all.Functions = append(all.Functions, out.Functions...)
		all.Tests = append(all.Tests, out.Tests...)
	}
	return all.Items(), nil
}

// GenerateAll runs the configurations concurrently. The first failure
// cancels the others and no outputs are returned.
func (g *Generator) GenerateAll(ctx context.Context, cfgs []Config) ([]*Output, error) {
	outs := make([]*Output, len(cfgs))
	eg, ctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		eg.Go(func() error {
			out, err := g.Generate(ctx, cfg)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// Run generates every configuration and then writes the files. Nothing
// is written unless all configurations succeed.
func (g *Generator) Run(ctx context.Context, cfgs []Config) ([]string, error) {
	outs, err := g.GenerateAll(ctx, cfgs)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, out := range outs {
		for i, f := range out.Files {
			path := out.Paths()[i]
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return written, fmt.Errorf("create output directory: %w", err)
				}
			}
			if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
				return written, fmt.Errorf("write output: %w", err)
			}
			g.logger().Info("wrote", zap.String("path", path), zap.Int("bytes", len(f.Content)))
			written = append(written, path)
		}
	}
	return written, nil
}

// Report is the measured error of one generated test.
type Report struct {
	Test    string
	Func    string
	MaxULPs int
	Stats   oracle.Stats
	Pass    bool
}

// Check generates the items of cfg and interprets every test case
// in-process instead of rendering.
func (g *Generator) Check(ctx context.Context, cfg Config) ([]Report, error) {
	log := g.logger().WithRun(logging.NewRunID()).With(zap.Int("bits", cfg.Type.Bits()))
	items, err := g.items(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if _, err := ir.CheckAll(items); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Output, err)
	}
	fns := ir.Functions(items)
	var reports []Report
	for _, tc := range ir.Tests(items) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := oracle.Measure(g.Pool, tc, fns)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tc.Name, err)
		}
		reports = append(reports, Report{Test: tc.Name, Func: tc.Func, MaxULPs: tc.MaxULPs, Stats: s, Pass: s.Pass(tc)})
	}
	return reports, nil
}
