package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ajroetker/libmgen/internal/config"
	"github.com/ajroetker/libmgen/internal/family"
	"github.com/ajroetker/libmgen/internal/generator"
	"github.com/ajroetker/libmgen/internal/hostcpu"
	"github.com/ajroetker/libmgen/internal/logging"
	"github.com/ajroetker/libmgen/internal/workerpool"
)

// newCommand builds the root command. Running it without a subcommand
// generates.
func newCommand(version string) *cli.Command {
	return &cli.Command{
		Name:                   "libmgen",
		Usage:                  "Generate minimax approximations of math functions as Go or C source",
		Version:                version,
		UseShortOptionHandling: true,
		Flags:                  flags(),
		Action:                 generateAction,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Fit every selected family and write the output files",
				Action: generateAction,
			},
			{
				Name:   "check",
				Usage:  "Interpret the generated functions and print their measured error",
				Action: checkAction,
			},
			{
				Name:   "families",
				Usage:  "List the function families and their routines",
				Action: familiesAction,
			},
		},
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML or TOML configuration file",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output path without extension (default libm32)",
		},
		&cli.IntFlag{
			Name:    "bits",
			Aliases: []string{"b"},
			Usage:   "Float width, 32 or 64 (default 32)",
		},
		&cli.StringFlag{
			Name:    "number-type",
			Aliases: []string{"t"},
			Usage:   "f32_hex, f32_simd, f64_hex or f64_simd (default: scalar type of --bits)",
		},
		&cli.StringFlag{
			Name:    "language",
			Aliases: []string{"l"},
			Usage:   "Output language, go or c (default go)",
		},
		&cli.StringFlag{
			Name:  "package",
			Usage: "Go package name of the output (default libm)",
		},
		&cli.StringFlag{
			Name:  "hwy-import",
			Usage: "Import path of the hwy package used by vector output",
		},
		&cli.StringFlag{
			Name:  "c-prefix",
			Usage: "Prefix for C routine names (default mg_)",
		},
		&cli.StringFlag{
			Name:  "trig-strategy",
			Usage: "single_pass or quadrant (default single_pass)",
		},
		&cli.StringSliceFlag{
			Name:    "families",
			Aliases: []string{"f"},
			Usage:   "Families to generate (default all)",
		},
		&cli.IntFlag{
			Name:  "samples",
			Usage: "Sample count of generated tests (default 1000)",
		},
		&cli.IntFlag{
			Name:  "digits",
			Usage: "Decimal working precision of fits (default: derived from --bits)",
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "Worker count (default GOMAXPROCS)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (default info)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "console or json (default: console on a terminal)",
		},
	}
}

// loadConfig layers the flags that were set over the file and
// environment configuration.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	str := map[string]*string{
		"output":        &cfg.Output,
		"number-type":   &cfg.NumberType,
		"language":      &cfg.Language,
		"package":       &cfg.Package,
		"hwy-import":    &cfg.HwyImport,
		"c-prefix":      &cfg.CPrefix,
		"trig-strategy": &cfg.TrigStrategy,
		"log-level":     &cfg.LogLevel,
		"log-format":    &cfg.LogFormat,
	}
	for name, p := range str {
		if cmd.IsSet(name) {
			*p = cmd.String(name)
		}
	}
	ints := map[string]*int{
		"bits":    &cfg.Bits,
		"samples": &cfg.Samples,
		"digits":  &cfg.Digits,
		"jobs":    &cfg.Jobs,
	}
	for name, p := range ints {
		if cmd.IsSet(name) {
			*p = int(cmd.Int(name))
		}
	}
	if cmd.IsSet("families") {
		cfg.Families = cmd.StringSlice("families")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is the state shared by generate and check.
type session struct {
	cfg  *config.Config
	log  *logging.Logger
	gen  *generator.Generator
	runs []generator.Config
}

func newSession(cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	runs, err := generator.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	cpu := hostcpu.Detect()
	pool := workerpool.New(cfg.Jobs)
	log.Info("libmgen starting",
		zap.String("version", cmd.Root().Version),
		zap.String("cpu", cpu.String()),
		zap.String("simd", cpu.Level()),
		zap.Int("workers", pool.NumWorkers()),
		zap.Int("targets", len(runs)))
	return &session{
		cfg:  cfg,
		log:  log,
		gen:  &generator.Generator{Logger: log.Named("generator"), Pool: pool},
		runs: runs,
	}, nil
}

func (s *session) close() {
	s.gen.Pool.Close()
	_ = s.log.Sync()
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	paths, err := s.gen.Run(ctx, s.runs)
	if err != nil {
		s.log.Error("generation failed", zap.Error(err))
		return err
	}
	s.log.Info("done", zap.Strings("files", paths))
	return nil
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPUT\tTEST\tMAX ULP\tLIMIT\tMEAN\tWORST AT\tSAMPLES\tRESULT")
	failed := 0
	for _, run := range s.runs {
		reports, err := s.gen.Check(ctx, run)
		if err != nil {
			s.log.Error("check failed", zap.String("output", run.Output), zap.Error(err))
			return err
		}
		for _, r := range reports {
			result := "ok"
			if !r.Pass {
				result = "FAIL"
				failed++
			}
			fmt.Fprintf(w, "%s\t%s\t%.3g\t%d\t%.3g\t%g\t%d\t%s\n",
				run.Output, r.Test, r.Stats.Max, r.MaxULPs, r.Stats.Mean, r.Stats.Worst, r.Stats.Samples, result)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d tests exceed their tolerance", failed)
	}
	return nil
}

func familiesAction(_ context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	for _, f := range family.All() {
		line := fmt.Sprintf("%s: %s", f.Name(), strings.Join(f.Functions(), " "))
		if req := f.Requires(); len(req) > 0 {
			line += fmt.Sprintf(" (requires %s)", strings.Join(req, ", "))
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
