package main

import (
	"context"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xbst/internal/config"
	"github.com/benz9527/xbst/internal/render"
	"github.com/benz9527/xbst/internal/stress"
	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/observability"
)

func stressCmd(flags *rootFlags) *cobra.Command {
	var (
		trials  int
		keys    int
		workers int
		seed    uint64
	)
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run randomized insert and delete trials, validating the tree after every operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd, func(cfg *config.Config) {
				changed := cmd.Flags().Changed
				if changed("trials") {
					cfg.Stress.Trials = trials
				}
				if changed("keys") {
					cfg.Stress.Keys = keys
				}
				if changed("workers") {
					cfg.Stress.Workers = workers
				}
				if changed("seed") {
					cfg.Stress.Seed = seed
				}
			})
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg, cmdStreams(cmd), runStress)
		},
	}
	cmd.Flags().IntVar(&trials, "trials", config.DefaultStressTrials, "trials per engine")
	cmd.Flags().IntVar(&keys, "keys", config.DefaultStressKeys, "keys inserted per trial")
	cmd.Flags().IntVar(&workers, "workers", config.DefaultStressWorkers, "worker pool size, 0 means GOMAXPROCS")
	cmd.Flags().Uint64Var(&seed, "seed", config.DefaultStressSeed, "base seed, 0 picks one from the clock")
	return cmd
}

func runStress(ctx context.Context, d deps) error {
	if err := observability.StartAppStats(d.Exporter.MeterProvider(), "stress"); err != nil {
		return err
	}
	engines, err := d.Config.Engines()
	if err != nil {
		return err
	}
	r, err := stress.NewRunner(
		stress.WithWorkers(d.Config.Stress.Workers),
		stress.WithTrials(d.Config.Stress.Trials),
		stress.WithKeys(d.Config.Stress.Keys),
		stress.WithSeed(d.Config.Stress.Seed),
		stress.WithEngines(engines...),
		stress.WithLogger(d.Logger),
		stress.WithObserver(d.Stats),
	)
	if err != nil {
		return err
	}
	defer r.Release()

	d.Logger.Info("stress started",
		zap.Uint64("seed", r.Seed()),
		zap.Int("trials", d.Config.Stress.Trials),
		zap.Int("keys", d.Config.Stress.Keys),
		zap.Strings("engines", lo.Map(engines, func(e tree.Engine, _ int) string {
			return e.String()
		})),
	)
	report, err := r.Run(ctx)
	err = multierr.Append(err, render.StressReport(d.Printer, report))
	d.Logger.Info("stress finished",
		zap.Int("ops", report.Ops),
		zap.Int("failed", report.Failed),
		zap.Bool("canceled", report.Canceled),
		zap.Duration("elapsed", report.Elapsed),
	)
	return err
}
