// Package main provides the xbst CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benz9527/xbst/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type rootFlags struct {
	cfgFile       string
	engine        string
	logLevel      string
	logEncoder    string
	metrics       string
	metricsListen string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "xbst",
		Short:         "AVL and red-black search trees with traced rebalancing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default is ./.xbst.yaml, then $HOME/.xbst.yaml)")
	pf.StringVarP(&flags.engine, "engine", "e", config.DefaultEngine, "tree engine: avl, rbtree or both")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	pf.StringVar(&flags.logEncoder, "log-encoder", config.DefaultLogEncoder, "log encoder: json or plaintext")
	pf.StringVar(&flags.metrics, "metrics", config.DefaultMetricsExporter, "metrics exporter: none, stdout or prometheus")
	pf.StringVar(&flags.metricsListen, "metrics-listen", config.DefaultMetricsListen, "prometheus scrape address")

	rootCmd.AddCommand(demoCmd(flags))
	rootCmd.AddCommand(stressCmd(flags))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// load reads the configuration, then lets the flags set on the command
// line override it.
func (f *rootFlags) load(cmd *cobra.Command, override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.cfgFile)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("engine") {
		cfg.Engine = f.engine
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-encoder") {
		cfg.Log.Encoder = f.logEncoder
	}
	if changed("metrics") {
		cfg.Metrics.Exporter = f.metrics
	}
	if changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	if override != nil {
		override(cfg)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}
	return cfg, nil
}

func cmdStreams(cmd *cobra.Command) streams {
	return streams{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
}
