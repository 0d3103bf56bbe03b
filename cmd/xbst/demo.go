package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/benz9527/xbst/internal/config"
	"github.com/benz9527/xbst/internal/render"
	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/observability"
)

func demoCmd(flags *rootFlags) *cobra.Command {
	var (
		format  string
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Insert, search and delete a fixed key sequence, printing the tree after each step",
		Long: `demo replays demo.insert, demo.search and demo.delete from the configuration
(60 40 30 10 50 20, then 30 55, then 20 40 60 30 50 10 by default). The tree is
printed sideways with the greatest key on top. Rotations and recolorings are
logged at DEBUG level.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd, func(cfg *config.Config) {
				if cmd.Flags().Changed("format") {
					cfg.Render.Format = format
				}
				if noColor {
					cfg.Render.Color = false
				}
			})
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg, cmdStreams(cmd), runDemo)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", config.DefaultRenderFormat, "output format: tree or table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func runDemo(_ context.Context, d deps) error {
	engines, err := d.Config.Engines()
	if err != nil {
		return err
	}
	opts := []tree.TreeOption[int]{
		tree.WithObserver[int](d.Stats, observability.NewTraceObserver[int](d.Logger)),
	}
	var merr error
	for _, engine := range engines {
		switch engine {
		case tree.AVL:
			merr = multierr.Append(merr, replay(d, tree.NewAVLTree[int](opts...), render.AVL[int]))
		case tree.RedBlack:
			merr = multierr.Append(merr, replay(d, tree.NewRBTree[int](opts...), render.RB[int]))
		default:
		}
	}
	return merr
}

func replay[T tree.BalancedTree[int]](d deps, t T, show func(*render.Printer, T) error) error {
	defer t.Release()
	p := d.Printer
	step := func(format string, args ...any) error {
		return p.Println(fmt.Sprintf(format, args...))
	}

	if err := step("== %s ==", t.Engine()); err != nil {
		return err
	}
	for _, key := range d.Config.Demo.Insert {
		if err := step("# insert %d: %s", key, strings.ToLower(t.Insert(key).String())); err != nil {
			return err
		}
		if err := show(p, t); err != nil {
			return err
		}
	}
	for _, key := range d.Config.Demo.Search {
		found := "not found"
		if t.Contains(key) {
			found = "found"
		}
		if err := step("# search %d: %s", key, found); err != nil {
			return err
		}
	}
	for _, key := range d.Config.Demo.Delete {
		if err := step("# delete %d: %s", key, strings.ToLower(t.Delete(key).String())); err != nil {
			return err
		}
		if err := show(p, t); err != nil {
			return err
		}
	}
	return nil
}
