package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/observability"
	"github.com/benz9527/xbst/xlog"
)

// Config is the top-level configuration of xbst.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Engine  string        `mapstructure:"engine"`
	Demo    DemoConfig    `mapstructure:"demo"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Stress  StressConfig  `mapstructure:"stress"`
	Render  RenderConfig  `mapstructure:"render"`
}

// DemoConfig holds the key sequences replayed by `xbst demo`.
type DemoConfig struct {
	Insert []int `mapstructure:"insert"`
	Search []int `mapstructure:"search"`
	Delete []int `mapstructure:"delete"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Encoder string `mapstructure:"encoder"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter"`
	Listen   string        `mapstructure:"listen"`
	Interval time.Duration `mapstructure:"interval"`
}

// StressConfig sizes the randomized trials. Zero workers means one worker
// per GOMAXPROCS. Zero seed means a seed derived from the clock.
type StressConfig struct {
	Trials  int    `mapstructure:"trials"`
	Keys    int    `mapstructure:"keys"`
	Workers int    `mapstructure:"workers"`
	Seed    uint64 `mapstructure:"seed"`
}

type RenderConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

const (
	EngineAVL    = "avl"
	EngineRBTree = "rbtree"
	EngineBoth   = "both"

	RenderTree  = "tree"
	RenderTable = "table"
)

const (
	DefaultEngine          = EngineBoth
	DefaultLogLevel        = "INFO"
	DefaultLogEncoder      = "plaintext"
	DefaultMetricsExporter = "none"
	DefaultMetricsListen   = ":9464"
	DefaultMetricsInterval = 10 * time.Second
	DefaultStressTrials    = 32
	DefaultStressKeys      = 512
	DefaultStressWorkers   = 0
	DefaultStressSeed      = 0
	DefaultRenderFormat    = RenderTree
	DefaultRenderColor     = true
)

var (
	DefaultDemoInsert = []int{60, 40, 30, 10, 50, 20}
	DefaultDemoSearch = []int{30, 55}
	DefaultDemoDelete = []int{20, 40, 60, 30, 50, 10}
)

var (
	ErrInvalidEngine          = errors.New("engine must be one of avl, rbtree, both")
	ErrInvalidLogEncoder      = errors.New("log.encoder must be json or plaintext")
	ErrInvalidMetricsExporter = errors.New("metrics.exporter must be one of none, stdout, prometheus")
	ErrInvalidMetricsInterval = errors.New("metrics.interval must be positive")
	ErrInvalidMetricsListen   = errors.New("metrics.listen must not be empty for the prometheus exporter")
	ErrInvalidStressTrials    = errors.New("stress.trials must be positive")
	ErrInvalidStressKeys      = errors.New("stress.keys must be positive")
	ErrInvalidStressWorkers   = errors.New("stress.workers must be non-negative")
	ErrInvalidRenderFormat    = errors.New("render.format must be tree or table")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if _, err := c.Engines(); err != nil {
		return err
	}
	if _, ok := xlog.ParseLogEncoder(c.Log.Encoder); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogEncoder, c.Log.Encoder)
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateStress(); err != nil {
		return err
	}
	switch strings.ToLower(c.Render.Format) {
	case RenderTree, RenderTable:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRenderFormat, c.Render.Format)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	kind, err := observability.ParseExporterKind(c.Metrics.Exporter)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
	}
	switch kind {
	case observability.ExporterStdout:
		if c.Metrics.Interval <= 0 {
			return ErrInvalidMetricsInterval
		}
	case observability.ExporterPrometheus:
		if len(strings.TrimSpace(c.Metrics.Listen)) == 0 {
			return ErrInvalidMetricsListen
		}
	default:
	}
	return nil
}

func (c *Config) validateStress() error {
	if c.Stress.Trials <= 0 {
		return ErrInvalidStressTrials
	}
	if c.Stress.Keys <= 0 {
		return ErrInvalidStressKeys
	}
	if c.Stress.Workers < 0 {
		return ErrInvalidStressWorkers
	}
	return nil
}

// Engines expands the engine selector into the trees to run, AVL first.
func (c *Config) Engines() ([]tree.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(c.Engine)) {
	case EngineAVL:
		return []tree.Engine{tree.AVL}, nil
	case EngineRBTree, "rb", "redblack":
		return []tree.Engine{tree.RedBlack}, nil
	case EngineBoth, "":
		return []tree.Engine{tree.AVL, tree.RedBlack}, nil
	default:
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidEngine, c.Engine)
}
