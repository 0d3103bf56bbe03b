package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xbst/internal/config"
	"github.com/benz9527/xbst/internal/render"
	"github.com/benz9527/xbst/observability"
	"github.com/benz9527/xbst/xlog"
)

const lifecycleTimeout = 10 * time.Second

// deps is what a command job receives once the fx graph has started.
type deps struct {
	fx.In

	Config   *config.Config
	Logger   xlog.XLogger
	Exporter *observability.MetricsExporter
	Stats    *observability.TreeStats[int]
	Printer  *render.Printer
}

type job func(ctx context.Context, d deps) error

func newLogger(cfg *config.Config, w io.Writer) xlog.XLogger {
	opts := []xlog.XLoggerOption{
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.Log.Level)),
		xlog.WithXLoggerContextFieldExtract("trial", xlog.ContextKeyMapToOmitempty),
		xlog.WithXLoggerContextFieldExtract("engine", xlog.ContextKeyMapToOmitempty),
		xlog.WithXLoggerContextFieldExtract("seed", xlog.ContextKeyMapToOmitempty),
	}
	if enc, ok := xlog.ParseLogEncoder(cfg.Log.Encoder); ok {
		opts = append(opts, xlog.WithXLoggerEncoder(enc))
	}
	if w != nil {
		opts = append(opts, xlog.WithXLoggerWriter(w))
	}
	return xlog.NewXLogger(opts...)
}

func newMetricsExporter(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger, errOut io.Writer) (*observability.MetricsExporter, error) {
	kind, err := observability.ParseExporterKind(cfg.Metrics.Exporter)
	if err != nil {
		return nil, err
	}
	exp, err := observability.NewMetricsExporter(kind,
		observability.WithExporterInterval(cfg.Metrics.Interval),
		observability.WithExporterWriter(errOut),
	)
	if err != nil {
		return nil, err
	}

	var srv *http.Server
	if h := exp.Handler(); h != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		srv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if srv == nil {
				return nil
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "metrics server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var err error
			if srv != nil {
				err = srv.Shutdown(ctx)
			}
			return multierr.Append(err, exp.Shutdown(ctx))
		},
	})
	return exp, nil
}

func newTreeStats(exp *observability.MetricsExporter) *observability.TreeStats[int] {
	return observability.NewTreeStats[int](exp.MeterProvider(), "cli")
}

func newPrinter(cfg *config.Config, out io.Writer) *render.Printer {
	return render.NewPrinter(out,
		render.WithFormat(cfg.Render.Format),
		render.WithColor(cfg.Render.Color),
	)
}

// streams keeps the command output apart from the diagnostics.
type streams struct {
	out    io.Writer
	errOut io.Writer
}

// runApp builds the fx graph, starts it, runs fn and stops it again. The
// error of fn and the stop hooks are combined.
func runApp(ctx context.Context, cfg *config.Config, s streams, fn job) error {
	logger := newLogger(cfg, s.errOut)
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.DebugLevel, format, args...)
	}))
	defer undo()
	if err != nil {
		logger.Warn("unable to set GOMAXPROCS", zap.Error(err))
	}

	var d deps
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Supply(cfg),
		fx.Provide(
			func() xlog.XLogger { return logger },
			fx.Annotate(func() io.Writer { return s.out }, fx.ResultTags(`name:"out"`)),
			fx.Annotate(func() io.Writer { return s.errOut }, fx.ResultTags(`name:"errOut"`)),
			fx.Annotate(newMetricsExporter, fx.ParamTags(``, ``, ``, `name:"errOut"`)),
			newTreeStats,
			fx.Annotate(newPrinter, fx.ParamTags(``, `name:"out"`)),
		),
		fx.Invoke(func(in deps) {
			d = in
		}),
	)
	if err = app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()
	if err = app.Start(startCtx); err != nil {
		return err
	}

	err = fn(ctx, d)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancelStop()
	err = multierr.Append(err, app.Stop(stopCtx))
	// Sync reports EINVAL for terminals.
	_ = logger.Sync()
	return err
}
