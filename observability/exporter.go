package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/benz9527/xbst/lib/infra"
)

type ExporterKind string

const (
	ExporterNone       ExporterKind = "none"
	ExporterStdout     ExporterKind = "stdout"
	ExporterPrometheus ExporterKind = "prometheus"
)

func ParseExporterKind(kind string) (ExporterKind, error) {
	switch k := ExporterKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case ExporterNone, ExporterStdout, ExporterPrometheus:
		return k, nil
	case "":
		return ExporterNone, nil
	default:
	}
	return "", infra.NewErrorStack("[metrics] unknown exporter " + kind)
}

// MetricsExporter owns a meter provider and, for prometheus, the scrape
// handler bound to a private registry.
type MetricsExporter struct {
	kind     ExporterKind
	provider otelmetric.MeterProvider
	handler  http.Handler
	shutdown func(ctx context.Context) error
}

func (e *MetricsExporter) Kind() ExporterKind {
	return e.kind
}

func (e *MetricsExporter) MeterProvider() otelmetric.MeterProvider {
	return e.provider
}

// Handler serves /metrics. It is nil unless the exporter is prometheus.
func (e *MetricsExporter) Handler() http.Handler {
	return e.handler
}

func (e *MetricsExporter) Shutdown(ctx context.Context) error {
	if e == nil || e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

type exporterCfg struct {
	writer   io.Writer
	interval time.Duration
	timeout  time.Duration
	global   bool
}

type ExporterOption func(*exporterCfg)

// WithExporterWriter redirects the stdout exporter.
func WithExporterWriter(w io.Writer) ExporterOption {
	return func(cfg *exporterCfg) {
		cfg.writer = w
	}
}

func WithExporterInterval(interval time.Duration) ExporterOption {
	return func(cfg *exporterCfg) {
		if interval > 0 {
			cfg.interval = interval
		}
	}
}

// WithGlobalMeterProvider also installs the provider into otel.
func WithGlobalMeterProvider() ExporterOption {
	return func(cfg *exporterCfg) {
		cfg.global = true
	}
}

func NewMetricsExporter(kind ExporterKind, opts ...ExporterOption) (*MetricsExporter, error) {
	cfg := &exporterCfg{
		writer:   os.Stdout,
		interval: 10 * time.Second,
		timeout:  5 * time.Second,
	}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}

	var (
		exp *MetricsExporter
		err error
	)
	switch kind {
	case ExporterStdout:
		exp, err = newConsoleMetricsExporter(cfg.interval, cfg.timeout, stdoutmetric.WithWriter(cfg.writer))
	case ExporterPrometheus:
		exp, err = newPrometheusMetricsExporter()
	case ExporterNone, "":
		exp = &MetricsExporter{kind: ExporterNone, provider: noop.NewMeterProvider()}
	default:
		err = infra.NewErrorStack("[metrics] unknown exporter " + string(kind))
	}
	if err != nil {
		return nil, err
	}
	if cfg.global {
		otel.SetMeterProvider(exp.provider)
	}
	return exp, nil
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (*MetricsExporter, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[metrics] stdout exporter")
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	return &MetricsExporter{
		kind:     ExporterStdout,
		provider: mp,
		shutdown: mp.Shutdown,
	}, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// Every exporter gets its own registry, so creating several never collides.
func newPrometheusMetricsExporter() (*MetricsExporter, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[metrics] prometheus exporter")
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	return &MetricsExporter{
		kind:     ExporterPrometheus,
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		shutdown: mp.Shutdown,
	}, nil
}
