package observability

import (
	"context"
	"runtime"
	"strings"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xbst/lib/infra"
)

const AppStatsName = "xbst/app"

// StartAppStats publishes goroutine and GOMAXPROCS gauges plus the otel
// runtime (GC, memory) instruments of the process under name.
func StartAppStats(mp metric.MeterProvider, name string) error {
	if mp == nil {
		return infra.NewErrorStack("[metrics] nil meter provider")
	}
	builder := &strings.Builder{}
	builder.WriteString(AppStatsName)
	builder.WriteString("/")
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	meter := mp.Meter(builder.String(), metric.WithInstrumentationVersion(otelruntime.Version()))
	_ = lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
		"app.core.goroutines",
		metric.WithDescription(`The application goroutines' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	))
	_ = lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
		"app.core.processes",
		metric.WithDescription(`The application processes' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.GOMAXPROCS(0)))
			return nil
		}),
	))
	if err := otelruntime.Start(otelruntime.WithMeterProvider(mp)); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[metrics] runtime instrumentation")
	}
	return nil
}
