package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/xlog"
)

func collectSums(t *testing.T, reader sdkmetric.Reader) map[string]map[string]int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	res := make(map[string]map[string]int64, 8)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			points := make(map[string]int64, len(sum.DataPoints))
			for _, dp := range sum.DataPoints {
				points[attrKey(dp.Attributes)] += dp.Value
			}
			res[m.Name] = points
		}
	}
	return res
}

func attrKey(set attribute.Set) string {
	parts := make([]string, 0, set.Len())
	for _, kv := range set.ToSlice() {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}

func TestTreeStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	stats := NewTreeStats[int](mp, "test")

	avl := tree.NewAVLTree[int](tree.WithObserver[int](stats))
	rb := tree.NewRBTree[int](tree.WithObserver[int](stats))
	for _, k := range []int{1, 2, 3} {
		avl.Insert(k)
		rb.Insert(k)
	}
	avl.Insert(2)
	rb.Delete(7)
	avl.Delete(1)

	sums := collectSums(t, reader)
	require.Equal(t, int64(3), sums["xbst.tree.operations"]["engine=avl,outcome=inserted"])
	require.Equal(t, int64(1), sums["xbst.tree.operations"]["engine=avl,outcome=duplicate"])
	require.Equal(t, int64(1), sums["xbst.tree.operations"]["engine=avl,outcome=deleted"])
	require.Equal(t, int64(1), sums["xbst.tree.operations"]["engine=rbtree,outcome=not-found"])
	require.Equal(t, int64(2), sums["xbst.tree.nodes"]["engine=avl"])
	require.Equal(t, int64(3), sums["xbst.tree.nodes"]["engine=rbtree"])
	// 1,2,3 is a single left rotation for both engines.
	require.Equal(t, int64(1), sums["xbst.tree.rotations"]["direction=Left,engine=avl"])
	require.Equal(t, int64(1), sums["xbst.tree.rotations"]["direction=Left,engine=rbtree"])
	require.Equal(t, int64(1), sums["xbst.tree.rebalances"]["case=RR,engine=avl"])
	require.Equal(t, int64(1), sums["xbst.tree.rebalances"]["case=outer-child,engine=rbtree"])
	require.Equal(t, int64(1), sums["xbst.tree.recolors"]["color=Red,engine=rbtree"])
	require.NotZero(t, sums["xbst.tree.height.updates"]["engine=avl"])

	var nilStats *TreeStats[int]
	require.NotPanics(t, func() {
		nilStats.OnEvent(tree.Event[int]{Kind: tree.EventInserted})
	})
	require.NoError(t, mp.Shutdown(context.Background()))
}

func TestParseExporterKind(t *testing.T) {
	testcases := []struct {
		name    string
		in      string
		kind    ExporterKind
		wantErr bool
	}{
		{name: "empty", in: "", kind: ExporterNone},
		{name: "none", in: "none", kind: ExporterNone},
		{name: "stdout", in: " STDOUT ", kind: ExporterStdout},
		{name: "prometheus", in: "prometheus", kind: ExporterPrometheus},
		{name: "unknown", in: "statsd", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			kind, err := ParseExporterKind(tc.in)
			if tc.wantErr {
				require.Error(tt, err)
				return
			}
			require.NoError(tt, err)
			require.Equal(tt, tc.kind, kind)
		})
	}
}

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestStdoutMetricsExporter(t *testing.T) {
	out := &syncBuffer{}
	exp, err := NewMetricsExporter(ExporterStdout, WithExporterWriter(out))
	require.NoError(t, err)
	require.Equal(t, ExporterStdout, exp.Kind())
	require.Nil(t, exp.Handler())

	stats := NewTreeStats[int](exp.MeterProvider(), "")
	tr := tree.NewRBTree[int](tree.WithObserver[int](stats))
	tr.Insert(1)

	// Shutdown flushes the periodic reader.
	require.NoError(t, exp.Shutdown(context.Background()))
	require.Contains(t, out.String(), "xbst.tree.operations")
}

func TestPrometheusMetricsExporter(t *testing.T) {
	exp, err := NewMetricsExporter(ExporterPrometheus)
	require.NoError(t, err)
	require.NotNil(t, exp.Handler())

	stats := NewTreeStats[int](exp.MeterProvider(), "")
	tr := tree.NewAVLTree[int](tree.WithObserver[int](stats))
	for _, k := range []int{3, 2, 1} {
		tr.Insert(k)
	}

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "xbst_tree_operations_total")
	require.Contains(t, string(body), `case="LL"`)

	// A second exporter owns its own registry.
	exp2, err := NewMetricsExporter(ExporterPrometheus)
	require.NoError(t, err)
	require.NoError(t, exp2.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))
}

func TestNoneMetricsExporter(t *testing.T) {
	exp, err := NewMetricsExporter(ExporterNone)
	require.NoError(t, err)
	require.IsType(t, noop.MeterProvider{}, exp.MeterProvider())
	require.NoError(t, exp.Shutdown(context.Background()))

	_, err = NewMetricsExporter(ExporterKind("statsd"))
	require.Error(t, err)
}

func TestStartAppStats(t *testing.T) {
	require.Error(t, StartAppStats(nil, ""))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, StartAppStats(mp, "stress"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := make(map[string]bool, 16)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	require.True(t, names["app.core.goroutines"])
	require.True(t, names["app.core.processes"])
}

func TestTraceObserver(t *testing.T) {
	require.Nil(t, NewTraceObserver[int](nil))

	w := &syncBuffer{}
	logger := xlog.NewXLogger(xlog.WithXLoggerWriter(w), xlog.WithXLoggerLevel(xlog.LogLevelDebug))
	obs := NewTraceObserver[int](logger)
	tr := tree.NewRBTree[int](tree.WithObserver[int](obs))
	for _, k := range []int{1, 2, 3} {
		tr.Insert(k)
	}
	tr.Delete(9)

	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	msgs := make([]string, 0, len(lines))
	for _, line := range lines {
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		require.Equal(t, "tree", m["component"])
		require.Equal(t, "rbtree", m["engine"])
		msgs = append(msgs, m["msg"].(string))
	}
	require.Contains(t, msgs, "inserted")
	require.Contains(t, msgs, "rotated")
	require.Contains(t, msgs, "recolored")
	require.Contains(t, msgs, "rebalanced")
	require.Equal(t, "not-found", msgs[len(msgs)-1])

	var nilObs *TraceObserver[int]
	require.NotPanics(t, func() {
		nilObs.OnEvent(tree.Event[int]{})
	})
}
