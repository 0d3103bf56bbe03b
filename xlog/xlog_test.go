package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xbst/lib/infra"
)

type testMemOutWriter struct {
	lock sync.Mutex
	data bytes.Buffer
}

func (w *testMemOutWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.data.Write(p)
}

func (w *testMemOutWriter) lines(t *testing.T) []map[string]any {
	w.lock.Lock()
	defer w.lock.Unlock()
	res := make([]map[string]any, 0, 8)
	for _, line := range strings.Split(strings.TrimSpace(w.data.String()), "\n") {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		res = append(res, m)
	}
	return res
}

func (w *testMemOutWriter) Reset() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.data.Reset()
}

func TestLogLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevelDebug.String())
	require.Equal(t, "INFO", LogLevelInfo.String())
	require.Equal(t, "WARN", LogLevelWarn.String())
	require.Equal(t, "ERROR", LogLevelError.String())
	require.Equal(t, zapcore.DebugLevel, LogLevelDebug.zapLevel())
	require.Equal(t, zapcore.InfoLevel, LogLevelInfo.zapLevel())
	require.Equal(t, zapcore.WarnLevel, LogLevelWarn.zapLevel())
	require.Equal(t, zapcore.ErrorLevel, LogLevelError.zapLevel())
}

func TestParseLogLevelAndEncoder(t *testing.T) {
	testcases := []struct {
		in  string
		lvl logLevel
	}{
		{"info", LogLevelInfo},
		{" WARN ", LogLevelWarn},
		{"Error", LogLevelError},
		{"debug", LogLevelDebug},
		{"", LogLevelDebug},
		{"verbose", LogLevelDebug},
	}
	for _, tc := range testcases {
		t.Run(fmt.Sprintf("level %q", tc.in), func(tt *testing.T) {
			require.Equal(tt, tc.lvl, ParseLogLevel(tc.in))
		})
	}

	enc, ok := ParseLogEncoder("JSON")
	require.True(t, ok)
	require.Equal(t, JSON, enc)
	enc, ok = ParseLogEncoder("console")
	require.True(t, ok)
	require.Equal(t, PlainText, enc)
	_, ok = ParseLogEncoder("xml")
	require.False(t, ok)
}

func TestXLogger_Levels(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(
		WithXLoggerWriter(w),
		WithXLoggerLevel(LogLevelInfo),
		WithXLoggerEncoder(JSON),
	)
	require.Equal(t, "info", logger.Level())

	logger.Debug("hidden")
	logger.Info("shown", zap.Int("keys", 6))
	logger.Warn("warned")
	logger.Error(errors.New("boom"), "failed")
	logger.Logf(zapcore.InfoLevel, "tree %s", "avl")
	require.NoError(t, logger.Sync())

	lines := w.lines(t)
	require.Len(t, lines, 4)
	require.Equal(t, "shown", lines[0]["msg"])
	require.Equal(t, "INFO", lines[0]["lvl"])
	require.Equal(t, float64(6), lines[0]["keys"])
	require.Contains(t, lines[0], "callAt")
	require.Equal(t, "WARN", lines[1]["lvl"])
	require.Equal(t, "boom", lines[2]["error"])
	require.Equal(t, "tree avl", lines[3]["msg"])

	w.Reset()
	logger.IncreaseLogLevel(zapcore.DebugLevel)
	logger.Debug("visible")
	require.Len(t, w.lines(t), 1)
}

func TestXLogger_ErrorStack(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(WithXLoggerWriter(w), WithXLoggerLevel(LogLevelDebug))

	err := infra.WrapErrorStackWithMessage(errors.New("slot"), "allocate")
	logger.ErrorStack(err, "stack")
	logger.ErrorStack(fmt.Errorf("outer: %w", err), "wrapped")
	logger.ErrorStack(errors.New("plain"), "plain")
	logger.ErrorStackf(err, "stack %d", 1)

	lines := w.lines(t)
	require.Len(t, lines, 4)
	require.Equal(t, "allocate: slot", lines[0]["error"])
	require.IsType(t, []any{}, lines[0]["errorStack"])
	require.NotEmpty(t, lines[0]["errorStack"])
	require.Equal(t, "outer: allocate: slot", lines[1]["error"])
	require.IsType(t, []any{}, lines[1]["errorStack"])
	require.Equal(t, "plain", lines[2]["error"])
	require.NotContains(t, lines[2], "errorStack")
	require.Equal(t, "stack 1", lines[3]["msg"])
}

func TestXLogger_ContextFields(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(
		WithXLoggerWriter(w),
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerContextFieldExtract("trial"),
		WithXLoggerContextFieldExtract("engine", "tree"),
		WithXLoggerContextFieldExtract("seed", ContextKeyMapToOmitempty),
	)

	ctx := context.WithValue(context.Background(), ContextKey("trial"), 3)
	ctx = context.WithValue(ctx, ContextKey("engine"), "avl")
	logger.InfoContext(ctx, "with fields")
	logger.DebugContext(context.Background(), "missing fields")
	logger.WarnContext(context.WithValue(ctx, ContextKey("seed"), 42), "with seed")
	logger.ErrorContext(ctx, errors.New("bad"), "error")
	logger.ErrorStackContext(ctx, infra.NewErrorStack("bad"), "error stack")

	lines := w.lines(t)
	require.Len(t, lines, 5)
	require.Equal(t, float64(3), lines[0]["trial"])
	require.Equal(t, "avl", lines[0]["tree"])
	require.NotContains(t, lines[0], "seed")
	require.Equal(t, "nil", lines[1]["trial"])
	require.Equal(t, "nil", lines[1]["tree"])
	require.Equal(t, float64(42), lines[2]["seed"])
	require.Equal(t, "bad", lines[3]["error"])
	require.Contains(t, lines[4], "errorStack")
}

func TestXLogger_Named(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(WithXLoggerWriter(w), WithXLoggerLevel(LogLevelDebug))
	child := logger.Named("rbtree")
	child.Info("rotated")

	lines := w.lines(t)
	require.Len(t, lines, 1)
	require.Equal(t, "rbtree", lines[0]["component"])
	require.NotContains(t, lines[0], "callAt")

	// The child shares the level of its parent.
	w.Reset()
	logger.IncreaseLogLevel(zapcore.ErrorLevel)
	child.Info("hidden")
	require.Len(t, w.lines(t), 0)
}

type testBanner struct{}

func (testBanner) JSON() string {
	return `{"app":"xbst"}`
}

func (testBanner) PlainText() string {
	return "xbst"
}

func TestXLogger_Banner(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(WithXLoggerWriter(w))
	logger.Banner(testBanner{})
	logger.Banner(testBanner{})
	require.Equal(t, 1, strings.Count(w.data.String(), "banner"))
}

func TestXLogger_InvalidOptions(t *testing.T) {
	require.Panics(t, func() {
		NewXLogger(WithXLoggerWriter(nil))
	})
	require.Panics(t, func() {
		NewXLogger(WithXLoggerEncoder(_encMax))
	})
	require.NotPanics(t, func() {
		NewXLogger(nil, WithXLoggerLevelEncoder(nil), WithXLoggerTimeEncoder(nil), WithXLoggerStdOutWriter())
	})
}

func TestTeeCore(t *testing.T) {
	w1, w2 := &testMemOutWriter{}, &testMemOutWriter{}
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	c1 := newConsoleCore(lvl, JSON, zapcore.AddSync(w1), zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	c2 := newConsoleCore(lvl, PlainText, zapcore.AddSync(w2), zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	tee := XLogTeeCore(c1, c2)
	require.Nil(t, tee.writeSyncer())
	require.Nil(t, tee.outEncoder())
	require.False(t, tee.Enabled(zapcore.DebugLevel))
	require.True(t, tee.Enabled(zapcore.InfoLevel))

	l := zap.New(tee)
	l.Info("both")
	l.Debug("none")
	require.NoError(t, l.Sync())
	require.Len(t, w1.lines(t), 1)
	require.Contains(t, w2.data.String(), "both")
	require.NotContains(t, w2.data.String(), "none")

	wrapped, err := WrapCores([]xLogCore{c1, c2}, componentCoreEncoderCfg)
	require.NoError(t, err)
	require.True(t, wrapped.Enabled(zapcore.InfoLevel))
	_, err = WrapCore(c1, nil)
	require.Error(t, err)
}
