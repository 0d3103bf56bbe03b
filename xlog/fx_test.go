package xlog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type fxTestEngine struct {
	name string
}

func TestFxXLogger(t *testing.T) {
	w := &testMemOutWriter{}
	logger := NewXLogger(WithXLoggerWriter(w), WithXLoggerLevel(LogLevelDebug))

	var invoked string
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return NewFxXLogger(logger)
		}),
		fx.Supply(logger),
		fx.Provide(func() *fxTestEngine {
			return &fxTestEngine{name: "avl"}
		}),
		fx.Invoke(func(lc fx.Lifecycle, e *fxTestEngine) {
			invoked = e.name
			lc.Append(fx.StartStopHook(
				func(context.Context) error { return nil },
				func(context.Context) error { return errors.New("stop failed") },
			))
		}),
	)
	require.NoError(t, app.Err())
	require.NoError(t, app.Start(context.Background()))
	require.Error(t, app.Stop(context.Background()))
	require.Equal(t, "avl", invoked)

	msgs := make(map[string]bool, 16)
	for _, line := range w.lines(t) {
		require.Equal(t, "fx", line["component"])
		msgs[line["msg"].(string)] = true
	}
	require.True(t, msgs["PROVIDE rtype from constructor"])
	require.True(t, msgs["SUPPLY type only"])
	require.True(t, msgs["INVOKING"])
	require.True(t, msgs["RUNNING"])
	require.True(t, msgs["HOOK OnStop executed failed"])
}

func TestFxXLogger_Nil(t *testing.T) {
	var l *FxXLogger
	require.NotPanics(t, func() {
		l.LogEvent(&fxevent.Started{})
		NewFxXLogger(nil).LogEvent(&fxevent.Started{})
	})
}
