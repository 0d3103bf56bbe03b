package infra

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var initPC = caller()

func caller() Frame {
	var PCs [3]uintptr
	n := runtime.Callers(2, PCs[:])
	frames := runtime.CallersFrames(PCs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC)
}

func TestFrameFormat(t *testing.T) {
	testcases := []struct {
		Frame
		format string
		want   string
	}{
		{initPC, "%s", "err_stack_test.go"},
		{initPC, "%n", "init"},
		{Frame(0), "%s", "unknownFile"},
		{Frame(0), "%n", "unknownFunc"},
		{Frame(0), "%d", "0"},
	}
	for _, tc := range testcases {
		require.Equal(t, tc.want, fmt.Sprintf(tc.format, tc.Frame))
	}
	require.True(t, strings.HasPrefix(fmt.Sprintf("%v", initPC), "err_stack_test.go:"))
}

func TestFrameMarshalText(t *testing.T) {
	text, err := Frame(0).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "unknownFrame", string(text))

	text, err = initPC.MarshalText()
	require.NoError(t, err)
	require.Contains(t, string(text), "lib/infra.init")
	require.Contains(t, string(text), "err_stack_test.go:")
}

var errRoot = errors.New("root cause")

func TestErrorStack_Wrap(t *testing.T) {
	require.Nil(t, WrapErrorStack(nil))
	require.Nil(t, WrapErrorStackWithMessage(nil, "ignored"))

	err := WrapErrorStackWithMessage(errRoot, "node store")
	require.ErrorIs(t, err, errRoot)
	require.Equal(t, "node store: root cause", err.Error())

	var es ErrorStack
	require.True(t, errors.As(err, &es))
	require.NotEmpty(t, es.Frames())

	// Wrapping twice keeps the innermost stack.
	require.Same(t, err, WrapErrorStack(err))

	err = NewErrorStack("exhausted")
	require.Equal(t, "exhausted", err.Error())
	require.Nil(t, errors.Unwrap(err))
	require.Contains(t, fmt.Sprintf("%+v", err), "err_stack_test.go")
}

func TestErrorStack_MarshalLogObject(t *testing.T) {
	err := NewErrorStack("exhausted")
	es := err.(ErrorStack)
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, es.MarshalLogObject(enc))
	require.Equal(t, "exhausted", enc.Fields["error"])
	stack, ok := enc.Fields["errorStack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, stack)
}
