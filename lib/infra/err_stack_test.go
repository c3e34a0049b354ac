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

func caller() Frame {
	var pcs [3]uintptr
	n := runtime.Callers(1, pcs[:])
	return Frame(pcs[:n][0])
}

func TestFrameFormat(t *testing.T) {
	f := caller()
	require.Equal(t, "err_stack_test.go", fmt.Sprintf("%s", f))
	require.Equal(t, "caller", fmt.Sprintf("%n", f))
	require.True(t, strings.HasPrefix(fmt.Sprintf("%v", f), "err_stack_test.go:"))
	require.True(t, strings.HasPrefix(fmt.Sprintf("%+v", f), "github.com/benz9527/xrbtree/lib/infra.caller\n\t"))

	require.Equal(t, "unknownFile", fmt.Sprintf("%s", Frame(0)))
	require.Equal(t, "0", fmt.Sprintf("%d", Frame(0)))
}

func TestErrorStack(t *testing.T) {
	base := errors.New("node limit reached")

	err := WrapErrorStackWithMessage(base, "insert trial payload")
	require.Error(t, err)
	require.Equal(t, "insert trial payload: node limit reached", err.Error())
	require.ErrorIs(t, err, base)

	var es ErrorStack
	require.True(t, errors.As(err, &es))
	require.NotEmpty(t, es.Frames())

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, es.MarshalLogObject(enc))
	require.Equal(t, "insert trial payload: node limit reached", enc.Fields["error"])
	require.NotEmpty(t, enc.Fields["errorStack"])

	require.Nil(t, WrapErrorStack(nil))
	require.Nil(t, WrapErrorStackWithMessage(nil, "ignored"))
	require.Same(t, err, WrapErrorStack(err))

	wrapped := WrapErrorStack(base)
	require.Equal(t, "node limit reached", wrapped.Error())

	plain := NewErrorStack("unknown encoder")
	require.Equal(t, "unknown encoder", plain.Error())
	require.Nil(t, errors.Unwrap(plain))
}
