package xlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	antsv2 "github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbtree/lib/infra"
)

type testMemOutWriter struct {
	lock sync.Mutex
	data []byte
}

func (w *testMemOutWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testMemOutWriter) Sync() error { return nil }

func (w *testMemOutWriter) Reset() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.data = make([]byte, 0, 4096)
}

func (w *testMemOutWriter) Lines() []map[string]any {
	w.lock.Lock()
	defer w.lock.Unlock()
	res := make([]map[string]any, 0, 8)
	for _, line := range strings.Split(strings.TrimSpace(string(w.data)), "\n") {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err == nil {
			res = append(res, m)
		}
	}
	return res
}

func newTestMemLogger(t *testing.T, opts ...XLoggerOption) (XLogger, *testMemOutWriter) {
	t.Helper()
	w := &testMemOutWriter{data: make([]byte, 0, 4096)}
	registerOutWriter(testMemAsOut, w)
	opts = append([]XLoggerOption{
		WithXLoggerWriter(testMemAsOut),
		WithXLoggerEncoder(JSON),
		WithXLoggerLevel(LogLevelDebug),
	}, opts...)
	return NewXLogger(opts...), w
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

	require.Equal(t, LogLevelWarn, ParseLogLevel(" warn "))
	require.Equal(t, LogLevelDebug, ParseLogLevel("verbose"))
	require.Equal(t, zapcore.ErrorLevel, getLogLevelOrDefault("error"))
	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault(""))

	require.Equal(t, PlainText, ParseLogEncoder("TEXT"))
	require.Equal(t, JSON, ParseLogEncoder("json"))
	require.Equal(t, JSON, ParseLogEncoder(""))
}

func TestXLoggerOptions_Invalid(t *testing.T) {
	require.Panics(t, func() {
		_ = NewXLogger(WithXLoggerEncoder(_encMax))
	})
	require.Panics(t, func() {
		_ = NewXLogger(WithXLoggerWriter(_writerMax))
	})
}

func TestXLogger_LevelAndFields(t *testing.T) {
	logger, w := newTestMemLogger(t)

	logger.Debug("tree built", zap.Int64("nodes", 3))
	logger.Info("height measured", zap.Int("height", 2))
	logger.Warn("bound exceeded")
	logger.Error(errors.New("closed pipe"), "dump failed")
	logger.Logf(zapcore.InfoLevel, "trial %d done", 7)

	lines := w.Lines()
	require.Len(t, lines, 5)
	require.Equal(t, "DEBUG", lines[0]["lvl"])
	require.Equal(t, "tree built", lines[0]["msg"])
	require.Equal(t, float64(3), lines[0]["nodes"])
	require.Equal(t, "INFO", lines[1]["lvl"])
	require.Equal(t, "WARN", lines[2]["lvl"])
	require.Equal(t, "ERROR", lines[3]["lvl"])
	require.Equal(t, "closed pipe", lines[3]["error"])
	require.Equal(t, "trial 7 done", lines[4]["msg"])
	require.NotEmpty(t, lines[0]["callAt"])

	w.Reset()
	logger.IncreaseLogLevel(zapcore.WarnLevel)
	require.Equal(t, "warn", logger.Level())
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	require.Len(t, w.Lines(), 1)
	require.NoError(t, logger.Sync())
}

func TestXLogger_ErrorStack(t *testing.T) {
	logger, w := newTestMemLogger(t)

	err := infra.WrapErrorStackWithMessage(errors.New("node limit reached"), "trial 3")
	logger.ErrorStack(err, "probe failed")
	logger.ErrorStack(errors.New("plain"), "probe failed")

	lines := w.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, "trial 3: node limit reached", lines[0]["error"])
	require.NotEmpty(t, lines[0]["errorStack"])
	require.Equal(t, "plain", lines[1]["error"])
	require.Nil(t, lines[1]["errorStack"])
}

func TestXLogger_ContextFields(t *testing.T) {
	logger, w := newTestMemLogger(t,
		WithXLoggerContextFieldExtract("traceID"),
		WithXLoggerContextFieldExtract("trial", "trialNo"),
		WithXLoggerContextFieldExtract("secret", ContextKeyMapToOmitempty),
		WithXLoggerContextFieldExtract(""),
	)

	ctx := context.WithValue(context.Background(), "traceID", "abc") //nolint:staticcheck
	ctx = context.WithValue(ctx, "secret", "xyz")                     //nolint:staticcheck
	logger.InfoContext(ctx, "with ctx")
	logger.DebugContext(ctx, "with ctx")
	logger.WarnContext(ctx, "with ctx")
	logger.ErrorContext(ctx, errors.New("boom"), "with ctx")

	lines := w.Lines()
	require.Len(t, lines, 4)
	for _, line := range lines {
		require.Equal(t, "abc", line["traceID"])
		require.Equal(t, "nil", line["trialNo"])
		require.Nil(t, line["secret"])
	}
	require.Equal(t, "boom", lines[3]["error"])

	require.Empty(t, extractFieldsFromContext(nil, map[string]string{"a": "a"}))
}

func TestXLogger_Named(t *testing.T) {
	logger, w := newTestMemLogger(t)

	child := logger.Named("rbheight")
	child.Info("component log")
	lines := w.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "rbheight", lines[0]["component"])
	require.Nil(t, lines[0]["callAt"])

	// Shares the parent level.
	w.Reset()
	logger.IncreaseLogLevel(zapcore.ErrorLevel)
	child.Info("hidden")
	require.Empty(t, w.Lines())
}

type testBanner struct{}

func (testBanner) JSON() string      { return "{\"app\":\"xrbtree\"}" }
func (testBanner) PlainText() string { return "xrbtree" }

func TestXLogger_Banner(t *testing.T) {
	printBanner = sync.Once{}
	logger, w := newTestMemLogger(t)
	logger.Banner(testBanner{})
	require.Equal(t, "{\"banner\":\"{\\\"app\\\":\\\"xrbtree\\\"}\"}\n", string(w.data))

	// Printed once.
	logger.Banner(testBanner{})
	require.Equal(t, "{\"banner\":\"{\\\"app\\\":\\\"xrbtree\\\"}\"}\n", string(w.data))
}

func TestXLogCore(t *testing.T) {
	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	_, err := newXLogCore(
		lvlEnabler,
		JSON,
		_writerMax,
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	require.Error(t, err)

	w := &testMemOutWriter{data: make([]byte, 0, 4096)}
	registerOutWriter(testMemAsOut, w)
	xc, err := newXLogCore(
		lvlEnabler,
		JSON,
		testMemAsOut,
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	require.NoError(t, err)

	require.True(t, xc.Enabled(zapcore.DebugLevel))
	lvlEnabler.SetLevel(zapcore.ErrorLevel)
	require.False(t, xc.Enabled(zapcore.DebugLevel))
	require.False(t, xc.Enabled(zapcore.WarnLevel))
	require.True(t, xc.Enabled(zapcore.ErrorLevel))

	child, ok := xc.With([]zap.Field{zap.String("tree", "trial-0")}).(*xLogCore)
	require.True(t, ok)
	child, ok = child.With([]zap.Field{zap.Int("height", 5)}).(*xLogCore)
	require.True(t, ok)
	require.Len(t, child.fields, 2)
	require.Empty(t, xc.fields)

	// The fields survive a rebuild with another encoder config.
	rebuilt, err := child.rebuild(&componentCoreEncoderCfg)
	require.NoError(t, err)
	ce := zap.New(rebuilt).Named("rbheight").Check(zapcore.ErrorLevel, "rebuilt")
	require.NotNil(t, ce)
	ce.Write()
	lines := w.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "trial-0", lines[0]["tree"])
	require.Equal(t, float64(5), lines[0]["height"])
	require.Equal(t, "rbheight", lines[0]["component"])
	require.Nil(t, lines[0]["callAt"])

	_, err = xc.rebuild(nil)
	require.Error(t, err)
}

func TestAntsXLogger_AntsPool(t *testing.T) {
	var nilLogger *AntsXLogger
	nilLogger.Printf("test %d", 123)

	parent, w := newTestMemLogger(t)
	logger := NewAntsXLogger(parent)

	p, err := antsv2.NewPool(2, antsv2.WithLogger(logger))
	require.NoError(t, err)
	defer p.Release()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		defer close(done)
		panic("xlogger panic in ants pool")
	}))
	<-done

	require.Eventually(t, func() bool {
		for _, line := range w.Lines() {
			if line["component"] == "Ants" && line["lvl"] == "ERROR" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestFxXLogger(t *testing.T) {
	parent, w := newTestMemLogger(t)

	var got int
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return NewFxXLogger(parent) }),
		fx.Supply(21),
		fx.Invoke(func(v int) { got = v * 2 }),
	)
	require.NoError(t, app.Err())
	require.Equal(t, 42, got)

	found := false
	for _, line := range w.Lines() {
		if line["component"] == "Fx" {
			found = true
			break
		}
	}
	require.True(t, found)

	var nilLogger *FxXLogger
	nilLogger.LogEvent(&fxevent.Started{})
}
