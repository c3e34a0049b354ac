// Package cli holds the fx wiring shared by the binaries: the logger,
// GOMAXPROCS and the run-once task life cycle.
package cli

import (
	"context"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbtree/xlog"
)

type LogConfig struct {
	Level   string
	Encoder string
}

func (cfg *LogConfig) BindFlags(fs *pflag.FlagSet) {
	lvl := os.Getenv("XLOG_LVL")
	fs.StringVar(&cfg.Level, "log-level", lo.Ternary(len(lvl) > 0, lvl, "info"), "log level: debug, info, warn or error")
	fs.StringVar(&cfg.Encoder, "log-encoder", "text", "log encoder: json or text")
}

// NewLogger writes to stderr, stdout is left to the program output.
func NewLogger(cfg LogConfig) xlog.XLogger {
	return xlog.NewXLogger(
		xlog.WithXLoggerStdErrWriter(),
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.Level)),
		xlog.WithXLoggerEncoder(xlog.ParseLogEncoder(cfg.Encoder)),
	)
}

func setMaxProcs(lc fx.Lifecycle, logger xlog.XLogger) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.DebugLevel, format, args...)
	}))
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(undo))
	return nil
}

// Options provides the XLogger, logs the fx events with it and adjusts
// GOMAXPROCS to the container quota.
func Options(cfg LogConfig) fx.Option {
	return fx.Options(
		fx.Provide(func() xlog.XLogger {
			return NewLogger(cfg)
		}),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(setMaxProcs),
	)
}

// Task is run once after the app started. Its ctx is cancelled when the
// app stops.
type Task func(ctx context.Context) error

// Run starts task in background and shuts the app down when it returns,
// with exit code 1 on error.
func Run(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger xlog.XLogger, task Task) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				if err := task(ctx); err != nil {
					logger.ErrorStack(err, "task failed")
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error(err, "shutdown failed")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			// Sync of a terminal stderr may fail, nothing to do about it.
			_ = logger.Sync()
			return nil
		},
	})
}
