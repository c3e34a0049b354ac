package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xrbtree/lib/infra"
)

var (
	consoleCoreEncoderCfg = zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
	// Component loggers drop the caller and the function.
	componentCoreEncoderCfg = zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     coreKeyIgnored,
		FunctionKey:   coreKeyIgnored,
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
)

// xLogCore is a zap io core that remembers how it was built, so that a
// component logger can re-encode the same output with another config.
type xLogCore struct {
	zapcore.Core
	lvlEnabler zapcore.LevelEnabler
	lvlEnc     zapcore.LevelEncoder
	tsEnc      zapcore.TimeEncoder
	ws         zapcore.WriteSyncer
	enc        func(cfg zapcore.EncoderConfig) zapcore.Encoder
	fields     []zap.Field // replayed by rebuild
}

func newXLogCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	writer logOutWriterType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) (*xLogCore, error) {
	if writer >= _writerMax {
		return nil, infra.NewErrorStack("[XLogger] unknown writer")
	}
	xc := &xLogCore{
		lvlEnabler: lvlEnabler,
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
		ws:         getOutWriterByType(writer),
		enc:        getEncoderByType(encoder),
	}
	cfg := consoleCoreEncoderCfg
	return xc.rebuild(&cfg)
}

// With keeps the result an *xLogCore, the fields go along when the core is
// rebuilt for a component.
func (xc *xLogCore) With(fields []zap.Field) zapcore.Core {
	clone := *xc
	clone.Core = xc.Core.With(fields)
	clone.fields = append(append(make([]zap.Field, 0, len(xc.fields)+len(fields)), xc.fields...), fields...)
	return &clone
}

// rebuild encodes into the same writer with cfg, at the same level.
func (xc *xLogCore) rebuild(cfg *zapcore.EncoderConfig) (*xLogCore, error) {
	if cfg == nil {
		return nil, infra.NewErrorStack("[XLogger] logger core config is empty")
	}
	_cfg := *cfg
	_cfg.EncodeLevel = xc.lvlEnc
	_cfg.EncodeTime = xc.tsEnc
	clone := *xc
	clone.Core = zapcore.NewCore(xc.enc(_cfg), xc.ws, xc.lvlEnabler)
	if len(xc.fields) > 0 {
		clone.Core = clone.Core.With(xc.fields)
	}
	return &clone, nil
}
