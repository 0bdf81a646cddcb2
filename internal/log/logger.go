package log

import (
	"encoding/json"
	//nolint:depguard
	"log"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Fatal is for start-up failures before a Logger exists.
func Fatal(v ...any) {
	log.Fatal(v...)
}

// Logger is a zap logger that knows its module path. Module derives a child
// whose level can be tuned per path through LOG_LEVEL__<PATH> env vars.
type Logger struct {
	*zap.Logger
	names []string
	build func(names []string) *zap.Logger
}

func (l *Logger) Module(name string) *Logger {
	names := append(append(make([]string, 0, len(l.names)+1), l.names...), name)
	return &Logger{
		Logger: l.build(names),
		names:  names,
		build:  l.build,
	}
}

// NewLogger builds the process logger: a console logger when configFile is
// empty, otherwise a zap.Config read from the JSON file.
func NewLogger(configFile string) (*Logger, error) {
	if configFile == "" {
		return newConsoleLogger(), nil
	}

	bs, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if err := json.Unmarshal(bs, &cfg); err != nil {
		return nil, err
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: base.Named("main"),
		build: func(names []string) *zap.Logger {
			return base.Named(strings.Join(names, "."))
		},
	}, nil
}

func consoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + name + "]")
		},
	})
}

func newConsoleLogger() *Logger {
	enc := consoleEncoder()
	out := zapcore.Lock(zapcore.AddSync(os.Stdout))

	at := func(lv zapcore.Level) *zap.Logger {
		core := zapcore.NewCore(enc, out, zap.NewAtomicLevelAt(lv))
		return zap.New(core, zap.AddStacktrace(zapcore.FatalLevel))
	}

	return &Logger{
		Logger: at(resolveLevel(nil)).Named("main"),
		build: func(names []string) *zap.Logger {
			return at(resolveLevel(names)).Named(strings.Join(names, "."))
		},
	}
}

// NewTest logs through t so output shows up only for failing tests.
func NewTest(t *testing.T) *Logger {
	base := zaptest.NewLogger(t)
	return &Logger{
		Logger: base,
		build: func(names []string) *zap.Logger {
			return base.Named(strings.Join(names, "."))
		},
	}
}

func NewNop() *Logger {
	nop := zap.NewNop()
	return &Logger{
		Logger: nop,
		build:  func([]string) *zap.Logger { return nop },
	}
}
