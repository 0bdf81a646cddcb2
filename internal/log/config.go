package log

import (
	"os"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap/zapcore"
)

const levelEnvKey = "LOG_LEVEL"

// lookupEnv is swapped in tests.
var lookupEnv = func(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func parseLevel(s string) (zapcore.Level, bool) {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(s)); err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

// levelKeys lists the env keys consulted for a module path, most specific
// first: ["Signal", "WSHook"] gives LOG_LEVEL__SIGNAL__WS_HOOK,
// LOG_LEVEL__SIGNAL, LOG_LEVEL.
func levelKeys(names []string) []string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = strcase.ToScreamingSnake(n)
	}

	keys := make([]string, 0, len(parts)+1)
	for i := len(parts); i > 0; i-- {
		keys = append(keys, levelEnvKey+"__"+strings.Join(parts[:i], "__"))
	}
	return append(keys, levelEnvKey)
}

// resolveLevel returns the first valid level configured for the module path.
func resolveLevel(names []string) zapcore.Level {
	for _, key := range levelKeys(names) {
		v, ok := lookupEnv(key)
		if !ok {
			continue
		}
		if lv, ok := parseLevel(v); ok {
			return lv
		}
	}
	return zapcore.InfoLevel
}
