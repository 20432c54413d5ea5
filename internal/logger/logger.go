package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Environment variable name for log level configuration.
const envLogLevel = "SIA_LOG_LEVEL"

var (
	// atomicLevel implements slog.Leveler and can be changed at runtime.
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	// global logger instance
	global   *slog.Logger
	initOnce sync.Once

	mu     sync.Mutex
	format = "json"
	out    io.Writer = os.Stdout
)

// dynamicLevel is an atomic Leveler.
type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init initializes the global logger. It is safe to call multiple times; the
// first call wins except SetLevel / SetFormat / UseWriter which mutate state
// intentionally.
func Init() {
	initOnce.Do(func() {
		if env := os.Getenv(envLogLevel); env != "" {
			if lvl, ok := parseLevel(env); ok {
				atomicLevel.set(lvl)
			}
		}
		rebuild()
	})
}

// rebuild swaps the handler according to current format/writer. Callers hold mu
// or run inside initOnce.
func rebuild() {
	opts := &slog.HandlerOptions{Level: atomicLevel}
	if format == "text" {
		global = slog.New(slog.NewTextHandler(out, opts))
		return
	}
	global = slog.New(slog.NewJSONHandler(out, opts))
}

// parseLevel converts string to slog.Level.
func parseLevel(s string) (slog.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	atomicLevel.set(lvl)
	return nil
}

// SetFormat selects the handler encoding ("text" or "json").
func SetFormat(f string) error {
	Init()
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case "text", "json":
	default:
		return errors.New("invalid log format: " + f)
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
	return nil
}

// Level returns the current runtime level as string.
func Level() string {
	Init()
	return atomicLevel.Level().String()
}

// UseWriter swaps the output writer (log file redirection and tests). Retains
// current level and format.
func UseWriter(w io.Writer) {
	Init()
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// Logger returns the global logger (ensures Init was called).
func Logger() *slog.Logger { Init(); return global }

// Convenience top-level logging functions.
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithConn attaches connection identity fields.
func WithConn(l *slog.Logger, connID, peerAddr string) *slog.Logger {
	return l.With("conn_id", connID, "peer_addr", peerAddr)
}

// WithAccount attaches the panel account identity.
func WithAccount(l *slog.Logger, account string) *slog.Logger {
	return l.With("account", account)
}
