package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
)

// EnvVerbosity is consulted at startup; it is defaulted to "info" only
// when the user has not set it.
const EnvVerbosity = "STATICA_LOG"

// Level tags a log line.
type Level int

const (
	LevelHTTP Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) badge() string {
	switch l {
	case LevelHTTP:
		return color.New(color.BgBlue, color.FgWhite, color.Bold).Sprint(" HTTP ")
	case LevelInfo:
		return color.New(color.BgMagenta, color.FgWhite, color.Bold).Sprint(" INFO ")
	case LevelWarn:
		return color.New(color.BgYellow, color.FgBlack, color.Bold).Sprint(" WARN ")
	default:
		return color.New(color.BgRed, color.FgWhite, color.Bold).Sprint(" ERROR ")
	}
}

// Logger is a leveled, colorized, timestamped sink. It is the only shared
// writable object in the process; writes are serialized by an internal
// mutex.
type Logger struct {
	mu             sync.Mutex
	out            io.Writer
	requestLogging bool
	timestamps     bool
	debug          bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithRequestLogging toggles per-request HTTP lines.
func WithRequestLogging(enable bool) Option {
	return func(l *Logger) { l.requestLogging = enable }
}

// WithTimestamps toggles the leading timestamp.
func WithTimestamps(enable bool) Option {
	return func(l *Logger) { l.timestamps = enable }
}

// WithOutput redirects the sink, mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// New builds a Logger. The verbosity environment variable is defaulted to
// "info" when unset; an existing value is never overwritten.
func New(opts ...Option) *Logger {
	if os.Getenv(EnvVerbosity) == "" {
		os.Setenv(EnvVerbosity, "info")
	}

	l := &Logger{
		out:            os.Stdout,
		requestLogging: true,
		timestamps:     true,
		debug:          os.Getenv(EnvVerbosity) == "debug",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) stamp() string {
	if !l.timestamps {
		return ""
	}
	return color.Gray.Sprint(time.Now().Format("2006-01-02 15:04:05")) + " "
}

func (l *Logger) log(level Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s%s %s\n", l.stamp(), level.badge(), message)
}

// Info logs an informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs a warning line.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs an error line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

// Debug logs only when the verbosity variable asks for it.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// HTTP logs one request line: client, method, path, status and duration.
// Suppressed entirely under --no-request-logging.
func (l *Logger) HTTP(clientIP, method, path string, status int, elapsed time.Duration) {
	if !l.requestLogging {
		return
	}

	statusText := color.Green.Sprintf("%d", status)
	if status >= 400 {
		statusText = color.Red.Sprintf("%d", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s%s %s %s - %s in %d ms\n",
		l.stamp(),
		LevelHTTP.badge(),
		color.Yellow.Sprint(clientIP),
		color.Cyan.Sprintf("%s %s", method, path),
		statusText,
		elapsed.Milliseconds(),
	)
}

// RequestLogging reports whether HTTP lines are emitted.
func (l *Logger) RequestLogging() bool {
	return l.requestLogging
}
