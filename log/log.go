// Package log is a thin structured-logging wrapper around zerolog, matching
// the surface the rest of the core logs through (Infof/Debugw/Warnw/Errorf,
// etc.) rather than fmt.Println or the stdlib log package.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	logTestWriterName = "test"
)

var (
	mu     sync.Mutex
	logger zerolog.Logger
	level  string

	// panicOnInvalidChars makes Debugf/Infof/etc. panic if the formatted
	// message contains a byte that is not valid UTF-8. Disabled by default;
	// exists so tests can assert a malformed log argument is caught instead
	// of silently corrupting the output stream.
	panicOnInvalidChars = false

	// logTestWriter, when non-nil and output == logTestWriterName, is used
	// instead of opening stdout/stderr. Exists for benchmarks/tests that
	// want to discard output without counting stdout writes.
	logTestWriter io.Writer
)

func init() {
	Init("info", "stderr", nil)
}

// Init (re)configures the global logger. level is one of
// debug/info/warn/error/fatal/panic. output is "stdout", "stderr", or
// logTestWriterName (the test shim). writer, if non-nil, is used verbatim
// instead of resolving output.
func Init(lvl string, output string, writer io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	level = strings.ToLower(lvl)
	zl, err := zerolog.ParseLevel(level)
	if err != nil {
		zl = zerolog.InfoLevel
	}

	var w io.Writer
	switch {
	case writer != nil:
		w = writer
	case output == logTestWriterName:
		if logTestWriter != nil {
			w = logTestWriter
		} else {
			w = io.Discard
		}
	case output == "stdout":
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	default:
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	logger = zerolog.New(w).Level(zl).With().Timestamp().Logger()
}

// Level returns the currently configured log level.
func Level() string {
	mu.Lock()
	defer mu.Unlock()
	return level
}

func checkInvalidChars(s string) {
	if panicOnInvalidChars && !utf8.ValidString(s) {
		panic(fmt.Sprintf("log: invalid (non-utf8) characters in message: %q", s))
	}
}

func fields(e *zerolog.Event, keyvals ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		e = e.Interface(key, keyvals[i+1])
	}
	return e
}

// Debug logs msg at debug level.
func Debug(msg string) {
	checkInvalidChars(msg)
	logger.Debug().Msg(msg)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalidChars(msg)
	logger.Debug().Msg(msg)
}

// Debugw logs msg at debug level with structured key/value pairs.
func Debugw(msg string, keyvals ...any) {
	checkInvalidChars(msg)
	fields(logger.Debug(), keyvals...).Msg(msg)
}

// Info logs msg at info level.
func Info(msg string) {
	checkInvalidChars(msg)
	logger.Info().Msg(msg)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalidChars(msg)
	logger.Info().Msg(msg)
}

// Infow logs msg at info level with structured key/value pairs.
func Infow(msg string, keyvals ...any) {
	checkInvalidChars(msg)
	fields(logger.Info(), keyvals...).Msg(msg)
}

// Warn logs msg at warn level.
func Warn(msg string) {
	checkInvalidChars(msg)
	logger.Warn().Msg(msg)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalidChars(msg)
	logger.Warn().Msg(msg)
}

// Warnw logs msg at warn level with structured key/value pairs.
func Warnw(msg string, keyvals ...any) {
	checkInvalidChars(msg)
	fields(logger.Warn(), keyvals...).Msg(msg)
}

// Error logs err at error level.
func Error(err error) {
	logger.Error().Msg(err.Error())
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	checkInvalidChars(msg)
	logger.Error().Msg(msg)
}

// Errorw logs err at error level alongside msg and structured key/value pairs.
func Errorw(err error, msg string, keyvals ...any) {
	checkInvalidChars(msg)
	e := logger.Error()
	if err != nil {
		e = e.Str("error", err.Error())
	}
	fields(e, keyvals...).Msg(msg)
}

// Fatal logs err at fatal level and terminates the process.
func Fatal(err error) {
	logger.Fatal().Msg(err.Error())
}

// Fatalf logs a formatted message at fatal level and terminates the process.
func Fatalf(format string, args ...any) {
	logger.Fatal().Msg(fmt.Sprintf(format, args...))
}
