package internal

// Internal logging utility.

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type Logger struct {
	lock     sync.Mutex
	logLevel LogLevel
	zl       zerolog.Logger
}

type LogLevel int

const (
	// error levels that should almost always be printed
	LevelFatal LogLevel = iota // error that must stop the program (exits)
	LevelError                 // error that does not need to stop execution

	// debugging levels, okay to disable
	LevelWarn // something may be wrong, but not necessarily an error
	LevelInfo // nothing wrong, informational only

	// Production code by default only shows warnings and above.
	LogLevelDefault = LevelWarn

	// min, max levels for setting print level
	LevelMin = LevelFatal
	LevelMax = LevelInfo
)

var levelToZerolog = []zerolog.Level{
	zerolog.FatalLevel,
	zerolog.ErrorLevel,
	zerolog.WarnLevel,
	zerolog.InfoLevel,
}

var (
	outputLock sync.Mutex
	output     io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	loggers    []*Logger
)

// SetOutput redirects every logger created by NewLogger, past and future.
// Use zerolog.ConsoleWriter for human output or a plain writer for JSON.
func SetOutput(w io.Writer) {
	outputLock.Lock()
	defer outputLock.Unlock()
	output = w
	for _, l := range loggers {
		l.lock.Lock()
		l.zl = zerolog.New(w).With().Timestamp().Logger().Level(levelToZerolog[l.logLevel])
		l.lock.Unlock()
	}
}

func NewLogger() *Logger {
	outputLock.Lock()
	defer outputLock.Unlock()
	l := &Logger{
		logLevel: LogLevelDefault,
		zl:       zerolog.New(output).With().Timestamp().Logger().Level(levelToZerolog[LogLevelDefault]),
	}
	loggers = append(loggers, l)
	return l
}

func (l *Logger) LogLevel() LogLevel {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.logLevel
}

// SetLogLevel returns the old level
func (l *Logger) SetLogLevel(level LogLevel) LogLevel {
	if level < LevelMin || level > LevelMax {
		panic("trying to set invalid log level")
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	old := l.logLevel
	l.logLevel = level
	l.zl = l.zl.Level(levelToZerolog[level])
	return old
}

// Event starts a structured event at the given level. The result is nil
// (and safe to chain on) when the level is disabled. A LevelFatal event is
// written at fatal level but does not exit; use Fatal for that.
func (l *Logger) Event(level LogLevel) *zerolog.Event {
	l.lock.Lock()
	zl := l.zl
	l.lock.Unlock()
	switch level {
	case LevelFatal:
		return zl.WithLevel(zerolog.FatalLevel)
	case LevelError:
		return zl.Error()
	case LevelWarn:
		return zl.Warn()
	default:
		return zl.Info()
	}
}

func (l *Logger) output(level LogLevel, s string) {
	l.Event(level).Msg(s)
}

func (l *Logger) Info(v ...any)                 { l.output(LevelInfo, fmt.Sprint(v...)) }
func (l *Logger) Infof(format string, v ...any) { l.output(LevelInfo, fmt.Sprintf(format, v...)) }

func (l *Logger) Warn(v ...any)                 { l.output(LevelWarn, fmt.Sprint(v...)) }
func (l *Logger) Warnf(format string, v ...any) { l.output(LevelWarn, fmt.Sprintf(format, v...)) }

func (l *Logger) Error(v ...any)                 { l.output(LevelError, fmt.Sprint(v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.output(LevelError, fmt.Sprintf(format, v...)) }

func (l *Logger) Fatal(v ...any) {
	l.lock.Lock()
	zl := l.zl
	l.lock.Unlock()
	zl.Fatal().Msg(fmt.Sprint(v...))
}

func (l *Logger) Fatalf(format string, v ...any) {
	l.lock.Lock()
	zl := l.zl
	l.lock.Unlock()
	zl.Fatal().Msgf(format, v...)
}

// SetPackageLevel maps the public 0..3 levels onto LogLevel for the
// SetLogLevel functions each package exports. It returns the old level.
func SetPackageLevel(l *Logger, level int) int {
	old := l.LogLevel()
	switch level {
	case 0:
		l.SetLogLevel(LevelFatal)
	case 1:
		l.SetLogLevel(LevelError)
	case 2:
		l.SetLogLevel(LevelWarn)
	default:
		l.SetLogLevel(LevelInfo)
	}
	return int(old)
}
