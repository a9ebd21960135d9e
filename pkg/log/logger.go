package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel, falling back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger wraps a zerolog.Logger with the printf-style helpers used across the codebase.
// Every helper reports its own caller, and so do children made with With.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger writes human-readable console output to stdout.
func NewLogger(level LogLevel) *Logger {
	return newLogger(consoleWriter(os.Stdout), level)
}

// NewJSONLogger writes one JSON object per line to w.
func NewJSONLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(w, level)
}

func newLogger(w io.Writer, level LogLevel) *Logger {
	zl := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Caller().
		Logger()
	return &Logger{zl: zl}
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    true,
	}
}

// SetLevel changes the minimum level emitted.
func (l *Logger) SetLevel(level LogLevel) {
	l.zl = l.zl.Level(level.zerolog())
}

// With returns a zerolog context for attaching structured fields.
func (l *Logger) With() zerolog.Context {
	return l.zl.With()
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().CallerSkipFrame(1).Msgf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().CallerSkipFrame(1).Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().CallerSkipFrame(1).Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().CallerSkipFrame(1).Msgf(format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).CallerSkipFrame(1).Msgf(format, args...)
	os.Exit(1)
}

// FileLogger writes JSON lines to a file.
type FileLogger struct {
	*Logger
	file *os.File
}

func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &FileLogger{
		Logger: newLogger(file, level),
		file:   file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitLogger replaces the global logger. format is "console" or "json".
func InitLogger(level LogLevel, format string) {
	var l *Logger
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		l = NewJSONLogger(os.Stdout, level)
	} else {
		l = NewLogger(level)
	}
	SetLogger(l)
}

// SetLogger installs l as the global logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// With starts a structured child of the global logger.
func With() zerolog.Context {
	return GetLogger().With()
}

func Debug(format string, args ...interface{}) {
	GetLogger().zl.Debug().CallerSkipFrame(1).Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().zl.Info().CallerSkipFrame(1).Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().zl.Warn().CallerSkipFrame(1).Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().zl.Error().CallerSkipFrame(1).Msgf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().zl.WithLevel(zerolog.FatalLevel).CallerSkipFrame(1).Msgf(format, args...)
	os.Exit(1)
}
