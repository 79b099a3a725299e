// Package logger provides leveled file logging for ferret-hunt
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Level represents log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts debug, info, warn or error in any case
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Options configures the global logger
type Options struct {
	Dir       string // directory for the log file; "." when empty
	Verbosity int    // highest Verbose level that is written
	Level     Level
	Writer    io.Writer // when set, logs go here instead of a file
}

// Logger is the main logger instance
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	file      *os.File
	filePath  string
	level     Level
	verbosity int
}

var (
	mu       sync.RWMutex
	instance *Logger
)

// Init initializes the global logger. Calling it again replaces the
// previous logger after closing it.
func Init(opts Options) error {
	l := &Logger{
		level:     opts.Level,
		verbosity: opts.Verbosity,
		out:       opts.Writer,
	}

	if l.out == nil {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}

		timestamp := time.Now().Format("20060102_150405")
		hostname, _ := os.Hostname()
		logPath := filepath.Join(dir, fmt.Sprintf("ferret-hunt_%s_%s.log", hostname, timestamp))

		file, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		l.file = file
		l.filePath = logPath
		l.out = file
	}

	l.writeHeader()

	mu.Lock()
	prev := instance
	instance = l
	mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return nil
}

// GetLogPath returns the path to the log file
func GetLogPath() string {
	l := current()
	if l == nil {
		return ""
	}
	return l.filePath
}

// Close flushes the footer and closes the log file
func Close() {
	mu.Lock()
	l := instance
	instance = nil
	mu.Unlock()

	if l != nil {
		l.close()
	}
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func (l *Logger) close() {
	l.writeFooter()
	if l.file != nil {
		l.file.Close()
	}
}

func (l *Logger) writeHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	hostname, _ := os.Hostname()
	fmt.Fprintf(l.out, `================================================================================
ferret-hunt Log
================================================================================
Start Time: %s
Hostname:   %s
OS:         %s/%s
Go Version: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05.000 MST"), hostname, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (l *Logger) writeFooter() {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, `
================================================================================
End Time: %s
================================================================================
`, time.Now().Format("2006-01-02 15:04:05.000 MST"))
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	// Caller of the package-level function
	_, file, line, ok := runtime.Caller(3)
	caller := ""
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] [%-5s] [%-20s] %s\n", timestamp, level.String(), caller, msg)
}

func logAt(level Level, format string, args ...interface{}) {
	if l := current(); l != nil {
		l.log(level, format, args...)
	}
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	logAt(LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logAt(LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logAt(LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logAt(LevelError, format, args...)
}

// Verbose logs a progress line at INFO when level does not exceed the
// configured verbosity.
func Verbose(level int, format string, args ...interface{}) {
	l := current()
	if l == nil || level > l.verbosity {
		return
	}
	logAt(LevelInfo, format, args...)
}

// Section logs a section header for better readability
func Section(name string) {
	logAt(LevelInfo, "")
	logAt(LevelInfo, "========== %s ==========", name)
}

// SubSection logs a subsection header
func SubSection(name string) {
	logAt(LevelInfo, "--- %s ---", name)
}

// Timing logs execution time for a function
func Timing(operation string, start time.Time) {
	logAt(LevelDebug, "[TIMING] %s completed in %v", operation, time.Since(start))
}

// DetectionInfo logs detection information
func DetectionInfo(hunt, severity, identifier string) {
	logAt(LevelInfo, "Detection: [%s] [%s] %s", severity, hunt, truncate(identifier, 200))
}

// truncate shortens s to at most maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
