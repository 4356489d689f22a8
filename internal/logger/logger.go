// Package logger is a small leveled logger over the standard log package.
// Lines are written as text or JSON to the console, a file, or both.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("invalid log level: %s", s)
}

type Options struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	Output string // console|file|both
	File   string // used by file and both

	// Console overrides stdout; tests point it at a buffer.
	Console io.Writer
}

var (
	mu     sync.RWMutex
	std    = log.New(os.Stderr, "", 0)
	level  = INFO
	asJSON bool
	closer io.Closer
)

// Setup replaces the process logger. It may be called again; a previously
// opened log file is closed.
func Setup(o Options) error {
	lvl, err := ParseLevel(o.Level)
	if err != nil {
		return err
	}
	format := strings.ToLower(o.Format)
	if format == "" {
		format = "text"
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid log format: %s", o.Format)
	}

	console := o.Console
	if console == nil {
		console = os.Stderr
	}
	var (
		w io.Writer
		f *os.File
	)
	switch strings.ToLower(o.Output) {
	case "", "console":
		w = console
	case "file":
		if f, err = openFile(o.File); err != nil {
			return err
		}
		w = f
	case "both":
		if f, err = openFile(o.File); err != nil {
			return err
		}
		w = io.MultiWriter(console, f)
	default:
		return fmt.Errorf("invalid log output: %s", o.Output)
	}

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	if f != nil {
		closer = f
	}
	std = log.New(w, "", 0)
	level = lvl
	asJSON = format == "json"
	mu.Unlock()
	return nil
}

func openFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log output file requires LOG_FILE")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Enabled reports whether messages at l are written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(l Level, msg string) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	if asJSON {
		b, _ := json.Marshal(struct {
			Time  string `json:"time"`
			Level string `json:"level"`
			Msg   string `json:"msg"`
		}{ts, l.String(), msg})
		std.Print(string(b))
		return
	}
	std.Printf("[%s] %s: %s", ts, l, msg)
}

func Debugf(format string, args ...any) { output(DEBUG, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { output(INFO, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { output(WARN, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { output(ERROR, fmt.Sprintf(format, args...)) }
