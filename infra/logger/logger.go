package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/tncsim/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every message.
type NopLogger = corelogger.NopLogger

// Options selects the level, format and destination of loggers.
type Options struct {
	// Level is a zerolog level name; empty means info.
	Level string `json:"level"`
	// Format is "json" or "console"; empty follows APP_ENV.
	Format string `json:"format"`
	// File additionally writes entries to a size-rotated file.
	File       string    `json:"file"`
	MaxSizeMB  int       `json:"max_size_mb"`
	MaxBackups int       `json:"max_backups"`
	MaxAgeDays int       `json:"max_age_days"`
	Out        io.Writer `json:"-"`
}

var (
	defaults = Options{Out: os.Stdout}
	rotating *lumberjack.Logger
)

// Configure sets the options used by New. It returns an error for an
// unknown level or format and keeps the previous options in that case.
func Configure(o Options) error {
	if _, err := parseLevel(o.Level); err != nil {
		return err
	}
	if err := checkFormat(o.Format); err != nil {
		return err
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	var lj *lumberjack.Logger
	if o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		lj = &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		o.Out = io.MultiWriter(o.Out, lj)
	}
	if rotating != nil {
		_ = rotating.Close()
	}
	rotating = lj
	defaults = o
	return nil
}

// New returns a Logger for the given component using the configured options.
func New(component string) Logger {
	return NewZerologLogger(component, defaults)
}
