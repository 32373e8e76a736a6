// Package logger wraps a shared logrus instance with optional file output
// and size-based rotation. Call Init once at startup; the package-level
// helpers are safe to use before that (they are no-ops).
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared instance. Prefer the package helpers or WithField.
var Logger *logrus.Logger

// Config controls logging behavior.
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // empty: console only
	FileOnly   bool   // suppress console output; for binaries that own the terminal
	MaxSize    int    // MB per file before rotation
	MaxBackups int    // rotated files kept
	MaxAge     int    // days rotated files kept
	Compress   bool
}

// Init sets up the shared logger. It also configures the global logrus
// output so WithField entries created elsewhere land in the same sinks.
func Init(config Config) error {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	}
	logger.SetFormatter(formatter)

	var writers []io.Writer
	if !config.FileOnly {
		writers = append(writers, os.Stdout)
	}
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	out := io.MultiWriter(writers...)
	logger.SetOutput(out)

	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)

	Logger = logger
	return nil
}

// InitDefault configures console-only info logging; used by tests.
func InitDefault() error {
	return Init(Config{Level: "info"})
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField returns a tagged entry; modules use it for a stable "module"
// tag on every line.
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.WithField(key, value)
}
