package common

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arbiterhq/arbiter/version"
)

// LogLevel represents standard logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggerConfig contains configuration for creating a logger.
type LoggerConfig struct {
	Level      LogLevel // Minimum log level
	Format     string   // "json" or "text"
	Service    string   // Service name attached to all entries
	TimeFormat string   // Timestamp format
}

// DefaultLoggerConfig returns a logger config with sensible defaults.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LogLevelInfo,
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a configured logger with severity-based output routing.
func NewLogger(config LoggerConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})

	switch config.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimeFormat,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: config.TimeFormat,
		})
	}

	return logger
}

// NewServiceEntry returns an entry carrying the service name and version,
// the base entry every component logger should derive from.
func NewServiceEntry(logger *logrus.Logger, service string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"service": service,
		"version": version.Version,
	})
}
