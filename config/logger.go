package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger on stdout. Unknown levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level, using info")
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}
