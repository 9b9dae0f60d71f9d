// Package logging builds the process logger from the log configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// New returns a logger for cfg. An unknown level falls back to info.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	out, err := output(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)
	return log, nil
}

func output(cfg config.LogConfig) (io.Writer, error) {
	switch cfg.Output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log file path not set")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}
