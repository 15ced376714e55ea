package logging

import (
	"os"
	"strings"

	"aiconsole/internal/config"

	log "github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger.
func Setup(cfg config.LoggingConfig) {
	log.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
