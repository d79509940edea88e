// Package logger configures structured logging for the bot. Levels come
// from logs_config.json per named logger; output goes to stdout and, when a
// file path is configured, to a rotated log file.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors one handler block of logs_config.json.
type Config struct {
	Level      string // DEBUG, INFO, WARNING, ERROR, CRITICAL
	File       string // empty = stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var root = newRoot(Config{Level: "INFO"})

// Init reconfigures the root logger. Called once at startup after config
// load; before that the INFO default applies.
func Init(cfg Config) {
	root = newRoot(cfg)
}

// Named returns a component-scoped entry, e.g. logger.Named("trader").
func Named(component string) *logrus.Entry {
	return root.WithField("component", component)
}

func newRoot(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(ParseLevel(cfg.Level))

	var writer io.Writer = os.Stdout
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stdout, rotated)
	}
	log.SetOutput(writer)
	return log
}

// ParseLevel maps the config level names onto logrus levels. CRITICAL maps
// to ErrorLevel so a config value can never make the logger itself exit the
// process.
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR", "CRITICAL":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
