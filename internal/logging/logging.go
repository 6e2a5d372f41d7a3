package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"gammascout/internal/config"
)

// Logger bundles the configured logger with the sinks it owns.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New builds the logger for one run. Console output goes to console, and
// when a log file is configured every event is also appended there.
func New(cfg config.LoggingConfig, console io.Writer) (*Logger, error) {
	level, err := cfg.GetLevel()
	if err != nil {
		return nil, err
	}

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.TimeOnly,
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		w = zerolog.MultiLevelWriter(w, file)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: logger, file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
