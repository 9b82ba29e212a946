package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Without a log file it uses zap's
// development console encoder on stderr; with one it writes JSON to the file
// and to stderr. Unknown levels fall back to info.
func New(level string, logFile string) (*zap.Logger, error) {
	return build(level, logFile, true)
}

// NewQuiet is New without the stderr output, for runs that own the terminal.
// Without a log file it returns a no-op logger.
func NewQuiet(level string, logFile string) (*zap.Logger, error) {
	if strings.TrimSpace(logFile) == "" {
		return zap.NewNop(), nil
	}
	return build(level, logFile, false)
}

func build(level, logFile string, console bool) (*zap.Logger, error) {
	var config zap.Config

	if strings.TrimSpace(logFile) != "" {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{logFile}
		if console {
			config.OutputPaths = append(config.OutputPaths, "stderr")
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.OutputPaths = []string{"stderr"}
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	return config.Build()
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
