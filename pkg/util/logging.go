package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger initializing default logger, errors and everything else
// are split into separate sinks: stderr/stdout without a log directory,
// errors.log/standard.log inside it otherwise (mirrored to the console
// in debug mode)
func DefaultLogger(debugMode bool, logDir string) (*zap.Logger, error) {
	logDir = strings.TrimSpace(logDir)

	minLevel := zapcore.InfoLevel
	if debugMode {
		minLevel = zapcore.DebugLevel
	}

	//---------------------------------------------------------------------------
	// log enablers and conjunction
	//---------------------------------------------------------------------------
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= minLevel && lvl < zapcore.ErrorLevel
	})

	console := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	stderr := zapcore.Lock(zapcore.AddSync(os.Stderr))
	stdout := zapcore.Lock(zapcore.AddSync(os.Stdout))

	if logDir == "" {
		return zap.New(zapcore.NewTee(
			zapcore.NewCore(console, stderr, highPriority),
			zapcore.NewCore(console, stdout, lowPriority),
		)), nil
	}

	if err := CreateDirectoryIfNotExists(logDir, 0755); err != nil {
		return nil, err
	}

	errFile, err := openLogFile(logDir, "errors.log")
	if err != nil {
		return nil, err
	}

	stdFile, err := openLogFile(logDir, "standard.log")
	if err != nil {
		return nil, err
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, errFile, highPriority),
		zapcore.NewCore(encoder, stdFile, lowPriority),
	}

	if debugMode {
		cores = append(cores,
			zapcore.NewCore(console, stderr, highPriority),
			zapcore.NewCore(console, stdout, lowPriority),
		)
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func openLogFile(dir, name string) (zapcore.WriteSyncer, error) {
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create log file %s", path)
	}

	return zapcore.Lock(zapcore.AddSync(f)), nil
}
