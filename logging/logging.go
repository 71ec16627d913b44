// Package logging builds the zap loggers used by the binaries.
//
// Console output honours the configured level. When an error file is
// given, warnings and errors are also appended to it regardless of the
// console level.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Levels accepted by ParseLevel, lowest first.
var Levels = []string{"debug", "info", "warn", "error"}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range Levels {
		if s == l {
			return zapcore.ParseLevel(s)
		}
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q, want one of %s", s, strings.Join(Levels, "|"))
}

// New returns a console logger at level.
func New(level string) (*zap.Logger, error) {
	return NewWithErrorFile(level, "")
}

// NewWithErrorFile returns a console logger at level that also appends
// warn-and-above entries as JSON to errorFile. An empty errorFile disables
// the file sink.
func NewWithErrorFile(level, errorFile string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	if errorFile == "" {
		return zap.New(console), nil
	}

	sink, _, err := zap.Open(errorFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		zapcore.WarnLevel,
	)
	return zap.New(zapcore.NewTee(console, file)), nil
}
