// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to stdout at the given level.
func New(level zapcore.Level) *zap.Logger {
	return NewWithWriter(level, colorable.NewColorableStdout(), true)
}

// NewWithWriter returns a console logger writing to w. Level names are
// colored only when color is set.
func NewWithWriter(level zapcore.Level, w io.Writer, color bool) *zap.Logger {
	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.RFC3339TimeEncoder
	pe.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		pe.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	consoleEncoder := zapcore.NewConsoleEncoder(pe)

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(w), level)
	return zap.New(core)
}

// ParseLevel parses a level name such as "debug" or "warn". Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// NewFromString is New with a level name.
func NewFromString(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return New(lvl), nil
}
