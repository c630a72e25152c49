// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/coled/internal/config"
)

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.EqualFold(s, "warning") {
		return zapcore.WarnLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(s))
}

// New builds a logger from cfg. Logs go to cfg.File when set, otherwise to
// fallback; with neither the logger discards everything. The returned close
// function releases the file.
func New(cfg config.LoggingConfig, fallback io.Writer) (*zap.Logger, func() error, error) {
	noop := func() error { return nil }

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, noop, fmt.Errorf("logging: %w", err)
	}

	var (
		sink    zapcore.WriteSyncer
		closeFn = noop
	)
	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, noop, fmt.Errorf("logging: creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("logging: %w", err)
		}
		sink, closeFn = zapcore.AddSync(f), f.Close
	case fallback != nil:
		sink = zapcore.AddSync(fallback)
	default:
		return zap.NewNop(), noop, nil
	}

	return zap.New(zapcore.NewCore(encoder(cfg.Encoding), sink, level)), closeFn, nil
}

func encoder(encoding string) zapcore.Encoder {
	if encoding == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(ec)
}
