package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is built.
type Options struct {
	Development bool
	Level       string // debug, info, warn, error; empty keeps the preset default
	Encoding    string // json or console; empty keeps the preset default
	Service     string // added to every entry as "service" when set
}

// Build creates a zap logger from options. Development mode uses the
// colored console preset and debug level unless Level says otherwise.
func Build(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	switch opts.Encoding {
	case "":
	case "json", "console":
		cfg.Encoding = opts.Encoding
	default:
		return nil, fmt.Errorf("unknown log encoding %q", opts.Encoding)
	}

	if opts.Service != "" {
		cfg.InitialFields = map[string]any{"service": opts.Service}
	}

	return cfg.Build()
}
