// Package app wires configuration, logging, metrics and the unlock gate into a
// runtime the CLI can drive.
package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"walletguard/go-backend/internal/config"
	"walletguard/go-backend/internal/platform/privacylog"
	"walletguard/go-backend/internal/unlock"

	"github.com/prometheus/client_golang/prometheus"
)

// ParseLogLevel maps a config string to a slog level; unknown values fall back to info.
func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)})
	return slog.New(privacylog.WrapHandler(base))
}

func DefaultLogger() *slog.Logger {
	return NewLogger(os.Stderr, "info")
}

type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Gate     *unlock.Gate
}

// NewRuntime validates cfg and builds a gate around prompter.
func NewRuntime(cfg config.Config, prompter unlock.Prompter, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.Logging.Level)
	}
	gateCfg, err := cfg.GateConfig()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	gate := unlock.NewGate(gateCfg, prompter,
		unlock.WithLogger(logger),
		unlock.WithMetrics(unlock.NewMetrics(reg)),
	)
	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Gate:     gate,
	}, nil
}

// WriteMetrics dumps the registry in text exposition format when a textfile
// path is configured.
func (r *Runtime) WriteMetrics() error {
	path := strings.TrimSpace(r.Config.Metrics.Textfile)
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.Registry)
}

func (r *Runtime) Close() {
	if r.Gate != nil {
		r.Gate.Close()
	}
}
