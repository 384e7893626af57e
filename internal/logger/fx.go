package logger

import (
	"context"

	"github.com/cielolabs/costwatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the logger from the app config, stamping the
// configured service name on every entry.
func NewFromConfig(cfg config.Config) (*zap.Logger, error) {
	return New(cfg.AppName, cfg.Logger.Level)
}

// flushOnShutdown drains buffered entries before the process exits so the
// tail of an aborted import run is not lost.
func flushOnShutdown(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

var Module = fx.Module("logger",
	fx.Provide(NewFromConfig),
	fx.Invoke(flushOnShutdown),
)
