// Package bootstrap holds the startup steps shared by every livemart binary.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/logger"
)

// Load reads .env (when present) and the environment, then returns the
// config and a logger built from it. kind is recorded as the service kind
// and used as the logger's service name.
func Load(kind string) (*config.Config, *logger.Logger) {
	return load(kind, os.Stderr, os.Exit)
}

func load(kind string, out io.Writer, exit func(int)) (*config.Config, *logger.Logger) {
	early := logger.New(logger.Options{ServiceName: kind, Output: out})
	if err := godotenv.Load(); err != nil {
		early.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		early.Error(context.Background(), "failed to load config", err)
		exit(1)
		return nil, early
	}
	cfg.Service.Kind = kind

	logg := logger.New(logger.Options{
		ServiceName: kind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     strings.EqualFold(cfg.App.LogFormat, "console"),
		Output:      out,
	})
	return cfg, logg
}

// Must exits the process when a required resource failed to start.
func Must(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

// Close runs closer and logs a failure instead of returning it. Use with defer.
func Close(ctx context.Context, logg *logger.Logger, resource string, closer func() error) {
	if err := closer(); err != nil {
		logg.Error(ctx, fmt.Sprintf("error closing %s", resource), err)
	}
}

// Context annotates ctx with the fields every process logs.
func Context(ctx context.Context, logg *logger.Logger, cfg *config.Config) context.Context {
	return logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
}
