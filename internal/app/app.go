package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vk/detsumm/internal/config"
	"github.com/vk/detsumm/internal/ctxlog"
)

// App encapsulates one report run's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	model  *config.Model
	runID  string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, or panics on a
// fatal startup error such as unloadable configuration.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	runID := uuid.NewString()
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	if appConfig.Output != "" {
		model.Report.Output = appConfig.Output
	}
	if model.Report.Output == "" {
		model.Report.Output = "public_html"
	}

	return &App{
		outW:   outW,
		logger: logger,
		model:  model,
		runID:  runID,
	}
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
