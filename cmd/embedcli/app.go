// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/embedcli/embedcli/internal/config"
	"github.com/embedcli/embedcli/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. Every Cobra handler
	// receives an App reference instead of reaching for globals.
	App struct {
		Config    config.Provider
		configDir types.FilesystemPath
		stdout    io.Writer
		stderr    io.Writer

		// Set from persistent flags.
		verbose bool
		cfgFile string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// ConfigDir replaces the platform config directory.
		ConfigDir types.FilesystemPath
		Stdout    io.Writer
		Stderr    io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config:    deps.Config,
		configDir: deps.ConfigDir,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(a.cfgFile),
		ConfigDirPath:  a.configDir,
	}
}

// resolveConfig loads the configuration and reports which file it came
// from ("" for defaults).
func (a *App) resolveConfig(ctx context.Context) (*config.Config, string, error) {
	return a.Config.Resolve(ctx, a.loadOptions())
}

// newLogger builds the CLI logger and installs it as the slog default so
// internal packages log through it.
func (a *App) newLogger(level config.LogLevel) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "embedcli",
		ReportTimestamp: true,
	})
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if a.verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	slog.SetDefault(slog.New(logger))
	return logger
}
