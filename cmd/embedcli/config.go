// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/embedcli/embedcli/internal/config"
)

// newConfigCommand creates the `embedcli config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage embedcli configuration",
		Long: `Manage embedcli configuration.

Configuration is stored in:
  - Linux: ~/.config/embedcli/config.cue
  - macOS: ~/Library/Application Support/embedcli/config.cue
  - Windows: %APPDATA%\embedcli\config.cue

EMBEDCLI_* environment variables override the file, for example
EMBEDCLI_SSH_PORT=2200.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var initPath string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app.stdout, initPath)
		},
	}
	initCmd.Flags().StringVar(&initPath, "path", "", "where to write the file (default: the config directory)")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, cfgPath, err := app.resolveConfig(ctx)
	if err != nil {
		return err
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	if storagePath, err := cfg.StoragePath(); err == nil && storagePath != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Settings file"), storagePath)
	}

	showSection(w, "identity", [][2]string{
		{"product_name", cfg.Identity.ProductName},
		{"copyright", cfg.Identity.Copyright},
		{"board_version", cfg.Identity.BoardVersion},
		{"firmware_version", cfg.Identity.FirmwareVersion},
		{"build_time", cfg.Identity.BuildTime},
	})
	showSection(w, "console", [][2]string{
		{"line_capacity", strconv.Itoa(cfg.Console.LineCapacity)},
		{"max_tokens", strconv.Itoa(cfg.Console.MaxTokens)},
		{"max_commands", strconv.Itoa(cfg.Console.MaxCommands)},
		{"max_modules", strconv.Itoa(cfg.Console.MaxModules)},
		{"echo", strconv.FormatBool(cfg.Console.Echo)},
		{"poll_interval", cfg.Console.PollInterval.String()},
		{"config_mode", strconv.FormatBool(cfg.Console.ConfigMode)},
	})
	showSection(w, "transport", [][2]string{
		{"kind", cfg.Transport.Kind.String()},
		{"device", cfg.Transport.Device},
	})

	password := ""
	if cfg.SSH.Password != "" {
		password = "********"
	}
	showSection(w, "ssh", [][2]string{
		{"host", cfg.SSH.Host},
		{"port", cfg.SSH.Port.String()},
		{"password", password},
		{"host_key_path", cfg.SSH.HostKeyPath},
		{"require_pty", strconv.FormatBool(cfg.SSH.RequirePTY)},
		{"max_sessions", strconv.Itoa(cfg.SSH.MaxSessions)},
		{"idle_timeout", cfg.SSH.IdleTimeout.String()},
	})
	showSection(w, "storage", [][2]string{
		{"backend", cfg.Storage.Backend.String()},
		{"path", cfg.Storage.Path},
	})
	showSection(w, "log", [][2]string{
		{"level", cfg.Log.Level.String()},
	})

	return nil
}

func showSection(w io.Writer, name string, fields [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render(name))
	for _, f := range fields {
		value := SuccessStyle.Render(f[1])
		if f[1] == "" {
			value = SubtitleStyle.Render("(not set)")
		}
		fmt.Fprintln(w, sectionStyle.Render(f[0]+": "+value))
	}
}

func initConfig(w io.Writer, path string) error {
	written, created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(w, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), written)
		return nil
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), written)
	return nil
}
