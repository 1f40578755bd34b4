// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/embedcli/embedcli/internal/config"
	"github.com/embedcli/embedcli/internal/console"
	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/internal/sshserver"
	"github.com/embedcli/embedcli/internal/transport"
	"github.com/embedcli/embedcli/internal/watch"
)

type serveOptions struct {
	transport  string
	device     string
	configMode bool
	watch      bool
}

func newServeCommand(app *App) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console",
		Long: `Run the console on the configured transport.

With the stdio transport the console runs on this terminal; Ctrl+C exits.
"reboot" restarts the console session with a fresh banner.

Sending SIGUSR1 toggles configuration mode on platforms that have it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, app, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "", "console transport: stdio, device or ssh (overrides config)")
	cmd.Flags().StringVar(&opts.device, "device", "", "serial line or tty used with --transport device")
	cmd.Flags().BoolVar(&opts.configMode, "config-mode", false, "start in configuration mode")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "reload identity and saved settings when their files change")

	return cmd
}

// applyServeFlags overrides cfg with the flags the user set explicitly.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts serveOptions) error {
	if opts.transport != "" {
		cfg.Transport.Kind = config.TransportKind(opts.transport)
	}
	if opts.device != "" {
		cfg.Transport.Device = opts.device
		if opts.transport == "" {
			cfg.Transport.Kind = config.TransportDevice
		}
	}
	if cmd.Flags().Changed("config-mode") {
		cfg.Console.ConfigMode = opts.configMode
	}
	if err := cfg.Validate(); err != nil {
		return issue.NewErrorContext().
			WithOperation("apply command line flags").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return nil
}

func runServe(cmd *cobra.Command, app *App, opts serveOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, cfgPath, err := app.resolveConfig(ctx)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg, opts); err != nil {
		return err
	}

	logger := app.newLogger(cfg.Log.Level)
	b, err := newBoard(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("closing settings store", "error", err)
		}
	}()

	stopSignals := notifyConfigModeToggle(b.console, logger)
	defer stopSignals()

	if opts.watch {
		startWatcher(ctx, app, b, absPath(cfgPath), logger)
	}

	switch cfg.Transport.Kind {
	case config.TransportSSH:
		return serveSSH(ctx, b, cfg, logger)
	case config.TransportDevice:
		dev, err := transport.OpenDevice(cfg.Transport.Device)
		if err != nil {
			return deviceError(cfg.Transport.Device, err)
		}
		defer dev.Close()
		logger.Info("console running", "device", dev.Name(), "raw", dev.IsRaw())
		return serveSessions(ctx, b, dev, cfg.Console.PollInterval)
	default:
		dev, err := transport.Stdio(transport.WithInterrupt(cancel))
		if err != nil {
			return deviceError("stdin", err)
		}
		defer dev.Close()
		return serveSessions(ctx, b, dev, cfg.Console.PollInterval)
	}
}

// serveSessions runs console sessions on t one after the other. A session
// halted by "reboot" is replaced by a fresh one; the loop ends when ctx is
// done or the input is exhausted.
func serveSessions(ctx context.Context, b *board, t console.Transport, interval time.Duration) error {
	for {
		s := b.console.NewSession(t)
		s.Init()
		err := s.Run(ctx, interval)
		s.Close()

		switch {
		case errors.Is(err, console.ErrHalted):
			b.logger.Debug("console session restarted")
		case errors.Is(err, console.ErrTransportClosed):
			return nil
		default:
			return err
		}
	}
}

func serveSSH(ctx context.Context, b *board, cfg *config.Config, logger *log.Logger) error {
	srv := sshserver.New(sshserver.Config{
		Host:         sshserver.HostAddress(cfg.SSH.Host),
		Port:         cfg.SSH.Port,
		Password:     cfg.SSH.Password,
		HostKeyPath:  cfg.SSH.HostKeyPath,
		RequirePTY:   cfg.SSH.RequirePTY,
		Echo:         cfg.Console.Echo,
		MaxSessions:  cfg.SSH.MaxSessions,
		PollInterval: cfg.Console.PollInterval,
		IdleTimeout:  cfg.SSH.IdleTimeout,
	}, b.console, sshserver.WithLogger(logger.WithPrefix("ssh-server")))

	if err := srv.Start(ctx); err != nil {
		return issue.NewErrorContext().
			WithOperation("start ssh console").
			WithResource(fmt.Sprintf("%s:%d", cfg.SSH.Host, cfg.SSH.Port)).
			WithIssue(issue.SSHStartFailedId).
			Wrap(err).
			BuildError()
	}
	logger.Info("ssh console listening", "address", srv.Address())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srv.Err():
	}
	if err := srv.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func deviceError(path string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation("open console device").
		WithResource(path)
	switch {
	case errors.Is(err, transport.ErrNotTerminal):
		ec.WithIssue(issue.NotATerminalId).
			WithSuggestion("Use --transport stdio to read from a pipe or file")
	case errors.Is(err, fs.ErrPermission):
		ec.WithIssue(issue.PermissionDeniedId)
	default:
		ec.WithIssue(issue.DeviceOpenFailedId)
	}
	return ec.Wrap(err).BuildError()
}

// startWatcher reloads the board when the configuration file or the TOML
// settings file changes. Failing to watch is not fatal.
func startWatcher(ctx context.Context, app *App, b *board, cfgPath string, logger *log.Logger) {
	paths := b.watchPaths(cfgPath)
	if len(paths) == 0 {
		return
	}

	opts := app.loadOptions()
	w, err := watch.New(watch.Config{
		Paths:  paths,
		Logger: logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, changed []string) error {
			return b.onFilesChanged(ctx, app.Config, opts, cfgPath, changed)
		},
	})
	if err != nil {
		logger.Warn("file watching disabled", "error", err)
		return
	}

	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Warn("file watcher stopped", "error", err)
		}
	}()
}
