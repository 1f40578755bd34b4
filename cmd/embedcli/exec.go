// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/embedcli/embedcli/internal/console"
	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/internal/transport"
	"github.com/embedcli/embedcli/pkg/types"
)

var (
	errLineRejected   = errors.New("line too long or session halted")
	errUnknownCommand = errors.New("command not found")
)

func newExecCommand(app *App) *cobra.Command {
	var configMode bool

	cmd := &cobra.Command{
		Use:   "exec <line>...",
		Short: "Run one console line and print its output",
		Long: `Run one console line through a fresh session and print its output.

The arguments are joined with single spaces to form the line, so quoting
works as on the console:

  embedcli exec netconfig show
  embedcli exec --config-mode 'netconfig ip "10.0.0.5"'

Exit status is 2 when the console rejects the line or knows no such
command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, app, strings.Join(args, " "), configMode)
		},
	}

	cmd.Flags().BoolVar(&configMode, "config-mode", false, "run the line in configuration mode")

	return cmd
}

func runExec(cmd *cobra.Command, app *App, line string, configMode bool) error {
	cfg, _, err := app.resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("config-mode") {
		cfg.Console.ConfigMode = configMode
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

	pipe := transport.NewPipe()
	s := b.console.NewSession(pipe, console.WithEcho(false))
	outcome := s.ExecuteLine(line)
	fmt.Fprint(app.stdout, hostLineEndings(pipe.Output()))

	var cause error
	switch outcome {
	case console.OutcomeRejected:
		cause = errLineRejected
	case console.OutcomeNotFound:
		cause = errUnknownCommand
	default:
		return nil
	}
	return &ExitError{
		Code: types.ExitRejected,
		Err: issue.NewErrorContext().
			WithOperation("run console line").
			WithResource(line).
			WithIssue(issue.LineRejectedId).
			Wrap(cause).
			BuildError(),
	}
}

// hostLineEndings turns console CR LF pairs into plain newlines and makes
// sure the output ends with one.
func hostLineEndings(out string) string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
