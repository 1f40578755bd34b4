// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "embedcli",
		Short: "A line-oriented command console for embedded targets",
		Long: TitleStyle.Render("embedcli") + SubtitleStyle.Render(" - A line-oriented command console for embedded targets") + `

embedcli runs the board console on the process's terminal, on a serial
line, or over SSH. Commands are typed one per line; state-changing
commands require configuration mode.

` + SubtitleStyle.Render("Examples:") + `
  embedcli serve                          Console on this terminal
  embedcli serve --transport device --device /dev/ttyUSB0
  embedcli serve --transport ssh          Console over SSH
  embedcli exec netconfig show            Run one line and exit
  embedcli config show                    Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $HOME/.config/embedcli/config.cue)")

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newExecCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree and exits. It is called by main.main().
func Execute() {
	os.Exit(Run())
}

// Run runs the command tree against os.Args and returns the exit status.
func Run() int {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		renderIssue(app.stderr, err, app.verbose)
		return int(exitCodeOf(err))
	}
	return int(types.ExitSuccess)
}

// exitCodeOf maps err to the process exit status.
func exitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code.Validate() == nil {
		return exitErr.Code
	}
	return types.ExitFailure
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderIssue prints the catalog explanation linked to err, if any. fang
// has already printed the error itself; the longer explanation is only
// shown in verbose mode.
func renderIssue(w io.Writer, err error, verbose bool) {
	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) {
		return
	}
	details := ae.Details()
	if details == nil {
		return
	}
	rendered, renderErr := details.Render("dark")
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}
