// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/embedcli/embedcli/internal/issue"
	"github.com/embedcli/embedcli/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{name: "nil", err: nil, want: types.ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: types.ExitFailure},
		{name: "exit error", err: &ExitError{Code: types.ExitRejected}, want: types.ExitRejected},
		{name: "wrapped exit error", err: fmt.Errorf("exec: %w", &ExitError{Code: types.ExitRejected}), want: types.ExitRejected},
		{name: "out of range", err: &ExitError{Code: 300}, want: types.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeOf(tt.err); got != tt.want {
				t.Errorf("exitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("line rejected")
	err := &ExitError{Code: types.ExitRejected, Err: cause}
	if err.Error() != "line rejected" || !errors.Is(err, cause) {
		t.Errorf("ExitError = %q, unwrap mismatch", err.Error())
	}
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	ae := issue.NewErrorContext().
		WithOperation("open console device").
		WithResource("/dev/ttyUSB9").
		WithSuggestion("Check the cable").
		Wrap(errors.New("no such file")).
		BuildError()

	got := formatErrorForDisplay(fmt.Errorf("serve: %w", ae), false)
	for _, want := range []string{"open console device", "/dev/ttyUSB9", "Check the cable"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatErrorForDisplay() = %q, missing %q", got, want)
		}
	}
	if got := formatErrorForDisplay(errors.New("plain"), true); got != "plain" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}
}

func TestRenderIssueOnlyWhenVerbose(t *testing.T) {
	t.Parallel()

	err := issue.NewErrorContext().
		WithOperation("start ssh console").
		WithIssue(issue.SSHStartFailedId).
		BuildError()

	var quiet bytes.Buffer
	renderIssue(&quiet, err, false)
	if quiet.Len() != 0 {
		t.Errorf("non-verbose output = %q, want nothing", quiet.String())
	}

	var loud bytes.Buffer
	renderIssue(&loud, err, true)
	if !strings.Contains(loud.String(), "SSH") {
		t.Errorf("verbose output does not explain the issue:\n%s", loud.String())
	}

	var none bytes.Buffer
	renderIssue(&none, errors.New("plain"), true)
	if none.Len() != 0 {
		t.Errorf("plain error rendered %q", none.String())
	}
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	for _, name := range []string{"serve", "exec", "config", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}
