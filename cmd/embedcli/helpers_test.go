// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/embedcli/embedcli/internal/testutil"
	"github.com/embedcli/embedcli/pkg/types"
)

// runCLI executes the command tree with dir as the config directory and
// returns what was written to stdout. Log output is discarded: the logger
// also becomes the process-wide slog default.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := NewApp(Dependencies{
		ConfigDir: types.FilesystemPath(dir),
		Stdout:    &out,
		Stderr:    io.Discard,
	})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeBoardConfig writes config.cue into a fresh config directory with a
// TOML settings store next to it, and returns the directory and the store
// path.
func writeBoardConfig(t *testing.T, extra string) (dir, netPath string) {
	t.Helper()

	dir = t.TempDir()
	netPath = filepath.Join(dir, "netconfig.toml")
	testutil.MustWriteFile(t, dir, "config.cue", `
identity: {
	product_name: "Bench Board"
	board_version: "rev-C"
	firmware_version: "4.5.6"
	build_time: "2024-05-06 07:08:09"
}
storage: {
	backend: "toml"
	path: "`+filepath.ToSlash(netPath)+`"
}
log: level: "error"
`+extra)
	return dir, netPath
}
