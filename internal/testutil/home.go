// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the platform's home variable at dir (USERPROFILE on
// Windows, HOME elsewhere) and returns a cleanup function restoring it.
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// SetConfigHome points the platform's per-user config root at dir
// (APPDATA on Windows, XDG_CONFIG_HOME elsewhere). macOS always derives
// its config root from HOME, so SetHomeDir is set as well.
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	restoreHome := SetHomeDir(t, dir)
	var restore func()
	switch runtime.GOOS {
	case "windows":
		restore = MustSetenv(t, "APPDATA", dir)
	default:
		restore = MustSetenv(t, "XDG_CONFIG_HOME", dir)
	}
	return func() {
		restore()
		restoreHome()
	}
}
