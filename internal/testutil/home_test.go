// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"testing"
)

func homeVar() string {
	if runtime.GOOS == "windows" {
		return "USERPROFILE"
	}
	return "HOME"
}

func TestSetHomeDir(t *testing.T) {
	tmpDir := t.TempDir()
	envVar := homeVar()
	original, hadOriginal := os.LookupEnv(envVar)

	cleanup := SetHomeDir(t, tmpDir)
	if got := os.Getenv(envVar); got != tmpDir {
		t.Errorf("%s = %q, want %q", envVar, got, tmpDir)
	}

	cleanup()
	got, has := os.LookupEnv(envVar)
	if has != hadOriginal || got != original {
		t.Errorf("after cleanup %s = %q, want %q", envVar, got, original)
	}
}

func TestSetHomeDir_WithTCleanup(t *testing.T) {
	tmpDir := t.TempDir()
	envVar := homeVar()
	original := os.Getenv(envVar)

	t.Run("subtest", func(t *testing.T) {
		t.Cleanup(SetHomeDir(t, tmpDir))

		if got := os.Getenv(envVar); got != tmpDir {
			t.Errorf("%s = %q, want %q", envVar, got, tmpDir)
		}
	})

	if got := os.Getenv(envVar); got != original {
		t.Errorf("after subtest %s = %q, want %q", envVar, got, original)
	}
}

func TestSetConfigHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is not consulted on Windows")
	}

	tmpDir := t.TempDir()
	original, hadOriginal := os.LookupEnv("XDG_CONFIG_HOME")

	cleanup := SetConfigHome(t, tmpDir)
	if got := os.Getenv("XDG_CONFIG_HOME"); got != tmpDir {
		t.Errorf("XDG_CONFIG_HOME = %q, want %q", got, tmpDir)
	}
	if got := os.Getenv("HOME"); got != tmpDir {
		t.Errorf("HOME = %q, want %q", got, tmpDir)
	}

	cleanup()
	if got, has := os.LookupEnv("XDG_CONFIG_HOME"); has != hadOriginal || got != original {
		t.Errorf("after cleanup XDG_CONFIG_HOME = %q, want %q", got, original)
	}
}
