// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Stopper is implemented by servers and watchers with a Stop method.
type Stopper interface {
	Stop() error
}

// MustChdir changes the current working directory to dir.
// It returns a cleanup function that restores the original directory.
func MustChdir(t testing.TB, dir string) func() {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	return func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore directory to %s: %v", originalWd, err)
		}
	}
}

// MustSetenv sets the environment variable key to value.
// It returns a cleanup function that restores the original value (or unsets it).
func MustSetenv(t testing.TB, key, value string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	return func() {
		if hadValue {
			if err := os.Setenv(key, originalValue); err != nil {
				t.Errorf("failed to restore env %s: %v", key, err)
			}
			return
		}
		if err := os.Unsetenv(key); err != nil {
			t.Errorf("failed to unset env %s: %v", key, err)
		}
	}
}

// MustWriteFile writes content to dir/name, creating dir if needed, and
// returns the full path.
func MustWriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// MustStop stops s. Shutdown errors during cleanup are logged, not fatal.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}

// Eventually polls cond every few milliseconds until it holds or timeout
// elapses, then fails the test with msg.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %s: %s", timeout, msg)
}

// WaitForOutput polls output until it contains want. It returns everything
// read so far.
func WaitForOutput(t testing.TB, timeout time.Duration, output func() string, want string) string {
	t.Helper()
	var got string
	Eventually(t, timeout, func() bool {
		got = output()
		return strings.Contains(got, want)
	}, "waiting for output "+want)
	return got
}
