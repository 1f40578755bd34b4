// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	gossh "golang.org/x/crypto/ssh"

	"github.com/embedcli/embedcli/internal/console"
	"github.com/embedcli/embedcli/internal/testutil"
	"github.com/embedcli/embedcli/pkg/types"
)

func testConsole() *console.Console {
	return console.New(console.Identity{
		ProductName:     "SSH Board",
		Copyright:       "(c) Test",
		BoardVersion:    "rev-A",
		FirmwareVersion: "4.5.6",
	}, console.DefaultOptions())
}

func startServer(t *testing.T, cfg Config, c *console.Console) *Server {
	t.Helper()

	cfg.HostKeyPath = filepath.Join(t.TempDir(), "host_ed25519")
	cfg.ShutdownTimeout = 2 * time.Second
	srv := New(cfg, c, WithLogger(log.New(io.Discard)))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, srv) })
	return srv
}

func dial(t *testing.T, srv *Server, password string) *gossh.Client {
	t.Helper()

	client, err := gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            "operator",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// lockedBuffer collects session output written from the client's goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, out *lockedBuffer, want string) {
	t.Helper()
	testutil.WaitForOutput(t, 5*time.Second, out.String, want)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := New(DefaultConfig(), testConsole(), WithLogger(log.New(io.Discard)))
	if srv.State() != StateCreated {
		t.Fatalf("State() = %s, want created", srv.State())
	}
	if srv.Address() != "" || srv.Port() != 0 {
		t.Error("address should be empty before Start")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !srv.IsRunning() {
		t.Errorf("State() = %s, want running", srv.State())
	}
	if srv.Port() == 0 {
		t.Error("Port() should report the bound port")
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
	if srv.State() != StateStopped || !srv.State().IsTerminal() {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if _, ok := <-srv.Err(); ok {
		t.Error("Err() channel should be closed after Stop")
	}
}

func TestServerStartFailures(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		srv := New(DefaultConfig(), testConsole(), WithLogger(log.New(io.Discard)))
		if err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Start() = %v, want context.Canceled", err)
		}
		if srv.State() != StateFailed {
			t.Errorf("State() = %s, want failed", srv.State())
		}
		if err := srv.Wait(); !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() = %v, want the start failure", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Port = 70000
		cfg.MaxSessions = -1
		srv := New(cfg, testConsole(), WithLogger(log.New(io.Discard)))

		err := srv.Start(context.Background())
		if !errors.Is(err, ErrInvalidSSHConfig) {
			t.Fatalf("Start() = %v, want ErrInvalidSSHConfig", err)
		}
		var cfgErr *InvalidSSHConfigError
		if !errors.As(err, &cfgErr) || len(cfgErr.FieldErrors) != 2 {
			t.Fatalf("want two field errors, got %v", err)
		}
		if !errors.Is(cfgErr.FieldErrors[0], types.ErrInvalidListenPort) {
			t.Errorf("first field error = %v, want ErrInvalidListenPort", cfgErr.FieldErrors[0])
		}
	})

	t.Run("blank host", func(t *testing.T) {
		t.Parallel()

		if err := HostAddress("  ").Validate(); !errors.Is(err, ErrInvalidHostAddress) {
			t.Errorf("Validate() = %v, want ErrInvalidHostAddress", err)
		}
	})
}

func TestServerInteractiveSession(t *testing.T) {
	t.Parallel()

	c := testConsole()
	cfg := DefaultConfig()
	cfg.Password = "s3cret"
	cfg.Echo = false
	srv := startServer(t, cfg, c)
	client := dial(t, srv, "s3cret")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession() = %v", err)
	}
	defer func() { _ = sess.Close() }()

	var out lockedBuffer
	sess.Stdout = &out
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.RequestPty("xterm", 24, 80, gossh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty() = %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() = %v", err)
	}

	waitFor(t, &out, console.MsgReady+"\r\n"+console.Prompt)
	if c.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions() = %d, want 1", c.ActiveSessions())
	}

	if _, err := io.WriteString(stdin, "version\r"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, &out, "Firmware Version : 4.5.6\r\n")

	if _, err := io.WriteString(stdin, "save\r"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, &out, console.MsgNotConfigMode)
}

func TestServerRunsCommandWithoutTerminal(t *testing.T) {
	t.Parallel()

	srv := startServer(t, DefaultConfig(), testConsole())
	client := dial(t, srv, "")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession() = %v", err)
	}
	defer func() { _ = sess.Close() }()

	out, err := sess.Output("version")
	if err != nil {
		t.Fatalf("Output(version) = %v", err)
	}
	if !strings.Contains(string(out), "Board Version    : rev-A\r\n") {
		t.Errorf("output = %q", out)
	}
}

func TestServerCommandExitStatus(t *testing.T) {
	t.Parallel()

	srv := startServer(t, DefaultConfig(), testConsole())
	client := dial(t, srv, "")

	tests := []struct {
		name string
		line string
		want int
	}{
		{name: "unknown command", line: "frobnicate", want: int(types.ExitRejected)},
		{name: "line too long", line: "help " + strings.Repeat("x", console.DefaultLineCapacity), want: int(types.ExitRejected)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := client.NewSession()
			if err != nil {
				t.Fatalf("NewSession() = %v", err)
			}
			defer func() { _ = sess.Close() }()

			var exitErr *gossh.ExitError
			if _, err := sess.Output(tt.line); !errors.As(err, &exitErr) || exitErr.ExitStatus() != tt.want {
				t.Errorf("Output(%q) = %v, want exit status %d", tt.line, err, tt.want)
			}
		})
	}
}

func TestServerRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Password = "right"
	srv := startServer(t, cfg, testConsole())

	_, err := gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            "operator",
		Auth:            []gossh.AuthMethod{gossh.Password("wrong")},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err == nil {
		t.Fatal("Dial() with a wrong password should fail")
	}
}

func TestServerSessionLimit(t *testing.T) {
	t.Parallel()

	c := testConsole()
	cfg := DefaultConfig()
	cfg.MaxSessions = 1
	srv := startServer(t, cfg, c)

	open := func() (*gossh.Session, *lockedBuffer) {
		client := dial(t, srv, "")
		sess, err := client.NewSession()
		if err != nil {
			t.Fatalf("NewSession() = %v", err)
		}
		t.Cleanup(func() { _ = sess.Close() })
		out := &lockedBuffer{}
		sess.Stdout = out
		if err := sess.RequestPty("xterm", 24, 80, gossh.TerminalModes{}); err != nil {
			t.Fatalf("RequestPty() = %v", err)
		}
		if err := sess.Shell(); err != nil {
			t.Fatalf("Shell() = %v", err)
		}
		return sess, out
	}

	_, first := open()
	waitFor(t, first, console.Prompt)

	second, out := open()
	waitFor(t, out, "Too many sessions")
	var exitErr *gossh.ExitError
	if err := second.Wait(); !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
		t.Errorf("Wait() = %v, want exit status 1", err)
	}
}
