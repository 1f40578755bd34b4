// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/logging"

	"github.com/embedcli/embedcli/internal/console"
	"github.com/embedcli/embedcli/internal/transport"
	"github.com/embedcli/embedcli/pkg/types"
)

const (
	defaultHost            = "127.0.0.1"
	defaultStartupTimeout  = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type (
	// Config holds immutable configuration for the SSH server.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host HostAddress
		// Port is the port to listen on (0 = auto-select).
		Port ListenPort
		// Password is required from every client when non-empty. When empty
		// the server accepts any client without authentication.
		Password string
		// HostKeyPath is where the host key is read from, or generated on
		// first start. When empty an ephemeral key is generated per start.
		HostKeyPath string
		// RequirePTY rejects interactive sessions that did not request a
		// terminal. Sessions that carry a command never need one.
		RequirePTY bool
		// Echo makes interactive sessions echo typed bytes.
		Echo bool
		// MaxSessions caps concurrent console sessions (0 = unlimited).
		MaxSessions int
		// PollInterval is the console session idle poll interval.
		PollInterval time.Duration
		// IdleTimeout closes connections without traffic (0 = never).
		IdleTimeout time.Duration
		// StartupTimeout is the max time to wait for the server to be ready.
		StartupTimeout time.Duration
		// ShutdownTimeout bounds the graceful part of Stop.
		ShutdownTimeout time.Duration
	}

	// Option customises a Server.
	Option func(*Server)

	// Server serves console sessions over SSH.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		cfg     Config
		console *console.Console
		life    *lifecycle

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		logger *log.Logger
	}
)

// DefaultConfig returns a loopback configuration on an automatically
// selected port.
func DefaultConfig() Config {
	return Config{
		Host:            defaultHost,
		RequirePTY:      true,
		Echo:            true,
		PollInterval:    console.DefaultPollInterval,
		StartupTimeout:  defaultStartupTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Validate checks every field and returns an *InvalidSSHConfigError listing
// the problems, or nil.
func (c Config) Validate() error {
	var errs []error
	if err := c.Host.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("max sessions %d must not be negative", c.MaxSessions))
	}
	if len(errs) > 0 {
		return &InvalidSSHConfigError{FieldErrors: errs}
	}
	return nil
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server handing out sessions of c.
// The server is not started; call Start() to begin accepting connections.
func New(cfg Config, c *console.Console, opts ...Option) *Server {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = console.DefaultPollInterval
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:     cfg,
		console: c,
		life:    newLifecycle(),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ssh-server",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the SSH server and blocks until either:
//   - The server is ready to accept connections (returns nil)
//   - The server fails to start (returns error)
//   - The context is cancelled (returns context error)
//   - The startup timeout is exceeded (returns error)
//
// After Start() returns nil, use Err() to monitor for runtime errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		s.life.toFailed(err)
		return err
	}
	if err := s.life.toStarting(ctx); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	addr := net.JoinHostPort(s.cfg.Host.String(), s.cfg.Port.String())
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.life.toFailed(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.life.lastError()
	}

	srv, err := wish.NewServer(s.serverOptions(addr)...)
	if err != nil {
		_ = listener.Close()
		s.life.toFailed(fmt.Errorf("failed to create SSH server: %w", err))
		return s.life.lastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.life.wg.Add(1)
	go s.serve()

	select {
	case <-s.life.startedCh:
		s.logger.Info("SSH server started", "address", s.Address())
		return nil
	case err := <-s.life.errCh:
		s.life.toFailed(err)
		return err
	case <-startupCtx.Done():
		s.life.toFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.life.lastError()
	}
}

func (s *Server) serverOptions(addr string) []ssh.Option {
	opts := []ssh.Option{wish.WithAddress(addr)}

	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	if s.cfg.Password != "" {
		opts = append(opts,
			wish.WithPasswordAuth(s.passwordHandler),
			wish.WithPublicKeyAuth(s.publicKeyHandler),
		)
	}
	if s.cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(s.cfg.IdleTimeout))
	}

	// The last middleware runs first.
	mw := []wish.Middleware{s.consoleMiddleware()}
	if s.cfg.RequirePTY {
		mw = append(mw, s.commandBypass(activeterm.Middleware()))
	}
	mw = append(mw, logging.MiddlewareWithLogger(s.logger))
	return append(opts, wish.WithMiddleware(mw...))
}

// Stop gracefully stops the SSH server.
// It blocks until all connections are closed or the shutdown timeout is reached.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *Server) Stop() error {
	if !s.life.toStopping() {
		s.life.wg.Wait()
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !isClosedConnError(err) {
			s.logger.Error("shutdown error", "error", err)
			_ = s.srv.Close()
			shutdownErr = err
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.srvMu.Unlock()

	s.life.wg.Wait()
	s.life.toStopped()
	s.logger.Info("SSH server stopped")
	return shutdownErr
}

// Err returns a channel that receives fatal server errors.
// The channel is closed when the server stops.
func (s *Server) Err() <-chan error { return s.life.errCh }

// State returns the current server state.
func (s *Server) State() State { return s.life.current() }

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Address returns the bound address (host:port), or "" before Start.
func (s *Server) Address() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// Wait blocks until the server stops and returns the failure, if any.
func (s *Server) Wait() error {
	s.life.wg.Wait()
	if s.State() == StateFailed {
		return s.life.lastError()
	}
	return nil
}

func (s *Server) serve() {
	defer s.life.wg.Done()

	s.life.toRunning()

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	err := srv.Serve(listener)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	s.life.sendError(fmt.Errorf("serve error: %w", err))
}

// commandBypass applies mw only to sessions without a command, so
// "ssh host version" works without a terminal.
func (s *Server) commandBypass(mw wish.Middleware) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		guarded := mw(next)
		return func(sess ssh.Session) {
			if len(sess.Command()) > 0 {
				next(sess)
				return
			}
			guarded(sess)
		}
	}
}

func (s *Server) consoleMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if raw := strings.TrimSpace(sess.RawCommand()); raw != "" {
				s.runCommand(sess, raw)
				return
			}
			s.runInteractive(sess)
		}
	}
}

// runInteractive binds a console session to sess until the client leaves,
// the session reboots or the server stops.
func (s *Server) runInteractive(sess ssh.Session) {
	stream := transport.NewStream(sess, sess,
		transport.WithLineEndings(),
		transport.WithInterrupt(func() { _ = sess.Close() }),
	)
	defer func() { _ = stream.Close() }()

	cs := s.console.NewSession(stream, console.WithEcho(s.cfg.Echo))
	if !cs.Reserve(s.cfg.MaxSessions) {
		_, _ = fmt.Fprint(sess, "[ERROR] Too many sessions\r\n")
		_ = sess.Exit(1)
		return
	}
	defer cs.Close()
	cs.Init()

	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()
	stop := context.AfterFunc(s.life.context(), cancel)
	defer stop()

	err := cs.Run(ctx, s.cfg.PollInterval)
	switch {
	case errors.Is(err, console.ErrHalted):
		s.logger.Info("console session rebooted", "user", sess.User(), "remote", sess.RemoteAddr())
	case errors.Is(err, console.ErrTransportClosed):
		s.logger.Debug("console session closed by client", "user", sess.User())
	case err != nil:
		s.logger.Warn("console session ended", "user", sess.User(), "error", err)
	}
	_ = sess.Exit(0)
}

// runCommand executes one line without banner or prompt.
func (s *Server) runCommand(sess ssh.Session, line string) {
	stream := transport.NewStream(strings.NewReader(""), sess)
	defer func() { _ = stream.Close() }()

	cs := s.console.NewSession(stream)
	switch cs.ExecuteLine(line) {
	case console.OutcomeRejected:
		_, _ = fmt.Fprint(sess, console.MsgWrongCommand+"\r\n")
		_ = sess.Exit(int(types.ExitRejected))
	case console.OutcomeNotFound:
		_ = sess.Exit(int(types.ExitRejected))
	default:
		_ = sess.Exit(int(types.ExitSuccess))
	}
}

// passwordHandler compares in constant time.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	ok := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	if !ok {
		s.logger.Warn("Invalid password authentication attempt", "user", ctx.User(), "remote", ctx.RemoteAddr())
	}
	return ok
}

// publicKeyHandler rejects all public key authentication while a password
// is configured.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}

// isClosedConnError checks if the error is a "use of closed network connection" error.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
