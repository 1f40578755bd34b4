// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// StateIdle means the line buffer is empty and a prompt is showing.
	StateIdle State = iota
	// StateAccumulating means bytes of a line are arriving.
	StateAccumulating
	// StateLineReady means a terminator was seen and the line is being
	// dispatched.
	StateLineReady
	// StateHalted means "reboot" handed control to the reset hook. A halted
	// session ignores further ticks.
	StateHalted
)

const (
	// OutcomeRejected means the line was not dispatched: the session is
	// halted or the line could not have fit the line buffer.
	OutcomeRejected Outcome = iota
	// OutcomeEmpty means the line was empty and nothing was dispatched.
	OutcomeEmpty
	// OutcomeNotFound means no command matched the first token.
	OutcomeNotFound
	// OutcomeGated means the command needs configuration mode.
	OutcomeGated
	// OutcomeHandled means a handler ran.
	OutcomeHandled
)

type (
	// State is the position of a Session in its input cycle.
	State int

	// Outcome is what became of one dispatched line.
	Outcome int

	// SessionOption customises a Session.
	SessionOption func(*Session)

	// Session is one interpreter loop bound to one transport. It owns its
	// line buffer and token array; the registry and mode flag live on the
	// Console. A Session is not safe for concurrent use.
	Session struct {
		console   *Console
		transport Transport
		line      *Assembler
		tokens    []string
		state     State
		echo      bool
		active    bool
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateLineReady:
		return "line-ready"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeGated:
		return "gated"
	case OutcomeHandled:
		return "handled"
	default:
		return "unknown"
	}
}

// WithEcho overrides the console's echo setting for one session.
func WithEcho(on bool) SessionOption {
	return func(s *Session) { s.echo = on }
}

// NewSession binds a new session to t. Call Init before the first Tick.
func (c *Console) NewSession(t Transport, opts ...SessionOption) *Session {
	s := &Session{
		console:   c,
		transport: t,
		line:      NewAssembler(c.opts.LineCapacity),
		echo:      c.opts.Echo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Console returns the console the session belongs to.
func (s *Session) Console() *Console { return s.console }

// State returns the current input state.
func (s *Session) State() State { return s.state }

// Tokens returns the tokens of the line being dispatched. The array is
// rebuilt for every line and emptied by the next prompt.
func (s *Session) Tokens() []string { return s.tokens }

// Reserve claims the session's slot in the console's session count ahead
// of Init. It reports false when limit sessions are already active; a limit
// of 0 means unlimited.
func (s *Session) Reserve(limit int) bool {
	if s.active {
		return true
	}
	if !s.console.acquireSession(limit) {
		return false
	}
	s.active = true
	return true
}

// Init writes the banner and the first prompt.
func (s *Session) Init() {
	s.Reserve(0)
	s.sayHello()
	s.transport.WriteLine(lineEnd + MsgReady)
	s.prompt()
}

// Close releases the session's slot in the console's session count.
func (s *Session) Close() {
	if s.active {
		s.active = false
		s.console.sessions.Add(-1)
	}
}

// Tick reads at most one byte and, when it completes a line, dispatches it.
// It reports whether a byte was consumed.
func (s *Session) Tick() bool {
	if s.state == StateHalted || !s.transport.IsByteAvailable() {
		return false
	}

	b, err := s.transport.ReadByte()
	if err != nil {
		slog.Debug("console read failed", "error", err)
		return false
	}

	switch s.line.Feed(b) {
	case EventNone:
		s.state = StateAccumulating
		if s.echo && b >= 0x20 && b < keyDelete {
			_ = s.transport.WriteByte(b)
		}
	case EventErase:
		if s.echo {
			s.transport.WriteString("\b \b")
		}
		if s.line.Len() == 0 {
			s.state = StateIdle
		}
	case EventIgnored:
	case EventEmpty:
		s.prompt()
	case EventOverflow:
		slog.Debug("console line overflow, input dropped", "capacity", s.line.Cap())
		s.prompt()
	case EventLine:
		s.state = StateLineReady
		s.transport.WriteString(lineEnd)
		s.dispatch(s.line.Line())
		if s.state != StateHalted {
			s.prompt()
		}
	}
	return true
}

// Run ticks the session until ctx is done, the session halts or the
// transport runs dry. When no byte is waiting it sleeps for interval.
// It returns nil on cancellation, ErrHalted after "reboot" and
// ErrTransportClosed when the transport's input ended.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var done <-chan struct{}
	if dn, ok := s.transport.(doneNotifier); ok {
		done = dn.Done()
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.state == StateHalted {
			return ErrHalted
		}
		if s.Tick() {
			continue
		}

		select {
		case <-done:
			if !s.transport.IsByteAvailable() {
				return ErrTransportClosed
			}
			continue
		default:
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil
		case <-done:
		case <-timer.C:
		}
	}
}

// Execute dispatches line as if it had been typed and terminated, without
// echo, banner or prompt. It reports false when the session is halted or
// when the line is too long to have fit the line buffer.
func (s *Session) Execute(line string) bool {
	return s.ExecuteLine(line) != OutcomeRejected
}

// ExecuteLine is Execute reporting what became of the line.
func (s *Session) ExecuteLine(line string) Outcome {
	if s.state == StateHalted || len(line) > s.line.Cap()-2 {
		return OutcomeRejected
	}
	if line == "" {
		return OutcomeEmpty
	}

	s.state = StateLineReady
	outcome := s.dispatch([]byte(line))
	if s.state != StateHalted {
		s.state = StateIdle
	}
	return outcome
}

func (s *Session) prompt() {
	s.line.Reset()
	s.tokens = s.tokens[:0]
	s.state = StateIdle
	s.transport.WriteString(Prompt)
}

// dispatch tokenizes line, resolves the command and applies the mode gate.
func (s *Session) dispatch(line []byte) Outcome {
	s.tokens = Tokenize(line, s.console.opts.MaxTokens, s.line.Cap())
	if len(s.tokens) == 0 {
		s.transport.WriteString(MsgNotFound)
		return OutcomeNotFound
	}

	d, _, ok := s.console.registry.Lookup(s.tokens[0])
	if !ok {
		s.transport.WriteString(MsgNotFound)
		return OutcomeNotFound
	}

	if d.Gate != nil && d.Gate(s.tokens) && !s.console.ConfigMode() {
		s.SendLine(MsgNotConfigMode)
		return OutcomeGated
	}

	s.invoke(d, s.tokens)
	return OutcomeHandled
}

// invoke runs a handler, turning a panic into an error message so a faulty
// external handler cannot take the session down.
func (s *Session) invoke(d Descriptor, args []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("console handler panicked", "command", d.Name, "panic", fmt.Sprint(r))
			s.SendTagged(SeverityError, "Command "+d.Name+" failed")
		}
	}()
	d.Handler.Handle(&Call{Session: s, Device: d.Device, Args: args})
}

// halt marks the session as handed over to the reset hook.
func (s *Session) halt() {
	s.state = StateHalted
	s.line.Reset()
}
