// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// StateCreated indicates the server was created but Start() not called.
	StateCreated State = iota
	// StateStarting indicates Start() was called and the listener is being set up.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates Stop() was called and shutdown is in progress.
	StateStopping
	// StateStopped is terminal: the server has stopped.
	StateStopped
	// StateFailed is terminal: the server failed to start or hit a fatal error.
	StateFailed
)

type (
	// State is the lifecycle state of a Server.
	State int32

	// lifecycle tracks the state machine, background goroutines and errors
	// of a single-use server.
	lifecycle struct {
		state atomic.Int32

		mu      sync.Mutex
		lastErr error

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

func newLifecycle() *lifecycle {
	l := &lifecycle{
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	l.state.Store(int32(StateCreated))
	return l
}

func (l *lifecycle) current() State { return State(l.state.Load()) }

func (l *lifecycle) lastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// toStarting moves Created -> Starting. A context that is already done
// fails the server before any listener exists.
func (l *lifecycle) toStarting(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		l.toFailed(fmt.Errorf("context cancelled before start: %w", err))
		return l.lastError()
	}
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", l.current())
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return nil
}

func (l *lifecycle) toRunning() {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.startedCh)
	}
}

func (l *lifecycle) toFailed(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()

	l.state.Store(int32(StateFailed))
	if l.cancel != nil {
		l.cancel()
	}
	l.sendError(err)
}

// toStopping reports whether the caller owns the shutdown.
func (l *lifecycle) toStopping() bool {
	for {
		cur := l.current()
		switch cur {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				if l.cancel != nil {
					l.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

func (l *lifecycle) toStopped() {
	l.state.Store(int32(StateStopped))
	close(l.errCh)
}

func (l *lifecycle) sendError(err error) {
	select {
	case l.errCh <- err:
	default:
	}
}

func (l *lifecycle) context() context.Context {
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}
