// SPDX-License-Identifier: MPL-2.0

package console

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultLineCapacity is the line buffer size, terminator included.
	DefaultLineCapacity = 50
	// DefaultMaxTokens caps the number of tokens per line.
	DefaultMaxTokens = 10
	// DefaultPollInterval is how long Session.Run sleeps when no byte is
	// waiting.
	DefaultPollInterval = 5 * time.Millisecond
)

type (
	// SaveHook persists the current settings and reports success.
	SaveHook func() bool

	// ResetHook restarts the target. It is not expected to return control to
	// the session that called it.
	ResetHook func()

	// Options sizes the buffers and tables of a Console.
	Options struct {
		LineCapacity int
		MaxTokens    int
		Limits       Limits
		// Echo makes sessions echo accepted bytes back to the transport.
		Echo bool
	}

	// RegisterOption customises a registration.
	RegisterOption func(*Descriptor)

	// Console is the state shared by every session: the command registry,
	// the configuration mode flag, the identity strings and the hooks.
	Console struct {
		opts     Options
		registry *Registry
		started  time.Time

		configMode atomic.Bool
		identity   atomic.Pointer[Identity]
		sessions   atomic.Int32

		hookMu    sync.RWMutex
		saveHook  SaveHook
		resetHook ResetHook
		net       *NetStore
	}
)

// DefaultOptions returns the stock buffer and table sizes.
func DefaultOptions() Options {
	return Options{
		LineCapacity: DefaultLineCapacity,
		MaxTokens:    DefaultMaxTokens,
		Limits:       DefaultLimits(),
	}
}

// WithConfigGate makes the registered command require configuration mode
// whenever gate reports true.
func WithConfigGate(gate Gate) RegisterOption {
	return func(d *Descriptor) { d.Gate = gate }
}

// New creates a Console with the built-in commands registered.
func New(id Identity, opts Options) *Console {
	def := DefaultOptions()
	opts.LineCapacity = orDefault(opts.LineCapacity, def.LineCapacity)
	opts.MaxTokens = orDefault(opts.MaxTokens, def.MaxTokens)

	c := &Console{
		opts:     opts,
		registry: NewRegistry(opts.Limits),
		started:  time.Now(),
	}
	c.identity.Store(&id)
	c.registerBuiltins()
	return c
}

// RegisterCommand adds a flat external command. It returns false when the
// command table is full or the name is already taken.
func (c *Console) RegisterCommand(name, description string, device any, h Handler, opts ...RegisterOption) bool {
	return c.register(ClassCommand, name, description, device, h, opts)
}

// RegisterModule adds an external module. Modules are listed by "help" and
// then called with only their name as argument so they can print their own
// sub-command help.
func (c *Console) RegisterModule(name, description string, device any, h Handler, opts ...RegisterOption) bool {
	return c.register(ClassModule, name, description, device, h, opts)
}

func (c *Console) register(class Class, name, description string, device any, h Handler, opts []RegisterOption) bool {
	d := Descriptor{Name: name, Description: description, Device: device, Handler: h}
	for _, opt := range opts {
		opt(&d)
	}
	return c.registry.Register(class, d)
}

// Registry exposes the command tables.
func (c *Console) Registry() *Registry { return c.registry }

// Options returns the sizes the Console was created with.
func (c *Console) Options() Options { return c.opts }

// SetConfigMode turns configuration mode on or off for every session.
func (c *Console) SetConfigMode(on bool) { c.configMode.Store(on) }

// ConfigMode reports whether configuration mode is on.
func (c *Console) ConfigMode() bool { return c.configMode.Load() }

// SetIdentity replaces the banner and version strings.
func (c *Console) SetIdentity(id Identity) { c.identity.Store(&id) }

// Identity returns the current banner and version strings.
func (c *Console) Identity() Identity { return *c.identity.Load() }

// SetSaveHook installs the callback used by "save".
func (c *Console) SetSaveHook(h SaveHook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.saveHook = h
}

// SetResetHook installs the action used by "reboot".
func (c *Console) SetResetHook(h ResetHook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.resetHook = h
}

// RegisterNetStore hands the console the externally owned address arrays
// edited by "netconfig". It is meant to be called once at start-up.
func (c *Console) RegisterNetStore(ip, gateway, mask *[4]byte, mac *[6]byte) *NetStore {
	ns := &NetStore{ip: ip, gateway: gateway, mask: mask, mac: mac}
	c.hookMu.Lock()
	c.net = ns
	c.hookMu.Unlock()
	return ns
}

// NetStore returns the registered address store, or nil.
func (c *Console) NetStore() *NetStore {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.net
}

// Uptime returns the time elapsed since the Console was created.
func (c *Console) Uptime() time.Duration { return time.Since(c.started) }

// ActiveSessions returns the number of sessions that have been initialised
// and not yet closed.
func (c *Console) ActiveSessions() int { return int(c.sessions.Load()) }

// acquireSession takes one session slot unless limit slots are already
// taken. A limit of 0 or less means unlimited.
func (c *Console) acquireSession(limit int) bool {
	for {
		n := c.sessions.Load()
		if limit > 0 && int(n) >= limit {
			return false
		}
		if c.sessions.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *Console) hooks() (SaveHook, ResetHook) {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.saveHook, c.resetHook
}
