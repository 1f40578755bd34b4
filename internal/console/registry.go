// SPDX-License-Identifier: MPL-2.0

package console

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"
)

const (
	// ClassBuiltin holds the commands every console ships with.
	ClassBuiltin Class = iota
	// ClassCommand holds flat external commands.
	ClassCommand
	// ClassModule holds external modules that run their own sub-dispatch.
	ClassModule

	classCount = 3
)

const (
	// DefaultBuiltinCapacity fits the built-in command set.
	DefaultBuiltinCapacity = 8
	// DefaultCommandCapacity is the default size of the external command table.
	DefaultCommandCapacity = 20
	// DefaultModuleCapacity is the default size of the external module table.
	DefaultModuleCapacity = 20
)

type (
	// Class is a registration class. Lookup scans classes in declaration order.
	Class int

	// Descriptor is a registered command. It is immutable once registered.
	Descriptor struct {
		Name        string
		Description string
		// Device is handed back to the handler on every call.
		Device  any
		Handler Handler
		// Gate is nil for commands that never need configuration mode.
		Gate Gate
	}

	// Limits caps the size of each registration class.
	Limits struct {
		Builtin  int
		Commands int
		Modules  int
	}

	// Registry stores descriptors in three fixed-capacity ordered tables.
	// Registration beyond a table's capacity is dropped without error.
	Registry struct {
		mu     sync.RWMutex
		tables [classCount][]Descriptor
		limits [classCount]int
	}
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassBuiltin:
		return "builtin"
	case ClassCommand:
		return "command"
	case ClassModule:
		return "module"
	default:
		return "unknown"
	}
}

// DefaultLimits returns the default table sizes.
func DefaultLimits() Limits {
	return Limits{
		Builtin:  DefaultBuiltinCapacity,
		Commands: DefaultCommandCapacity,
		Modules:  DefaultModuleCapacity,
	}
}

// NewRegistry creates an empty registry. Non-positive limits fall back to
// the defaults.
func NewRegistry(limits Limits) *Registry {
	def := DefaultLimits()
	r := &Registry{}
	r.limits[ClassBuiltin] = orDefault(limits.Builtin, def.Builtin)
	r.limits[ClassCommand] = orDefault(limits.Commands, def.Commands)
	r.limits[ClassModule] = orDefault(limits.Modules, def.Modules)
	for c := range r.tables {
		r.tables[c] = make([]Descriptor, 0, r.limits[c])
	}
	return r
}

// Register appends d to the table of class. It returns false, and stores
// nothing, when the table is full, the name is empty or already taken within
// the class, or the handler is nil.
func (r *Registry) Register(class Class, d Descriptor) bool {
	if class < 0 || class >= classCount || d.Name == "" || d.Handler == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.tables[class]
	if len(table) >= r.limits[class] {
		slog.Debug("command table full, registration dropped",
			"class", class, "name", d.Name, "capacity", r.limits[class])
		return false
	}
	for _, existing := range table {
		if existing.Name == d.Name {
			slog.Debug("duplicate command name, registration dropped", "class", class, "name", d.Name)
			return false
		}
	}

	r.tables[class] = append(table, d)
	return true
}

// Lookup finds the descriptor named name, scanning built-ins, then external
// commands, then modules, each in registration order. The first descriptor
// whose stored name matches name over the stored name's full length, with no
// bytes left over, wins.
func (r *Registry) Lookup(name string) (Descriptor, Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range Class(classCount) {
		for _, d := range r.tables[c] {
			if len(name) == len(d.Name) && name[:len(d.Name)] == d.Name {
				return d, c, true
			}
		}
	}
	return Descriptor{}, 0, false
}

// List returns a copy of the descriptors of class in registration order.
func (r *Registry) List(class Class) []Descriptor {
	if class < 0 || class >= classCount {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.tables[class])
}

// Len returns how many descriptors class holds.
func (r *Registry) Len(class Class) int {
	if class < 0 || class >= classCount {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[class])
}

// Cap returns the capacity of class.
func (r *Registry) Cap(class Class) int {
	if class < 0 || class >= classCount {
		return 0
	}
	return r.limits[class]
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
