// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/embedcli/embedcli/internal/console"
)

const (
	// BackendNone disables persistence; "save" reports that it is unavailable.
	BackendNone Backend = "none"
	// BackendTOML stores settings in a human-editable TOML file.
	BackendTOML Backend = "toml"
	// BackendBolt stores settings in a bbolt database.
	BackendBolt Backend = "bolt"
)

var (
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = errors.New("no saved settings")
	// ErrInvalidBackend is returned for an unknown backend name.
	ErrInvalidBackend = errors.New("invalid storage backend")
	// ErrInvalidSnapshot is returned when saved settings cannot be parsed.
	ErrInvalidSnapshot = errors.New("invalid saved settings")
)

type (
	// Backend names a storage implementation.
	Backend string

	// Store loads and saves one Snapshot.
	Store interface {
		Load() (Snapshot, error)
		Save(Snapshot) error
		Close() error
	}

	// Snapshot is the persisted form of the network settings. Addresses are
	// kept as text so the TOML file stays editable by hand.
	Snapshot struct {
		IP      string `toml:"ip" json:"ip"`
		Gateway string `toml:"gateway" json:"gateway"`
		Netmask string `toml:"netmask" json:"netmask"`
		MAC     string `toml:"mac" json:"mac"`
	}
)

// String returns the backend name.
func (b Backend) String() string { return string(b) }

// Validate returns an error wrapping ErrInvalidBackend for unknown names.
func (b Backend) Validate() error {
	switch b {
	case BackendNone, BackendTOML, BackendBolt:
		return nil
	default:
		return fmt.Errorf("%w %q (valid: none, toml, bolt)", ErrInvalidBackend, string(b))
	}
}

// Open returns the store for backend at path. BackendNone returns a nil
// Store and no error.
func Open(backend Backend, path string) (Store, error) {
	if err := backend.Validate(); err != nil {
		return nil, err
	}
	if backend == BackendNone {
		return nil, nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required for backend %s", backend)
	}

	if backend == BackendTOML {
		return NewFileStore(path), nil
	}
	db, err := OpenBolt(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// FromNet converts the live addresses to their persisted form.
func FromNet(snap console.NetSnapshot) Snapshot {
	return Snapshot{
		IP:      console.FormatIPv4(snap.IP),
		Gateway: console.FormatIPv4(snap.Gateway),
		Netmask: console.FormatIPv4(snap.Mask),
		MAC:     console.FormatMAC(snap.MAC),
	}
}

// ToNet parses a persisted Snapshot. Every field must be valid.
func (s Snapshot) ToNet() (console.NetSnapshot, error) {
	var out console.NetSnapshot
	var errs []error

	parse4 := func(field, text string, dst *[4]byte) {
		addr, ok := console.ParseIPv4(text)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrInvalidSnapshot, field, text))
			return
		}
		*dst = addr
	}
	parse4("ip", s.IP, &out.IP)
	parse4("gateway", s.Gateway, &out.Gateway)
	parse4("netmask", s.Netmask, &out.Mask)

	mac, ok := console.ParseMAC(s.MAC)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: mac %q", ErrInvalidSnapshot, s.MAC))
	}
	out.MAC = mac

	return out, errors.Join(errs...)
}

// SaveNet writes the current contents of ns to st and returns what was
// written.
func SaveNet(st Store, ns *console.NetStore) (Snapshot, error) {
	snap := FromNet(ns.Snapshot())
	if err := st.Save(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Hook returns a console.SaveHook writing the current contents of ns to st.
// Each successful write is passed to the optional onSaved callbacks.
func Hook(st Store, ns *console.NetStore, onSaved ...func(Snapshot)) console.SaveHook {
	return func() bool {
		snap, err := SaveNet(st, ns)
		if err != nil {
			slog.Error("saving network settings failed", "error", err)
			return false
		}
		for _, fn := range onSaved {
			fn(snap)
		}
		slog.Info("network settings saved")
		return true
	}
}

// Restore loads the saved settings into ns. It reports false, without
// error, when nothing has been saved yet.
func Restore(st Store, ns *console.NetStore) (bool, error) {
	snap, err := st.Load()
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	live, err := snap.ToNet()
	if err != nil {
		return false, err
	}
	ns.Apply(live)
	return true, nil
}
