// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/embedcli/embedcli/pkg/types"
)

var (
	// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
	ErrInvalidHostAddress = errors.New("invalid host address")
	// ErrInvalidSSHConfig is the sentinel error wrapped by InvalidSSHConfigError.
	ErrInvalidSSHConfig = errors.New("invalid SSH server config")
)

type (
	// HostAddress is the interface or hostname the server binds to.
	// A valid address must be non-empty and not whitespace-only.
	HostAddress string

	// ListenPort is the TCP port the server binds to; 0 picks a free port.
	ListenPort = types.ListenPort

	// InvalidHostAddressError is returned when a HostAddress is empty or
	// whitespace-only.
	InvalidHostAddressError struct {
		Value HostAddress
	}

	// InvalidSSHConfigError collects the field errors of a Config.
	// It wraps ErrInvalidSSHConfig for errors.Is() compatibility.
	InvalidSSHConfigError struct {
		FieldErrors []error
	}
)

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// Validate returns nil if the HostAddress is non-empty and not
// whitespace-only.
func (h HostAddress) Validate() error {
	if strings.TrimSpace(string(h)) == "" {
		return &InvalidHostAddressError{Value: h}
	}
	return nil
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }

// Error implements the error interface for InvalidSSHConfigError.
func (e *InvalidSSHConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid SSH server config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidSSHConfig for errors.Is() compatibility.
func (e *InvalidSSHConfigError) Unwrap() error { return ErrInvalidSSHConfig }
