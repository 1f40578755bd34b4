// SPDX-License-Identifier: MPL-2.0

package console

import "errors"

var (
	// ErrTransportClosed is returned by Session.Run when the transport has no
	// more input to deliver.
	ErrTransportClosed = errors.New("transport closed")

	// ErrHalted is returned by Session.Run after the reboot built-in handed
	// control to the reset hook.
	ErrHalted = errors.New("session halted")
)

type (
	// Transport is the character channel a Session runs over.
	//
	// IsByteAvailable must not block. ReadByte is only called after
	// IsByteAvailable reported true.
	Transport interface {
		IsByteAvailable() bool
		ReadByte() (byte, error)
		WriteByte(b byte) error
		WriteString(s string)
		// WriteLine writes s followed by CR LF.
		WriteLine(s string)
	}

	// doneNotifier is implemented by transports whose input can end, such as
	// network streams. Done is closed once no further bytes will arrive.
	doneNotifier interface {
		Done() <-chan struct{}
	}
)
