// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by OpenDevice when the path is not a character
// device that can be switched to raw mode.
var ErrNotTerminal = errors.New("not a terminal device")

// Device is a Stream over a terminal or serial line held in raw mode for
// its lifetime.
type Device struct {
	*Stream

	in       *os.File
	ownsFile bool
	state    *term.State
}

// OpenDevice opens path for reading and writing, puts it in raw mode and
// starts streaming from it. Close restores the previous line settings.
func OpenDevice(path string, opts ...StreamOption) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}

	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		_ = f.Close()
		return nil, fmt.Errorf("open device %s: %w", path, ErrNotTerminal)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set raw mode on %s: %w", path, err)
	}

	d := &Device{in: f, ownsFile: true, state: state}
	d.Stream = NewStream(f, f, append([]StreamOption{WithLineEndings()}, opts...)...)
	return d, nil
}

// Stdio streams from the process's standard input and output. When stdin
// is a terminal it is put in raw mode until Close.
func Stdio(opts ...StreamOption) (*Device, error) {
	d := &Device{in: os.Stdin}

	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("set raw mode on stdin: %w", err)
		}
		d.state = state
	}

	d.Stream = NewStream(os.Stdin, os.Stdout, append([]StreamOption{WithLineEndings()}, opts...)...)
	return d, nil
}

// IsRaw reports whether the device was switched to raw mode.
func (d *Device) IsRaw() bool { return d.state != nil }

// Name returns the name of the underlying input file.
func (d *Device) Name() string { return d.in.Name() }

// Close restores the terminal settings and, for devices opened by path,
// closes the file.
func (d *Device) Close() error {
	var errs []error
	if d.state != nil {
		if err := term.Restore(int(d.in.Fd()), d.state); err != nil {
			errs = append(errs, fmt.Errorf("restore terminal: %w", err))
		}
		d.state = nil
	}
	if err := d.Stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.ownsFile {
		if err := d.in.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
