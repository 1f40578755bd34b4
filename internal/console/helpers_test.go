// SPDX-License-Identifier: MPL-2.0

package console

import (
	"io"
	"strings"
	"testing"
	"time"
)

type fakeTransport struct {
	in   []byte
	out  strings.Builder
	done chan struct{}
}

func (f *fakeTransport) IsByteAvailable() bool { return len(f.in) > 0 }

func (f *fakeTransport) ReadByte() (byte, error) {
	if len(f.in) == 0 {
		return 0, io.EOF
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *fakeTransport) WriteByte(b byte) error { return f.out.WriteByte(b) }

func (f *fakeTransport) WriteString(s string) { f.out.WriteString(s) }

func (f *fakeTransport) WriteLine(s string) { f.out.WriteString(s + "\r\n") }

func (f *fakeTransport) Done() <-chan struct{} { return f.done }

func (f *fakeTransport) feed(s string) { f.in = append(f.in, s...) }

// takeOutput returns everything written so far and clears the buffer.
func (f *fakeTransport) takeOutput() string {
	out := f.out.String()
	f.out.Reset()
	return out
}

func testIdentity() Identity {
	return Identity{
		ProductName:     "Test Board",
		Copyright:       "(c) Test",
		BoardVersion:    "rev-B",
		FirmwareVersion: "1.2.3",
		BuildTime:       time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

// newTestSession returns an initialised session whose banner output has
// already been discarded.
func newTestSession(t *testing.T, opts Options) (*Console, *Session, *fakeTransport) {
	t.Helper()
	c := New(testIdentity(), opts)
	ft := &fakeTransport{}
	s := c.NewSession(ft)
	s.Init()
	ft.takeOutput()
	return c, s, ft
}

// exec feeds line plus CR LF, ticks until the input is consumed and returns
// the output produced.
func exec(s *Session, ft *fakeTransport, line string) string {
	ft.feed(line + "\r\n")
	for s.Tick() {
	}
	return ft.takeOutput()
}
