// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"bytes"
	"io"
	"sync"
)

// Pipe is an in-memory transport. Input is queued with Feed and output is
// collected until read with Output. It is safe for concurrent use.
type Pipe struct {
	mu     sync.Mutex
	in     []byte
	out    bytes.Buffer
	done   chan struct{}
	closed bool
}

// NewPipe returns an empty Pipe.
func NewPipe() *Pipe {
	return &Pipe{done: make(chan struct{})}
}

// Feed queues input bytes. Bytes fed after CloseInput are dropped.
func (p *Pipe) Feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.in = append(p.in, b...)
}

// FeedString queues s as input.
func (p *Pipe) FeedString(s string) { p.Feed([]byte(s)) }

// CloseInput marks the end of input. Queued bytes remain readable.
func (p *Pipe) CloseInput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

// Done is closed by CloseInput.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Output returns everything written since the previous call.
func (p *Pipe) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.out.String()
	p.out.Reset()
	return s
}

// IsByteAvailable reports whether queued input remains.
func (p *Pipe) IsByteAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.in) > 0
}

// ReadByte pops the next queued byte.
func (p *Pipe) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

// WriteByte appends b to the output.
func (p *Pipe) WriteByte(b byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.WriteByte(b)
}

// WriteString appends s to the output.
func (p *Pipe) WriteString(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(s)
}

// WriteLine appends s and CR LF to the output.
func (p *Pipe) WriteLine(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(s)
	p.out.WriteString(crlf)
}
