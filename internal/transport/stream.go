// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

const (
	crlf = "\r\n"

	// keyInterrupt is the byte sent by Ctrl+C on a raw terminal.
	keyInterrupt = 0x03

	defaultQueueSize = 256
	readChunkSize    = 64
)

type (
	// StreamOption customises a Stream.
	StreamOption func(*Stream)

	// Stream adapts a blocking reader and a writer to the polled byte
	// interface a console session expects. A single goroutine drains the
	// reader into a bounded queue; IsByteAvailable never blocks.
	//
	// Reads must come from one goroutine. Writes may come from several.
	Stream struct {
		r io.Reader
		w io.Writer

		wmu sync.Mutex

		queue   chan byte
		next    byte
		hasNext bool

		normalize bool
		interrupt func()

		stop      chan struct{}
		done      chan struct{}
		closeOnce sync.Once
		closer    io.Closer

		errMu sync.Mutex
		err   error
	}
)

// WithLineEndings makes the stream turn a lone CR, a lone LF or a CR LF
// pair into exactly one CR LF pair. Terminals in raw mode send only CR on
// Enter and many line-based clients send only LF.
func WithLineEndings() StreamOption {
	return func(s *Stream) { s.normalize = true }
}

// WithInterrupt calls fn whenever a Ctrl+C byte arrives. The byte itself is
// dropped.
func WithInterrupt(fn func()) StreamOption {
	return func(s *Stream) { s.interrupt = fn }
}

// WithQueueSize sets how many input bytes may wait unread.
func WithQueueSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.queue = make(chan byte, n)
		}
	}
}

// WithCloser sets what Close releases in addition to stopping the reader.
func WithCloser(c io.Closer) StreamOption {
	return func(s *Stream) { s.closer = c }
}

// NewStream starts reading r in the background and returns the Stream.
func NewStream(r io.Reader, w io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		r:     r,
		w:     w,
		queue: make(chan byte, defaultQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.readLoop()
	return s
}

// IsByteAvailable reports whether a byte can be read without blocking.
func (s *Stream) IsByteAvailable() bool {
	if s.hasNext {
		return true
	}
	select {
	case b, ok := <-s.queue:
		if !ok {
			return false
		}
		s.next, s.hasNext = b, true
		return true
	default:
		return false
	}
}

// ReadByte returns the byte announced by IsByteAvailable.
func (s *Stream) ReadByte() (byte, error) {
	if !s.IsByteAvailable() {
		if err := s.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	s.hasNext = false
	return s.next, nil
}

// WriteByte writes a single byte.
func (s *Stream) WriteByte(b byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.w.Write([]byte{b})
	return err
}

// WriteString writes str. Write errors are logged and otherwise ignored;
// a broken output shows up as the end of input on the read side.
func (s *Stream) WriteString(str string) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := io.WriteString(s.w, str); err != nil {
		slog.Debug("transport write failed", "error", err)
	}
}

// WriteLine writes str followed by CR LF.
func (s *Stream) WriteLine(str string) {
	s.WriteString(str + crlf)
}

// Write implements io.Writer for log and banner output.
func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.w.Write(p)
}

// Done is closed once the reader has returned an error or EOF and every
// byte read before that has been queued.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the reader, or nil while it is running
// and after a clean EOF.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close stops queueing input and closes the configured closer. A reader
// blocked in Read only notices once that Read returns.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.done)
	defer close(s.queue)

	buf := make([]byte, readChunkSize)
	lastCR := false
	for {
		n, err := s.r.Read(buf)
		for _, b := range buf[:n] {
			if b == keyInterrupt && s.interrupt != nil {
				s.interrupt()
				continue
			}
			if s.normalize {
				switch {
				case b == '\r':
					lastCR = true
					if !s.push('\r') || !s.push('\n') {
						return
					}
					continue
				case b == '\n' && lastCR:
					lastCR = false
					continue
				case b == '\n':
					if !s.push('\r') || !s.push('\n') {
						return
					}
					continue
				}
				lastCR = false
			}
			if !s.push(b) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.errMu.Lock()
				s.err = err
				s.errMu.Unlock()
			}
			return
		}
	}
}

func (s *Stream) push(b byte) bool {
	select {
	case s.queue <- b:
		return true
	case <-s.stop:
		return false
	}
}
