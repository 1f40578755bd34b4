// SPDX-License-Identifier: MPL-2.0

package console

const (
	keyBackspace = 0x08
	keyDelete    = 0x7f

	// minLineCapacity leaves room for one payload byte and the CR LF pair.
	minLineCapacity = 4
)

// Event is the outcome of feeding one byte to an Assembler.
type Event int

const (
	// EventNone means the byte was stored and the line is still open.
	EventNone Event = iota
	// EventErase means a backspace removed the last stored byte.
	EventErase
	// EventIgnored means a backspace arrived on an empty buffer.
	EventIgnored
	// EventEmpty means only the CR LF terminator was entered.
	EventEmpty
	// EventLine means a non-empty line is ready; see Assembler.Line.
	EventLine
	// EventOverflow means the buffer filled up without a terminator and was
	// discarded.
	EventOverflow
)

// String returns a short name for the event.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventErase:
		return "erase"
	case EventIgnored:
		return "ignored"
	case EventEmpty:
		return "empty"
	case EventLine:
		return "line"
	case EventOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Assembler accumulates bytes into a fixed-capacity line buffer.
//
// A line of up to capacity bytes, terminator included, completes. Filling
// the buffer without a terminator drops the line with EventOverflow.
type Assembler struct {
	buf     []byte
	cursor  int
	pending bool
}

// NewAssembler returns an Assembler holding at most capacity bytes.
// Capacities below 4 are raised to 4.
func NewAssembler(capacity int) *Assembler {
	if capacity < minLineCapacity {
		capacity = minLineCapacity
	}
	return &Assembler{buf: make([]byte, capacity)}
}

// Feed stores or erases one byte and reports what happened.
//
// After EventLine the line stays readable through Line until Reset or the next
// Feed. EventEmpty and EventOverflow reset the buffer themselves.
func (a *Assembler) Feed(b byte) Event {
	if a.pending {
		a.Reset()
	}

	if b == keyBackspace || b == keyDelete {
		if a.cursor == 0 {
			return EventIgnored
		}
		a.cursor--
		return EventErase
	}

	a.buf[a.cursor] = b
	a.cursor++

	if a.cursor >= 2 && a.buf[a.cursor-2] == '\r' && a.buf[a.cursor-1] == '\n' {
		if a.cursor == 2 {
			a.Reset()
			return EventEmpty
		}
		a.pending = true
		return EventLine
	}

	if a.cursor == len(a.buf) {
		a.Reset()
		return EventOverflow
	}
	return EventNone
}

// Line returns the completed line without its CR LF terminator. It is only
// meaningful right after Feed returned EventLine; otherwise it returns nil.
func (a *Assembler) Line() []byte {
	if !a.pending {
		return nil
	}
	return a.buf[:a.cursor-2]
}

// Len returns the number of bytes currently buffered.
func (a *Assembler) Len() int { return a.cursor }

// Cap returns the buffer capacity.
func (a *Assembler) Cap() int { return len(a.buf) }

// Reset discards the buffered bytes.
func (a *Assembler) Reset() {
	clear(a.buf)
	a.cursor = 0
	a.pending = false
}
