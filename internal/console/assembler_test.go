// SPDX-License-Identifier: MPL-2.0

package console

import (
	"strings"
	"testing"
)

func feedAll(a *Assembler, s string) []Event {
	events := make([]Event, 0, len(s))
	for i := range len(s) {
		events = append(events, a.Feed(s[i]))
	}
	return events
}

func TestAssemblerCompletesLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single char", "a\r\n", "a"},
		{"command with args", "netconfig show\r\n", "netconfig show"},
		{"lone CR inside line", "a\rb\r\n", "a\rb"},
		{"fills capacity minus one", strings.Repeat("x", 47) + "\r\n", strings.Repeat("x", 47)},
		{"fills capacity", strings.Repeat("x", 48) + "\r\n", strings.Repeat("x", 48)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := NewAssembler(50)
			events := feedAll(a, tt.input)

			lines := 0
			for _, ev := range events {
				if ev == EventLine {
					lines++
				}
			}
			if lines != 1 {
				t.Fatalf("got %d line events, want 1 (events %v)", lines, events)
			}
			if events[len(events)-1] != EventLine {
				t.Fatalf("last event = %s, want line", events[len(events)-1])
			}
			if got := string(a.Line()); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssemblerEmptyLine(t *testing.T) {
	t.Parallel()

	a := NewAssembler(50)
	events := feedAll(a, "\r\n")
	if events[1] != EventEmpty {
		t.Fatalf("got %s, want empty", events[1])
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after empty line, want 0", a.Len())
	}
	if a.Line() != nil {
		t.Error("Line() should be nil after an empty line")
	}
}

func TestAssemblerBackspace(t *testing.T) {
	t.Parallel()

	t.Run("erases one byte", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(50)
		feedAll(a, "abc")
		if ev := a.Feed(keyBackspace); ev != EventErase {
			t.Fatalf("got %s, want erase", ev)
		}
		if a.Len() != 2 {
			t.Errorf("Len() = %d, want 2", a.Len())
		}
		if ev := a.Feed(keyDelete); ev != EventErase {
			t.Fatalf("DEL: got %s, want erase", ev)
		}
		if a.Len() != 1 {
			t.Errorf("Len() = %d, want 1", a.Len())
		}
	})

	t.Run("no-op on empty buffer", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(50)
		for range 3 {
			if ev := a.Feed(keyBackspace); ev != EventIgnored {
				t.Fatalf("got %s, want ignored", ev)
			}
		}
		if a.Len() != 0 {
			t.Errorf("Len() = %d, want 0", a.Len())
		}
	})

	t.Run("edited line", func(t *testing.T) {
		t.Parallel()

		a := NewAssembler(50)
		events := feedAll(a, "hwlp\b\b\belp\r\n")
		if events[len(events)-1] != EventLine {
			t.Fatalf("last event = %s, want line", events[len(events)-1])
		}
		if got := string(a.Line()); got != "help" {
			t.Errorf("Line() = %q, want %q", got, "help")
		}
	})
}

func TestAssemblerOverflow(t *testing.T) {
	t.Parallel()

	a := NewAssembler(10)
	events := feedAll(a, strings.Repeat("y", 10))

	for i, ev := range events[:9] {
		if ev != EventNone {
			t.Fatalf("event %d = %s, want none", i, ev)
		}
	}
	if events[9] != EventOverflow {
		t.Fatalf("event 9 = %s, want overflow", events[9])
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after overflow, want 0", a.Len())
	}

	// The buffer is usable again right away.
	feedAll(a, "ok\r\n")
	if got := string(a.Line()); got != "ok" {
		t.Errorf("Line() = %q after recovery, want %q", got, "ok")
	}
}

func TestAssemblerCapacityLine(t *testing.T) {
	t.Parallel()

	// Eight payload bytes and CR LF fill a ten byte buffer exactly.
	a := NewAssembler(10)
	events := feedAll(a, "xxxxxxxx\r\n")
	if last := events[len(events)-1]; last != EventLine {
		t.Fatalf("last event = %s, want line (events %v)", last, events)
	}
	if got := string(a.Line()); got != "xxxxxxxx" {
		t.Errorf("Line() = %q, want %q", got, "xxxxxxxx")
	}

	// A CR arriving in the last slot is not a terminator yet.
	a.Reset()
	events = feedAll(a, "xxxxxxxxx\r")
	if last := events[len(events)-1]; last != EventOverflow {
		t.Errorf("last event = %s, want overflow", last)
	}
}

func TestAssemblerOverflowsAtCapacity(t *testing.T) {
	t.Parallel()

	a := NewAssembler(8)
	for i := range 200 {
		ev := a.Feed(byte('a' + i%26))
		if want := (i+1)%8 == 0; (ev == EventOverflow) != want {
			t.Fatalf("byte %d: event %s, overflow expected %v", i, ev, want)
		}
		if a.Len() >= a.Cap() {
			t.Fatalf("Len() = %d reached capacity %d", a.Len(), a.Cap())
		}
	}
}

func TestAssemblerMinimumCapacity(t *testing.T) {
	t.Parallel()

	a := NewAssembler(1)
	if a.Cap() != minLineCapacity {
		t.Errorf("Cap() = %d, want %d", a.Cap(), minLineCapacity)
	}
}
