// SPDX-License-Identifier: MPL-2.0

package console

import "strings"

// Canonical messages shared by built-in and external handlers.
const (
	MsgWrongCommand  = "Wrong command!"
	MsgWrongParams   = "Wrong parameters!"
	MsgDone          = "Done!"
	MsgNotConfigMode = "Not in configuration mode!"
	MsgNotFound      = "Command not found!"
	MsgReady         = "CLI ready!"
)

const (
	// Prompt is written after every dispatched, empty or dropped line.
	Prompt = "\r\n$> "

	lineEnd        = "\r\n"
	separatorWidth = 60
	nameColumn     = 15
)

const (
	// SeverityInfo tags informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning tags recoverable problems.
	SeverityWarning
	// SeverityError tags failures.
	SeverityError
)

// Severity tags a message written with Session.SendTagged.
type Severity int

// String returns the tag text.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var separator = strings.Repeat("*", separatorWidth)

// SendLine writes msg followed by CR LF.
func (s *Session) SendLine(msg string) {
	s.transport.WriteLine(msg)
}

// SendString writes msg as is.
func (s *Session) SendString(msg string) {
	s.transport.WriteString(msg)
}

// SendHelpLine writes "name<pad>;description" with the name padded to a
// fixed column.
func (s *Session) SendHelpLine(name, description string) {
	s.transport.WriteString(padName(name))
	_ = s.transport.WriteByte(';')
	s.transport.WriteLine(description)
}

// SendStatusLine writes "name<pad>: value" with the name padded to a fixed
// column.
func (s *Session) SendStatusLine(name, value string) {
	s.transport.WriteString(padName(name))
	s.transport.WriteString(": ")
	s.transport.WriteLine(value)
}

// SendTagged writes "[SEVERITY] msg".
func (s *Session) SendTagged(sev Severity, msg string) {
	s.transport.WriteLine("[" + sev.String() + "] " + msg)
}

func padName(name string) string {
	if len(name) >= nameColumn {
		return name
	}
	return name + strings.Repeat(" ", nameColumn-len(name))
}
