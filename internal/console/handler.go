// SPDX-License-Identifier: MPL-2.0

package console

type (
	// Handler runs a registered command. Built-ins, flat external commands and
	// modules all implement it.
	Handler interface {
		Handle(call *Call)
	}

	// HandlerFunc adapts a plain function to Handler.
	HandlerFunc func(call *Call)

	// Gate reports whether one invocation of a command mutates persistent
	// state and therefore requires configuration mode. args[0] is the command
	// name.
	Gate func(args []string) bool

	// Call is what a handler receives: the session to answer on, the opaque
	// device registered with the command and the tokens of the line.
	Call struct {
		Session *Session
		Device  any
		// Args holds the tokens of the line; Args[0] is the command name.
		Args []string
	}
)

// Handle calls f(call).
func (f HandlerFunc) Handle(call *Call) { f(call) }

// Argc returns the number of tokens, command name included.
func (c *Call) Argc() int { return len(c.Args) }

// Arg returns token i, or "" when there are not enough tokens.
func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// AlwaysGated is a Gate for commands that mutate on every invocation.
func AlwaysGated([]string) bool { return true }

// SubcommandGate returns a Gate that requires configuration mode when the
// first argument is one of subs.
func SubcommandGate(subs ...string) Gate {
	return func(args []string) bool {
		if len(args) < 2 {
			return false
		}
		for _, s := range subs {
			if args[1] == s {
				return true
			}
		}
		return false
	}
}
