// SPDX-License-Identifier: MPL-2.0

// Package console implements a line-oriented command interpreter for byte
// transports such as a serial line.
//
// A Session polls its Transport once per Tick, assembles bytes into a
// fixed-capacity line buffer, splits completed lines into tokens and
// dispatches them to handlers registered on the shared Console. Mutating
// commands (save, reboot, network address changes) are only allowed while the
// Console is in configuration mode.
//
// The package never blocks: Tick reads at most one byte and runs at most one
// dispatch. Callers that want a loop use Session.Run.
package console
