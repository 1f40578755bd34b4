// SPDX-License-Identifier: MPL-2.0

// Package transport provides the byte channels a console session runs over:
// an in-memory Pipe, a Stream adapting any reader/writer pair, and a Device
// that opens a serial line or terminal in raw mode.
package transport
