// SPDX-License-Identifier: MPL-2.0

// Package modules holds the external commands shipped with embedcli: the
// flat "echo" command and the "sys" module, which answers its own
// sub-commands the same way a board-specific driver module would.
package modules
