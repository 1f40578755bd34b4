// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the embedcli command tree: serve, exec, config and
// version. The embedding application itself (address arrays, settings store,
// reset behaviour) lives in board.go.
package cmd
