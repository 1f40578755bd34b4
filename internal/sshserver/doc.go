// SPDX-License-Identifier: MPL-2.0

// Package sshserver serves console sessions over SSH using the Wish
// library. Every interactive connection gets its own console session bound
// to a shared console; a connection that carries a command runs that single
// line and exits.
package sshserver
