// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that touch process-wide state
// (environment, working directory, config location) or wait on output
// produced by a console session running in another goroutine.
package testutil
