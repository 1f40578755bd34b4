// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. An error may also link to a catalog Issue whose
// Markdown explanation is rendered with glamour when the CLI runs verbose.
package issue
