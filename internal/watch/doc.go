// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to the files a running console depends on,
// such as config.cue and a hand-edited netconfig.toml.
//
// It watches the directories that hold those files, filters events by path
// and glob pattern, and invokes a callback after a debounce period. Events
// within the debounce window are coalesced so the callback fires once with
// the full set of changed paths.
package watch
