// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports inotify resource exhaustion, after which the
// config watcher can no longer see edits: the user watch limit (ENOSPC) or
// the per-process and system descriptor limits (EMFILE, ENFILE).
func isFatalFsnotifyError(err error) bool {
	for _, errno := range []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
