// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes that leave ReadDirectoryChangesW unusable.
const (
	errnoTooManyOpenFiles = syscall.Errno(4) // ERROR_TOO_MANY_OPEN_FILES
	errnoInvalidHandle    = syscall.Errno(6) // ERROR_INVALID_HANDLE: watched directory removed
	errnoNotEnoughMemory  = syscall.Errno(8) // ERROR_NOT_ENOUGH_MEMORY
)

// isFatalFsnotifyError reports errors after which the config watcher can no
// longer see edits.
func isFatalFsnotifyError(err error) bool {
	for _, errno := range []syscall.Errno{errnoTooManyOpenFiles, errnoInvalidHandle, errnoNotEnoughMemory} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
