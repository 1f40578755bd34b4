// SPDX-License-Identifier: MPL-2.0

//go:build windows

package cmd

import (
	"github.com/charmbracelet/log"

	"github.com/embedcli/embedcli/internal/console"
)

// notifyConfigModeToggle is a no-op: Windows has no SIGUSR1. Use
// console.config_mode in the configuration file instead.
func notifyConfigModeToggle(*console.Console, *log.Logger) func() {
	return func() {}
}
