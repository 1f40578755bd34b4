// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/embedcli/embedcli/internal/console"
)

// notifyConfigModeToggle flips configuration mode on every SIGUSR1, the
// host stand-in for a service jumper on the board. The returned function
// stops listening.
func notifyConfigModeToggle(c *console.Console, logger *log.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigCh:
				on := !c.ConfigMode()
				c.SetConfigMode(on)
				logger.Info("configuration mode toggled", "on", on)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
