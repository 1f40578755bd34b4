// SPDX-License-Identifier: MPL-2.0

package modules

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/embedcli/embedcli/internal/console"
)

// ErrRegistrationFailed is returned by Register when a name is taken or a
// table is full.
var ErrRegistrationFailed = errors.New("module registration failed")

type (
	// Sys is the device handed to the "sys" module.
	Sys struct {
		// Logger is the logger whose level "sys loglevel" changes. Nil
		// disables the sub-command.
		Logger *log.Logger
	}

	subcommand struct {
		name        string
		description string
		run         func(call *console.Call, sys *Sys)
	}
)

var sysSubcommands = []subcommand{
	{name: "uptime", description: "Time since the console started", run: sysUptime},
	{name: "mem", description: "Heap and goroutine statistics", run: sysMem},
	{name: "sessions", description: "Number of open sessions", run: sysSessions},
	{name: "mode", description: "Show whether configuration mode is on", run: sysMode},
	{name: "loglevel", description: "Set log level: loglevel debug|info|warn|error", run: sysLogLevel},
}

// Register adds "echo" and "sys" to c.
func Register(c *console.Console, sys *Sys) error {
	if sys == nil {
		sys = &Sys{}
	}
	if !c.RegisterCommand("echo", "Print the arguments back", nil, console.HandlerFunc(echo)) {
		return fmt.Errorf("%w: echo", ErrRegistrationFailed)
	}
	if !c.RegisterModule("sys", "Runtime information", sys, console.HandlerFunc(sysHandle),
		console.WithConfigGate(console.SubcommandGate("loglevel"))) {
		return fmt.Errorf("%w: sys", ErrRegistrationFailed)
	}
	return nil
}

func echo(call *console.Call) {
	if call.Argc() < 2 {
		call.Session.SendLine(console.MsgWrongParams)
		return
	}
	call.Session.SendLine(strings.Join(call.Args[1:], " "))
}

func sysHandle(call *console.Call) {
	sys, _ := call.Device.(*Sys)
	if sys == nil {
		sys = &Sys{}
	}

	if call.Argc() == 1 {
		for _, sub := range sysSubcommands {
			call.Session.SendHelpLine(sub.name, sub.description)
		}
		return
	}

	for _, sub := range sysSubcommands {
		if sub.name == call.Arg(1) {
			sub.run(call, sys)
			return
		}
	}
	call.Session.SendLine(console.MsgWrongCommand)
}

func sysUptime(call *console.Call, _ *Sys) {
	call.Session.SendStatusLine("Uptime", call.Session.Console().Uptime().Truncate(time.Second).String())
}

func sysMem(call *console.Call, _ *Sys) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	call.Session.SendStatusLine("Heap in use", strconv.FormatUint(ms.HeapInuse/1024, 10)+" KiB")
	call.Session.SendStatusLine("Heap objects", strconv.FormatUint(ms.HeapObjects, 10))
	call.Session.SendStatusLine("GC cycles", strconv.FormatUint(uint64(ms.NumGC), 10))
	call.Session.SendStatusLine("Goroutines", strconv.Itoa(runtime.NumGoroutine()))
}

func sysSessions(call *console.Call, _ *Sys) {
	call.Session.SendStatusLine("Sessions", strconv.Itoa(call.Session.Console().ActiveSessions()))
}

func sysMode(call *console.Call, _ *Sys) {
	mode := "off"
	if call.Session.Console().ConfigMode() {
		mode = "on"
	}
	call.Session.SendStatusLine("Config mode", mode)
}

func sysLogLevel(call *console.Call, sys *Sys) {
	if sys.Logger == nil {
		call.Session.SendTagged(console.SeverityWarning, "No logger attached")
		return
	}
	if call.Argc() != 3 {
		call.Session.SendLine(console.MsgWrongParams)
		return
	}
	level, err := log.ParseLevel(call.Arg(2))
	if err != nil {
		call.Session.SendLine(console.MsgWrongParams)
		return
	}
	sys.Logger.SetLevel(level)
	call.Session.SendLine(console.MsgDone)
}
