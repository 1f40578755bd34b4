// SPDX-License-Identifier: MPL-2.0

package console

import (
	"strconv"
	"time"
)

func (c *Console) registerBuiltins() {
	builtins := []Descriptor{
		{Name: "help", Description: "Print commands list", Handler: HandlerFunc(c.help)},
		{Name: "version", Description: "Print actual version of board and firmware", Handler: HandlerFunc(c.version)},
		{Name: "status", Description: "Print microcontroller status", Handler: HandlerFunc(c.status)},
		{
			Name:        "netconfig",
			Description: "Show or change network settings",
			Handler:     HandlerFunc(c.netconfig),
			Gate:        SubcommandGate(netconfigMutating...),
		},
		{Name: "save", Description: "Save settings to persistent storage", Handler: HandlerFunc(c.save), Gate: AlwaysGated},
		{Name: "reboot", Description: "Reboot the board", Handler: HandlerFunc(c.reboot), Gate: AlwaysGated},
	}
	for _, d := range builtins {
		c.registry.Register(ClassBuiltin, d)
	}
}

// sayHello writes the banner: product and copyright framed by separators,
// then the version block.
func (s *Session) sayHello() {
	id := s.console.Identity()
	s.transport.WriteString(lineEnd)
	s.transport.WriteLine(separator)
	s.transport.WriteLine(id.ProductName)
	s.transport.WriteLine(id.Copyright)
	s.transport.WriteLine(separator)
	s.sendVersion(id)
	s.transport.WriteLine(separator)
}

func (s *Session) sendVersion(id Identity) {
	s.transport.WriteString("Board Version    : ")
	s.transport.WriteLine(id.BoardVersion)
	s.transport.WriteString("Firmware Version : ")
	s.transport.WriteLine(id.FirmwareVersion)
	s.transport.WriteString("Firmware Date    : ")
	s.transport.WriteLine(id.BuildDate())
}

func (c *Console) help(call *Call) {
	s := call.Session
	s.sayHello()

	for _, d := range c.registry.List(ClassBuiltin) {
		s.SendHelpLine(d.Name, d.Description)
	}
	for _, d := range c.registry.List(ClassCommand) {
		s.SendHelpLine(d.Name, d.Description)
	}
	for _, d := range c.registry.List(ClassModule) {
		s.SendHelpLine(d.Name, d.Description)
		s.invoke(d, []string{d.Name})
	}
}

func (c *Console) version(call *Call) {
	call.Session.sendVersion(c.Identity())
}

func (c *Console) status(call *Call) {
	s := call.Session
	s.sayHello()
	s.SendStatusLine("Uptime", c.Uptime().Truncate(time.Second).String())
	s.SendStatusLine("Sessions", strconv.Itoa(c.ActiveSessions()))
	if c.ConfigMode() {
		s.SendStatusLine("Config mode", "on")
	} else {
		s.SendStatusLine("Config mode", "off")
	}
}

func (c *Console) save(call *Call) {
	s := call.Session
	hook, _ := c.hooks()
	if hook == nil {
		s.SendTagged(SeverityWarning, "Save not available")
		return
	}
	if !hook() {
		s.SendTagged(SeverityError, "Save failed")
		return
	}
	s.SendLine(MsgDone)
}

func (c *Console) reboot(call *Call) {
	s := call.Session
	_, hook := c.hooks()
	if hook == nil {
		s.SendTagged(SeverityWarning, "Reboot not available")
		return
	}
	s.SendTagged(SeverityInfo, "Rebooting...")
	s.halt()
	hook()
}
