// SPDX-License-Identifier: MPL-2.0

package console

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
)

// macTextLen is the length of "xx:xx:xx:xx:xx:xx".
const macTextLen = 17

var netconfigMutating = []string{"ip", "gw", "mask", "mac"}

type (
	// NetStore edits four address arrays owned by the embedding application.
	// The console never allocates or frees them.
	NetStore struct {
		mu      sync.Mutex
		ip      *[4]byte
		gateway *[4]byte
		mask    *[4]byte
		mac     *[6]byte
	}

	// NetSnapshot is a copy of the addresses held by a NetStore.
	NetSnapshot struct {
		IP      [4]byte
		Gateway [4]byte
		Mask    [4]byte
		MAC     [6]byte
	}
)

// Snapshot copies the current addresses.
func (n *NetStore) Snapshot() NetSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	var snap NetSnapshot
	if n.ip != nil {
		snap.IP = *n.ip
	}
	if n.gateway != nil {
		snap.Gateway = *n.gateway
	}
	if n.mask != nil {
		snap.Mask = *n.mask
	}
	if n.mac != nil {
		snap.MAC = *n.mac
	}
	return snap
}

// Apply writes every address of snap into the registered arrays.
func (n *NetStore) Apply(snap NetSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	copyInto(n.ip, snap.IP)
	copyInto(n.gateway, snap.Gateway)
	copyInto(n.mask, snap.Mask)
	if n.mac != nil {
		*n.mac = snap.MAC
	}
}

func (n *NetStore) setIPv4(field string, addr [4]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch field {
	case "ip":
		copyInto(n.ip, addr)
	case "gw":
		copyInto(n.gateway, addr)
	case "mask":
		copyInto(n.mask, addr)
	}
}

func (n *NetStore) setMAC(addr [6]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.mac != nil {
		*n.mac = addr
	}
}

func copyInto(dst *[4]byte, src [4]byte) {
	if dst != nil {
		*dst = src
	}
}

// ParseIPv4 parses dotted-quad decimal text such as "192.168.1.10".
func ParseIPv4(s string) ([4]byte, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return [4]byte{}, false
	}
	return addr.As4(), true
}

// FormatIPv4 renders addr as dotted-quad decimal text.
func FormatIPv4(addr [4]byte) string {
	return netip.AddrFrom4(addr).String()
}

// ParseMAC parses colon-separated hex text such as "00:1a:2b:3c:4d:5e".
func ParseMAC(s string) ([6]byte, bool) {
	var out [6]byte
	if len(s) != macTextLen || strings.Count(s, ":") != len(out)-1 {
		return out, false
	}
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != len(out) {
		return out, false
	}
	copy(out[:], hw)
	return out, true
}

// FormatMAC renders addr as lower-case colon-separated hex text.
func FormatMAC(addr [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}

// netconfig handles "netconfig show", "netconfig ip|gw|mask <a.b.c.d>" and
// "netconfig mac <xx:xx:xx:xx:xx:xx>". The mode gate has already run.
func (c *Console) netconfig(call *Call) {
	s := call.Session
	store := c.NetStore()
	if store == nil {
		s.SendTagged(SeverityWarning, "Network configuration not available")
		return
	}

	switch sub := call.Arg(1); sub {
	case "show":
		if call.Argc() != 2 {
			s.SendLine(MsgWrongParams)
			return
		}
		snap := store.Snapshot()
		s.SendStatusLine("IP Address", FormatIPv4(snap.IP))
		s.SendStatusLine("Gateway", FormatIPv4(snap.Gateway))
		s.SendStatusLine("Netmask", FormatIPv4(snap.Mask))
		s.SendStatusLine("MAC Address", FormatMAC(snap.MAC))
	case "ip", "gw", "mask":
		if call.Argc() != 3 {
			s.SendLine(MsgWrongParams)
			return
		}
		addr, ok := ParseIPv4(call.Arg(2))
		if !ok {
			s.SendLine(MsgWrongParams)
			return
		}
		store.setIPv4(sub, addr)
		s.SendLine(MsgDone)
	case "mac":
		if call.Argc() != 3 {
			s.SendLine(MsgWrongParams)
			return
		}
		addr, ok := ParseMAC(call.Arg(2))
		if !ok {
			s.SendLine(MsgWrongParams)
			return
		}
		store.setMAC(addr)
		s.SendLine(MsgDone)
	default:
		s.SendLine(MsgWrongCommand)
	}
}
