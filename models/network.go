// Package models holds the wire/data types shared between the control
// protocol, the supervisor core, and the on-disk container descriptor.
package models

import (
	"fmt"
	"net/netip"
	"strings"
)

// HostEntry is one line the write_hosts control method appends to the
// container's /etc/hosts, following the two fixed localhost lines.
//
// Ported from xc's models/network.rs HostEntry; the rest of that file
// (PortRedirection, IpAssign, MainAddressSelector) models the port
// redirection / IP assignment data model, which isn't reachable from any
// control method and so has no home here — write_hosts only ever needs
// HostEntry.
type HostEntry struct {
	IPAddr   string `json:"ip_addr"`
	Hostname string `json:"hostname"`
}

// Validate rejects host entries that would otherwise be written verbatim
// into /etc/hosts.
func (h HostEntry) Validate() error {
	if _, err := netip.ParseAddr(h.IPAddr); err != nil {
		return fmt.Errorf("invalid ip_addr %q: %w", h.IPAddr, err)
	}
	if h.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if strings.ContainsAny(h.Hostname, " \t\n/") {
		return fmt.Errorf("invalid hostname %q", h.Hostname)
	}
	return nil
}
