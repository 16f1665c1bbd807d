// Package netprobe: Subpackage wiring and convenience aliases.
package netprobe

import (
	"github.com/marcuoli/go-netprobe/pkg/netprobe/arp"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/dns"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/ifaces"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/oui"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

// Candidate is an alias for target.Candidate.
type Candidate = target.Candidate

// Spec is an alias for target.Spec.
type Spec = target.Spec

// PortRange is an alias for target.PortRange.
type PortRange = target.PortRange

// Scan is an alias for target.Scan.
type Scan = target.Scan

// InterfaceRecord is an alias for ifaces.Record.
type InterfaceRecord = ifaces.Record

func init() {
	dns.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentDNS, format, args...)
	}
	arp.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentARP, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentOUI, format, args...)
	}
	ifaces.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentIfaces, format, args...)
	}
}
