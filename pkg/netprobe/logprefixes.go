// Package netprobe: Log prefix constants for consistent log tagging.
// Consumers can use them in their SetDebugLogger callback; they are not required.
package netprobe

// Component identifies the part of the scanner that emitted a log message.
type Component string

const (
	ComponentProbe    Component = "probe"
	ComponentReport   Component = "report"
	ComponentTarget   Component = "target"
	ComponentIfaces   Component = "ifaces"
	ComponentAnnotate Component = "annotate"
	ComponentDNS      Component = "dns"
	ComponentARP      Component = "arp"
	ComponentOUI      Component = "oui"
)

// Log prefix constants. Format follows [Component] or [Component:Subcomponent].
const (
	LogPrefixNetprobe = "[Netprobe]"

	LogPrefixProbe    = "[Netprobe:Probe]"
	LogPrefixReport   = "[Netprobe:Report]"
	LogPrefixTarget   = "[Netprobe:Target]"
	LogPrefixIfaces   = "[Netprobe:Ifaces]"
	LogPrefixAnnotate = "[Netprobe:Annotate]"
	LogPrefixDNS      = "[Netprobe:DNS]"
	LogPrefixARP      = "[Netprobe:ARP]"
	LogPrefixOUI      = "[Netprobe:OUI]"
)

// ComponentToPrefix returns the log prefix for a component.
func ComponentToPrefix(c Component) string {
	switch c {
	case ComponentProbe:
		return LogPrefixProbe
	case ComponentReport:
		return LogPrefixReport
	case ComponentTarget:
		return LogPrefixTarget
	case ComponentIfaces:
		return LogPrefixIfaces
	case ComponentAnnotate:
		return LogPrefixAnnotate
	case ComponentDNS:
		return LogPrefixDNS
	case ComponentARP:
		return LogPrefixARP
	case ComponentOUI:
		return LogPrefixOUI
	default:
		return LogPrefixNetprobe
	}
}
