// Package netprobe: Optional per-host annotation of scan reports.
package netprobe

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/arp"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/dns"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/oui"
)

// AnnotateOptions selects which lookups run for each reported host.
type AnnotateOptions struct {
	// EnableDNS enables reverse DNS lookups
	EnableDNS bool
	// EnableARP enables MAC lookups (local link only)
	EnableARP bool
	// EnableVendor maps MAC addresses to vendors; requires EnableARP and a database
	EnableVendor bool

	// Timeout per lookup
	Timeout time.Duration
	// Workers for concurrent lookups
	Workers int
}

// DefaultAnnotateOptions returns options with DNS enabled only.
func DefaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{
		EnableDNS: true,
		Timeout:   2 * time.Second,
		Workers:   32,
	}
}

// HostInfo is a reported host with its open ports and lookup results.
type HostInfo struct {
	Host     netip.Addr
	Ports    []uint16
	Hostname string
	MAC      string
	Vendor   string
	Errors   map[Component]error
}

// HostnameResolver resolves PTR names. *dns.Discovery satisfies it.
type HostnameResolver interface {
	LookupMultiple(ctx context.Context, addrs []netip.Addr) []*dns.Result
}

// MACResolver resolves link-layer addresses. *arp.Discovery satisfies it.
type MACResolver interface {
	LookupMultiple(ctx context.Context, addrs []netip.Addr) []*arp.Result
}

// Annotator decorates a Report with names and hardware addresses.
type Annotator struct {
	Options AnnotateOptions
	DNS     HostnameResolver
	ARP     MACResolver
	// Vendor is consulted when EnableVendor is set. Nil disables vendor lookup.
	Vendor *oui.DB
}

// NewAnnotator returns an Annotator using the dns and arp packages.
func NewAnnotator(opts AnnotateOptions) (*Annotator, error) {
	if opts.Timeout <= 0 {
		return nil, &ConfigError{Field: "annotate timeout", Value: opts.Timeout.String(), Reason: "must be positive"}
	}
	if opts.Workers < 1 {
		return nil, &ConfigError{Field: "annotate workers", Value: fmt.Sprint(opts.Workers), Reason: "must be at least 1"}
	}

	d := dns.NewDiscovery()
	d.Timeout = opts.Timeout
	d.Workers = opts.Workers

	a := arp.NewDiscovery()
	a.Timeout = opts.Timeout
	a.Workers = opts.Workers

	return &Annotator{Options: opts, DNS: d, ARP: a}, nil
}

// Annotate runs the enabled lookups for every host in rep. Lookup failures
// are recorded per host and never fail the call. Results follow rep.Hosts order.
func (an *Annotator) Annotate(ctx context.Context, rep *Report) []*HostInfo {
	infos := make([]*HostInfo, len(rep.Hosts))
	addrs := make([]netip.Addr, len(rep.Hosts))
	for i, hp := range rep.Hosts {
		addrs[i] = hp.Host
		infos[i] = &HostInfo{
			Host:   hp.Host,
			Ports:  hp.Ports,
			Errors: make(map[Component]error),
		}
	}
	if len(infos) == 0 {
		return infos
	}

	debugLog(ComponentAnnotate, "annotating %d hosts (dns=%v arp=%v vendor=%v)",
		len(addrs), an.Options.EnableDNS, an.Options.EnableARP, an.Options.EnableVendor)

	var mu sync.Mutex
	var wg sync.WaitGroup

	if an.Options.EnableDNS && an.DNS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, r := range an.DNS.LookupMultiple(ctx, addrs) {
				if r == nil {
					continue
				}
				mu.Lock()
				infos[i].Hostname = r.Hostname
				if r.Error != nil {
					infos[i].Errors[ComponentDNS] = r.Error
				}
				mu.Unlock()
			}
		}()
	}

	if an.Options.EnableARP && an.ARP != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, r := range an.ARP.LookupMultiple(ctx, addrs) {
				if r == nil {
					continue
				}
				mu.Lock()
				infos[i].MAC = r.MAC
				if r.Error != nil {
					infos[i].Errors[ComponentARP] = r.Error
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if an.Options.EnableVendor && an.Vendor != nil {
		for _, info := range infos {
			if info.MAC == "" {
				continue
			}
			v, err := an.Vendor.Lookup(info.MAC)
			if err != nil {
				info.Errors[ComponentOUI] = err
				continue
			}
			if v != nil {
				info.Vendor = v.Manufacturer
			}
		}
	}

	return infos
}

// WriteHostInfo writes one line per host: address, ports, hostname, MAC and
// vendor. Missing values print as "-".
func WriteHostInfo(w io.Writer, infos []*HostInfo) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.Host, joinPorts(info.Ports), orDash(info.Hostname), orDash(info.MAC), orDash(info.Vendor))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
