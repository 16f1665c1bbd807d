// Package dns provides reverse DNS (PTR) lookups for reported hosts.
//
// Queries go to the nameservers listed in resolv.conf (or an explicit server
// list) using github.com/miekg/dns. When no nameserver configuration is
// available, as on Windows, the system resolver is used instead.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	mdns "github.com/miekg/dns"
)

// DefaultTimeout is the default timeout for one PTR lookup.
const DefaultTimeout = 2 * time.Second

// DefaultWorkers is the default number of concurrent lookups.
const DefaultWorkers = 32

// DefaultConfigFile is the resolver configuration read when Servers is empty.
const DefaultConfigFile = "/etc/resolv.conf"

// ErrNotFound is returned when the server answers but has no PTR record.
var ErrNotFound = errors.New("no PTR record")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from DNS operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result contains the result of a reverse DNS lookup.
type Result struct {
	Addr     netip.Addr
	Hostname string   // Primary hostname (first answer)
	All      []string // All returned hostnames
	Server   string   // Server that answered; empty for the system resolver
	Error    error
}

// Discovery performs reverse DNS lookups.
type Discovery struct {
	Timeout time.Duration
	Workers int
	// Servers are host:port nameserver addresses. Empty means ConfigFile.
	Servers []string
	// ConfigFile is a resolv.conf style file; defaults to DefaultConfigFile.
	ConfigFile string

	once    sync.Once
	servers []string
}

// NewDiscovery creates a new DNS discovery helper with defaults.
func NewDiscovery() *Discovery {
	return &Discovery{
		Timeout:    DefaultTimeout,
		Workers:    DefaultWorkers,
		ConfigFile: DefaultConfigFile,
	}
}

// nameservers resolves the server list once.
func (d *Discovery) nameservers() []string {
	d.once.Do(func() {
		if len(d.Servers) > 0 {
			d.servers = d.Servers
			return
		}
		path := d.ConfigFile
		if path == "" {
			path = DefaultConfigFile
		}
		cfg, err := mdns.ClientConfigFromFile(path)
		if err != nil {
			debugLog("no resolver config at %s, using system resolver: %v", path, err)
			return
		}
		for _, s := range cfg.Servers {
			d.servers = append(d.servers, net.JoinHostPort(s, cfg.Port))
		}
		debugLog("nameservers from %s: %v", path, d.servers)
	})
	return d.servers
}

// LookupAddr performs a reverse DNS (PTR) lookup for addr.
func (d *Discovery) LookupAddr(ctx context.Context, addr netip.Addr) (*Result, error) {
	res := &Result{Addr: addr}

	name, err := mdns.ReverseAddr(addr.String())
	if err != nil {
		res.Error = fmt.Errorf("reverse name for %s: %w", addr, err)
		return res, res.Error
	}

	servers := d.nameservers()
	if len(servers) == 0 {
		return d.lookupSystem(ctx, res)
	}

	msg := new(mdns.Msg)
	msg.SetQuestion(name, mdns.TypePTR)
	msg.RecursionDesired = true

	client := &mdns.Client{Net: "udp", Timeout: d.Timeout}

	var lastErr error
	for _, server := range servers {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		in, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			debugLog("%s: query to %s failed: %v", addr, server, err)
			continue
		}
		if in.Rcode == mdns.RcodeNameError {
			lastErr = ErrNotFound
			res.Server = server
			break
		}
		if in.Rcode != mdns.RcodeSuccess {
			lastErr = fmt.Errorf("server %s answered %s", server, mdns.RcodeToString[in.Rcode])
			continue
		}

		for _, rr := range in.Answer {
			if ptr, ok := rr.(*mdns.PTR); ok {
				res.All = append(res.All, strings.TrimSuffix(ptr.Ptr, "."))
			}
		}
		res.Server = server
		if len(res.All) == 0 {
			lastErr = ErrNotFound
			break
		}
		res.Hostname = res.All[0]
		debugLog("%s -> %s (via %s)", addr, res.Hostname, server)
		return res, nil
	}

	if lastErr == nil {
		lastErr = ErrNotFound
	}
	res.Error = lastErr
	debugLog("%s: lookup failed: %v", addr, lastErr)
	return res, lastErr
}

// lookupSystem falls back to the platform resolver.
func (d *Discovery) lookupSystem(ctx context.Context, res *Result) (*Result, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	names, err := net.DefaultResolver.LookupAddr(lookupCtx, res.Addr.String())
	if err != nil {
		res.Error = err
		debugLog("%s: system lookup failed: %v", res.Addr, err)
		return res, err
	}

	for _, name := range names {
		res.All = append(res.All, strings.TrimSuffix(name, "."))
	}
	if len(res.All) == 0 {
		res.Error = ErrNotFound
		return res, ErrNotFound
	}
	res.Hostname = res.All[0]
	debugLog("%s -> %s (system)", res.Addr, res.Hostname)
	return res, nil
}

// LookupMultiple performs reverse DNS lookups on multiple addresses concurrently.
// Results are in input order; entries are nil for lookups skipped on cancellation.
func (d *Discovery) LookupMultiple(ctx context.Context, addrs []netip.Addr) []*Result {
	if len(addrs) == 0 {
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]*Result, len(addrs))
	jobs := make(chan int, len(addrs))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			results[idx], _ = d.LookupAddr(ctx, addrs[idx])
		}
	}

	for i := 0; i < workers && i < len(addrs); i++ {
		wg.Add(1)
		go worker()
	}

enqueue:
	for i := range addrs {
		select {
		case <-ctx.Done():
			break enqueue
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
