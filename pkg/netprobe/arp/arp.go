//go:build linux || darwin || freebsd || netbsd || openbsd

// Package arp resolves MAC addresses of hosts on the local link.
// It is used to annotate hosts that already answered a TCP probe; it never
// decides on its own whether a host is up.
// Note: ARP requests need raw socket privileges on most systems.
// Platform support: Linux and BSD only (not Windows).
package arp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/j-keck/arping"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultTimeout is the default timeout for ARP lookups.
	DefaultTimeout = 1 * time.Second
	// DefaultWorkers bounds concurrent ARP requests; some kernels rate-limit them.
	DefaultWorkers = 32
)

// Errors
var (
	// ErrNotSupported is returned when ARP is called on unsupported platforms.
	ErrNotSupported = errors.New("ARP lookup is not supported on this platform")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ARP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// arping keeps its timeout in a package variable.
var arpingMu sync.Mutex

// Result contains the result of an ARP lookup.
type Result struct {
	Addr     netip.Addr
	MAC      string
	Duration time.Duration
	Error    error
}

// Discovery resolves MAC addresses via ARP.
type Discovery struct {
	Timeout time.Duration
	Workers int
}

// NewDiscovery creates a new ARP discovery helper with defaults.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout, Workers: DefaultWorkers}
}

// LookupAddr sends an ARP request for addr and returns the replying MAC.
func (a *Discovery) LookupAddr(ctx context.Context, addr netip.Addr) (*Result, error) {
	result := &Result{Addr: addr}

	if !addr.Is4() {
		result.Error = ErrIPv6NotSupported
		return result, ErrIPv6NotSupported
	}

	arpingMu.Lock()
	arping.SetTimeout(a.Timeout)
	arpingMu.Unlock()

	type arpResponse struct {
		mac net.HardwareAddr
		dur time.Duration
		err error
	}
	responseChan := make(chan arpResponse, 1)

	start := time.Now()
	go func() {
		mac, dur, err := arping.Ping(net.IP(addr.AsSlice()))
		responseChan <- arpResponse{mac: mac, dur: dur, err: err}
	}()

	select {
	case <-ctx.Done():
		result.Duration = time.Since(start)
		result.Error = ctx.Err()
		debugLog("%s: cancelled", addr)
		return result, ctx.Err()
	case resp := <-responseChan:
		result.Duration = resp.dur
		if resp.err != nil {
			result.Error = resp.err
			debugLog("%s: %v", addr, resp.err)
			return result, resp.err
		}
		result.MAC = resp.mac.String()
		debugLog("%s -> %s (%.2fms)", addr, result.MAC, float64(resp.dur.Microseconds())/1000)
		return result, nil
	}
}

// LookupMultiple resolves many addresses concurrently, at most Workers at a
// time. Results are in input order; entries are nil for lookups skipped on
// cancellation.
func (a *Discovery) LookupMultiple(ctx context.Context, addrs []netip.Addr) []*Result {
	results := make([]*Result, len(addrs))

	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for i, addr := range addrs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, addr netip.Addr) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx], _ = a.LookupAddr(ctx, addr)
		}(i, addr)
	}

	wg.Wait()
	return results
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return true
}
