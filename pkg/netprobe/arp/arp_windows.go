//go:build windows

// Package arp resolves MAC addresses of hosts on the local link.
// This file provides stubs for Windows where arping is not available.
package arp

import (
	"context"
	"errors"
	"net/netip"
	"time"
)

const (
	// DefaultTimeout is the default timeout for ARP lookups.
	DefaultTimeout = 1 * time.Second
	// DefaultWorkers bounds concurrent ARP requests.
	DefaultWorkers = 32
)

// Errors
var (
	// ErrNotSupported is returned when ARP is called on unsupported platforms.
	ErrNotSupported = errors.New("ARP lookup is not supported on Windows")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
var DebugLogger func(format string, args ...interface{})

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

// NewDiscovery returns a stub whose lookups always fail with ErrNotSupported.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout, Workers: DefaultWorkers}
}

// LookupAddr always returns ErrNotSupported.
func (a *Discovery) LookupAddr(ctx context.Context, addr netip.Addr) (*Result, error) {
	return &Result{Addr: addr, Error: ErrNotSupported}, ErrNotSupported
}

// LookupMultiple returns one ErrNotSupported result per address.
func (a *Discovery) LookupMultiple(ctx context.Context, addrs []netip.Addr) []*Result {
	results := make([]*Result, len(addrs))
	for i, addr := range addrs {
		results[i] = &Result{Addr: addr, Error: ErrNotSupported}
	}
	return results
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return false
}
