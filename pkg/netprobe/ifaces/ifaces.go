// Package ifaces enumerates the IPv4 networks attached to this machine.
//
// Interface data comes from gopsutil, which reads it the same way on Linux,
// BSD, macOS and Windows.
package ifaces

import (
	"context"
	"fmt"
	"net/netip"
	"slices"

	gnet "github.com/shirou/gopsutil/v3/net"
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from interface enumeration.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Record is one IPv4 address configured on an interface.
type Record struct {
	Name    string
	MAC     string
	Address netip.Addr
	// Prefix is the attached network with host bits cleared.
	Prefix netip.Prefix
}

// String formats the record as "name address/bits".
func (r Record) String() string {
	return fmt.Sprintf("%s %s/%d", r.Name, r.Address, r.Prefix.Bits())
}

// Options filters enumerated interfaces.
type Options struct {
	// IncludeLoopback keeps loopback interfaces.
	IncludeLoopback bool
	// IncludeDown keeps interfaces that are administratively down.
	IncludeDown bool
}

// EnumerationError reports that the interface list could not be read.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return "enumerate interfaces: " + e.Err.Error()
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// Lister returns the raw interface list. gnet.InterfacesWithContext satisfies it.
type Lister func(ctx context.Context) (gnet.InterfaceStatList, error)

// Enumerator lists interface networks.
type Enumerator struct {
	list Lister
}

// NewEnumerator returns an Enumerator reading the system interface table.
func NewEnumerator() *Enumerator {
	return &Enumerator{list: gnet.InterfacesWithContext}
}

// NewEnumeratorWith returns an Enumerator backed by list.
func NewEnumeratorWith(list Lister) *Enumerator {
	return &Enumerator{list: list}
}

// List returns one Record per IPv4 address, ordered by interface name and
// then by address. IPv6 addresses are skipped.
func (e *Enumerator) List(ctx context.Context, opts Options) ([]Record, error) {
	stats, err := e.list(ctx)
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	var out []Record
	for _, st := range stats {
		up := slices.Contains(st.Flags, "up")
		loopback := slices.Contains(st.Flags, "loopback")
		if !up && !opts.IncludeDown {
			debugLog("%s: skipped, interface down", st.Name)
			continue
		}
		if loopback && !opts.IncludeLoopback {
			debugLog("%s: skipped, loopback", st.Name)
			continue
		}

		for _, a := range st.Addrs {
			pfx, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				debugLog("%s: unparsable address %q: %v", st.Name, a.Addr, err)
				continue
			}
			addr := pfx.Addr().Unmap()
			if !addr.Is4() {
				continue
			}
			masked, err := addr.Prefix(pfx.Bits())
			if err != nil {
				continue
			}
			out = append(out, Record{Name: st.Name, MAC: st.HardwareAddr, Address: addr, Prefix: masked})
		}
	}

	slices.SortStableFunc(out, func(a, b Record) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return a.Address.Compare(b.Address)
	})
	debugLog("found %d IPv4 addresses", len(out))
	return out, nil
}

// Subnets returns the distinct attached networks in ascending order.
func (e *Enumerator) Subnets(ctx context.Context, opts Options) ([]netip.Prefix, error) {
	recs, err := e.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	subnets := make([]netip.Prefix, 0, len(recs))
	for _, r := range recs {
		subnets = append(subnets, r.Prefix)
	}
	slices.SortFunc(subnets, comparePrefix)
	return slices.Compact(subnets), nil
}

// Addresses returns this machine's own IPv4 addresses in ascending order.
func (e *Enumerator) Addresses(ctx context.Context, opts Options) ([]netip.Addr, error) {
	recs, err := e.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	addrs := make([]netip.Addr, 0, len(recs))
	for _, r := range recs {
		addrs = append(addrs, r.Address)
	}
	slices.SortFunc(addrs, netip.Addr.Compare)
	return slices.Compact(addrs), nil
}

// List enumerates the system interfaces.
func List(ctx context.Context, opts Options) ([]Record, error) {
	return NewEnumerator().List(ctx, opts)
}

// Subnets returns the distinct networks attached to the system interfaces.
func Subnets(ctx context.Context, opts Options) ([]netip.Prefix, error) {
	return NewEnumerator().Subnets(ctx, opts)
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}
