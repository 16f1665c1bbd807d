// Package target expands scan targets into probe candidates.
//
// A target is either a bare IPv4 address or a CIDR block. Combined with a set
// of TCP ports it yields the full cross product of (host, port) candidates in
// ascending host, then ascending port order.
//
// Host selection for CIDR blocks:
//   - /0 through /30: network and broadcast addresses are excluded
//   - /31: both addresses are used (point-to-point link, RFC 3021)
//   - /32 or a bare address: the single address
package target

import (
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"go4.org/netipx"
)

// ErrValidation is matched by every error this package returns for bad input.
var ErrValidation = errors.New("validation failed")

// ParseError reports a token that could not be parsed.
type ParseError struct {
	Token  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %q: %s", e.Token, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrValidation }

// RangeError reports a numeric value outside its allowed bounds.
type RangeError struct {
	What  string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.What, e.Value, e.Min, e.Max)
}

func (e *RangeError) Is(target error) bool { return target == ErrValidation }

// Candidate is one (host, port) pair scheduled for a single probe.
type Candidate struct {
	Host netip.Addr
	Port uint16
}

// String returns host:port.
func (c Candidate) String() string {
	return netip.AddrPortFrom(c.Host, c.Port).String()
}

// Compare orders candidates by host, then port.
func (c Candidate) Compare(o Candidate) int {
	if n := c.Host.Compare(o.Host); n != 0 {
		return n
	}
	switch {
	case c.Port < o.Port:
		return -1
	case c.Port > o.Port:
		return 1
	}
	return 0
}

// Spec is a parsed target: a single host or a CIDR block.
type Spec struct {
	Input  string
	Prefix netip.Prefix // masked; /32 for a single host
	Single bool
}

// ParseSpec parses an IPv4 literal ("10.0.0.5") or CIDR ("10.0.0.0/24").
// Host bits in a CIDR are masked off.
func ParseSpec(s string) (Spec, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return Spec{}, &ParseError{Token: s, Reason: "empty target"}
	}

	addrPart, bitsPart, hasBits := strings.Cut(in, "/")
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return Spec{}, &ParseError{Token: addrPart, Reason: "not an IPv4 address", Err: err}
	}
	if !addr.Is4() {
		return Spec{}, &ParseError{Token: addrPart, Reason: "only IPv4 targets are supported"}
	}

	if !hasBits {
		return Spec{Input: in, Prefix: netip.PrefixFrom(addr, 32), Single: true}, nil
	}

	bits, err := strconv.Atoi(bitsPart)
	if err != nil {
		return Spec{}, &ParseError{Token: bitsPart, Reason: "prefix length is not a number", Err: err}
	}
	if bits < 0 || bits > 32 {
		return Spec{}, &RangeError{What: "prefix length", Value: bits, Min: 0, Max: 32}
	}

	return Spec{Input: in, Prefix: netip.PrefixFrom(addr, bits).Masked()}, nil
}

// MustParseSpec is like ParseSpec but panics on error. Intended for tests and constants.
func MustParseSpec(s string) Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// String returns the CIDR form, or the bare address for a single host.
func (s Spec) String() string {
	if s.Single {
		return s.Prefix.Addr().String()
	}
	return s.Prefix.String()
}

// HostRange returns the usable host addresses of the spec as one contiguous range.
func (s Spec) HostRange() netipx.IPRange {
	full := netipx.RangeOfPrefix(s.Prefix)
	if s.Prefix.Bits() >= 31 {
		return full
	}
	return netipx.IPRangeFrom(full.From().Next(), full.To().Prev())
}

// HostCount returns the number of usable hosts in the spec.
func (s Spec) HostCount() uint64 {
	return rangeLen(s.HostRange())
}

// PortRange is an inclusive range of TCP ports.
type PortRange struct {
	Start uint16
	End   uint16
}

// NewPortRange validates and builds a port range.
func NewPortRange(start, end int) (PortRange, error) {
	if start < 1 || start > 65535 {
		return PortRange{}, &RangeError{What: "start port", Value: start, Min: 1, Max: 65535}
	}
	if end < 1 || end > 65535 {
		return PortRange{}, &RangeError{What: "end port", Value: end, Min: 1, Max: 65535}
	}
	if start > end {
		return PortRange{}, &RangeError{What: "start port", Value: start, Min: 1, Max: end}
	}
	return PortRange{Start: uint16(start), End: uint16(end)}, nil
}

// ParsePortRange parses start and end port tokens.
func ParsePortRange(start, end string) (PortRange, error) {
	s, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return PortRange{}, &ParseError{Token: start, Reason: "port is not a number", Err: err}
	}
	e, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return PortRange{}, &ParseError{Token: end, Reason: "port is not a number", Err: err}
	}
	return NewPortRange(s, e)
}

// Validate checks 1 <= Start <= End.
func (r PortRange) Validate() error {
	_, err := NewPortRange(int(r.Start), int(r.End))
	return err
}

// Len returns the number of ports in the range.
func (r PortRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End) - int(r.Start) + 1
}

// Ports returns every port in the range in ascending order.
func (r PortRange) Ports() []uint16 {
	ports := make([]uint16, 0, r.Len())
	for p := int(r.Start); p <= int(r.End); p++ {
		ports = append(ports, uint16(p))
	}
	return ports
}

// Scan is the finite, restartable candidate set of one scan.
// It is immutable once built and safe for concurrent readers.
type Scan struct {
	specs     []Spec
	ranges    []netipx.IPRange
	hostCount uint64
	ports     []uint16
}

// New builds a scan over the union of specs, minus exclude, across a port range.
func New(specs []Spec, ports PortRange, exclude ...netip.Addr) (*Scan, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	return NewWithPorts(specs, ports.Ports(), exclude...)
}

// NewWithPorts builds a scan over an explicit port list. Ports are sorted and
// deduplicated; overlapping specs contribute each host once.
func NewWithPorts(specs []Spec, ports []uint16, exclude ...netip.Addr) (*Scan, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no targets given", ErrValidation)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("%w: no ports given", ErrValidation)
	}

	ps := slices.Clone(ports)
	slices.Sort(ps)
	ps = slices.Compact(ps)
	if ps[0] == 0 {
		return nil, &RangeError{What: "port", Value: 0, Min: 1, Max: 65535}
	}

	var b netipx.IPSetBuilder
	for _, spec := range specs {
		if !spec.Prefix.IsValid() || !spec.Prefix.Addr().Is4() {
			return nil, &ParseError{Token: spec.Input, Reason: "not an IPv4 target"}
		}
		b.AddRange(spec.HostRange())
	}
	for _, addr := range exclude {
		b.Remove(addr)
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("build host set: %w", err)
	}

	s := &Scan{
		specs:  slices.Clone(specs),
		ranges: set.Ranges(),
		ports:  ps,
	}
	for _, r := range s.ranges {
		s.hostCount += rangeLen(r)
	}
	return s, nil
}

// Specs returns the specs the scan was built from.
func (s *Scan) Specs() []Spec { return slices.Clone(s.specs) }

// Ports returns the sorted port list.
func (s *Scan) Ports() []uint16 { return slices.Clone(s.ports) }

// HostCount returns the number of distinct hosts.
func (s *Scan) HostCount() uint64 { return s.hostCount }

// Count returns the number of candidates: hosts x ports.
func (s *Scan) Count() uint64 { return s.hostCount * uint64(len(s.ports)) }

// PortIndex returns the position of port in Ports.
func (s *Scan) PortIndex(port uint16) (int, bool) {
	return slices.BinarySearch(s.ports, port)
}

// ContainsHost reports whether addr is one of the scan's hosts.
func (s *Scan) ContainsHost(addr netip.Addr) bool {
	for _, r := range s.ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// Contains reports whether c belongs to the scan.
func (s *Scan) Contains(c Candidate) bool {
	if _, ok := s.PortIndex(c.Port); !ok {
		return false
	}
	return s.ContainsHost(c.Host)
}

// Hosts yields every host in ascending order.
func (s *Scan) Hosts() iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		for _, r := range s.ranges {
			last := r.To()
			for a := r.From(); ; a = a.Next() {
				if !yield(a) {
					return
				}
				if a == last {
					break
				}
			}
		}
	}
}

// All yields every candidate, ascending by host then port. Each call starts
// a fresh iteration.
func (s *Scan) All() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for host := range s.Hosts() {
			for _, port := range s.ports {
				if !yield(Candidate{Host: host, Port: port}) {
					return
				}
			}
		}
	}
}

func rangeLen(r netipx.IPRange) uint64 {
	if !r.IsValid() {
		return 0
	}
	return uint64(addrToUint32(r.To())) - uint64(addrToUint32(r.From())) + 1
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(u uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}
