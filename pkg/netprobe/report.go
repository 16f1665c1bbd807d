package netprobe

import (
	"fmt"
	"io"
	"math/bits"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

// HostPorts lists the open ports of one host in ascending order.
type HostPorts struct {
	Host  netip.Addr
	Ports []uint16
}

// Summary counts outcomes by status.
type Summary struct {
	Open    uint64
	Closed  uint64
	Timeout uint64
	Errored uint64
}

// Report is the result of a scan. Hosts are in ascending address order and
// hosts without open ports are omitted.
type Report struct {
	Hosts     []HostPorts
	Expected  uint64
	Accounted uint64
	Summary   Summary
	// Failures holds up to MaxRecordedFailures StatusError outcomes, sorted by candidate.
	Failures []Outcome
	// Complete is true when every expected candidate was accounted for.
	Complete bool
}

// Ports returns the open ports of host.
func (r *Report) Ports(host netip.Addr) ([]uint16, bool) {
	i, ok := slices.BinarySearchFunc(r.Hosts, host, func(hp HostPorts, h netip.Addr) int {
		return hp.Host.Compare(h)
	})
	if !ok {
		return nil, false
	}
	return r.Hosts[i].Ports, true
}

// OpenCount returns the number of open (host, port) pairs.
func (r *Report) OpenCount() int {
	n := 0
	for _, hp := range r.Hosts {
		n += len(hp.Ports)
	}
	return n
}

// WriteText writes one line per host: the address followed by its open
// ports, comma-separated.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, hp := range r.Hosts {
		fmt.Fprintf(tw, "%s\t%s\n", hp.Host, joinPorts(hp.Ports))
	}
	return tw.Flush()
}

func joinPorts(ports []uint16) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}

// Aggregator collects outcomes for one scan. It is safe for concurrent use.
type Aggregator struct {
	scan  *target.Scan
	ports []uint16
	words int

	mu        sync.Mutex
	seen      map[netip.Addr][]uint64
	open      map[netip.Addr][]uint64
	accounted uint64
	summary   Summary
	failures  []Outcome
}

// NewAggregator returns an empty aggregator expecting scan.Count() outcomes.
func NewAggregator(scan *target.Scan) *Aggregator {
	ports := scan.Ports()
	return &Aggregator{
		scan:  scan,
		ports: ports,
		words: (len(ports) + 63) / 64,
		seen:  make(map[netip.Addr][]uint64),
		open:  make(map[netip.Addr][]uint64),
	}
}

// Add records one outcome. Each candidate of the scan may be added once.
func (a *Aggregator) Add(o Outcome) error {
	idx, ok := a.scan.PortIndex(o.Candidate.Port)
	if !ok || !a.scan.ContainsHost(o.Candidate.Host) {
		return fmt.Errorf("%w: %s", ErrUnexpectedOutcome, o.Candidate)
	}
	word, bit := idx/64, uint64(1)<<(idx%64)
	host := o.Candidate.Host

	a.mu.Lock()
	defer a.mu.Unlock()

	seen := a.seen[host]
	if seen == nil {
		seen = make([]uint64, a.words)
		a.seen[host] = seen
	}
	if seen[word]&bit != 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateOutcome, o.Candidate)
	}
	seen[word] |= bit
	a.accounted++

	switch o.Status {
	case StatusOpen:
		a.summary.Open++
		open := a.open[host]
		if open == nil {
			open = make([]uint64, a.words)
			a.open[host] = open
		}
		open[word] |= bit
	case StatusClosed:
		a.summary.Closed++
	case StatusTimeout:
		a.summary.Timeout++
	default:
		a.summary.Errored++
		if len(a.failures) < MaxRecordedFailures {
			a.failures = append(a.failures, o)
		}
	}
	return nil
}

// Expected returns the number of outcomes the scan will produce.
func (a *Aggregator) Expected() uint64 { return a.scan.Count() }

// Accounted returns the number of outcomes recorded so far.
func (a *Aggregator) Accounted() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accounted
}

// Done reports whether every expected outcome has been recorded.
func (a *Aggregator) Done() bool {
	return a.Accounted() == a.Expected()
}

// Report returns the final report, or ErrIncomplete while outcomes are missing.
func (a *Aggregator) Report() (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accounted < a.scan.Count() {
		return nil, fmt.Errorf("%w: %d of %d outcomes", ErrIncomplete, a.accounted, a.scan.Count())
	}
	return a.build(), nil
}

// Partial returns a report of what has been recorded so far.
func (a *Aggregator) Partial() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.build()
}

// build assembles a Report. Caller holds a.mu.
func (a *Aggregator) build() *Report {
	rep := &Report{
		Expected:  a.scan.Count(),
		Accounted: a.accounted,
		Summary:   a.summary,
		Complete:  a.accounted == a.scan.Count(),
		Failures:  slices.Clone(a.failures),
	}

	hosts := make([]netip.Addr, 0, len(a.open))
	for h := range a.open {
		hosts = append(hosts, h)
	}
	slices.SortFunc(hosts, netip.Addr.Compare)

	rep.Hosts = make([]HostPorts, 0, len(hosts))
	for _, h := range hosts {
		rep.Hosts = append(rep.Hosts, HostPorts{Host: h, Ports: a.portsOf(a.open[h])})
	}

	slices.SortFunc(rep.Failures, func(x, y Outcome) int {
		return x.Candidate.Compare(y.Candidate)
	})
	return rep
}

// portsOf expands a bitset into ascending port numbers.
func (a *Aggregator) portsOf(set []uint64) []uint16 {
	var out []uint16
	for w, word := range set {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			out = append(out, a.ports[w*64+i])
			word &= word - 1
		}
	}
	return out
}
