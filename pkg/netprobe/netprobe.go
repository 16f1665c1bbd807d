// Package netprobe finds open TCP ports on local networks.
//
// A scan is described by a target.Scan (hosts x ports). The Executor runs one
// bounded TCP connect attempt per candidate on a fixed pool of workers and the
// Aggregator folds the outcomes, in whatever order they complete, into a
// Report sorted by host address and port. Connect attempts never require raw
// sockets or elevated privileges.
//
// Optional host annotation (reverse DNS, ARP and MAC vendor lookups) is done
// by the Annotator for hosts already present in a report.
package netprobe

import (
	"time"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

// Status classifies the outcome of one probe.
type Status int

const (
	// StatusOpen means the connection was accepted within the timeout.
	StatusOpen Status = iota
	// StatusClosed means the host actively refused the connection.
	StatusClosed
	// StatusTimeout means nothing answered within the timeout.
	StatusTimeout
	// StatusError covers every other failure; Outcome.Err carries the cause.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a single probe. Exactly one is produced
// per dispatched candidate.
type Outcome struct {
	Candidate target.Candidate
	Status    Status
	Err       error // nil for StatusOpen
	RTT       time.Duration
}

// Reason returns the failure cause as text, or the status name.
func (o Outcome) Reason() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Status.String()
}

// DefaultTimeout is the per-attempt connect timeout used when none is configured.
const DefaultTimeout = 500 * time.Millisecond

// DefaultWorkers is the default number of concurrent connect attempts.
const DefaultWorkers = 64

// MaxRecordedFailures caps the StatusError outcomes kept verbatim in a Report.
const MaxRecordedFailures = 64
