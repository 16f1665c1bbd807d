package netprobe

import (
	"errors"
	"fmt"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

// ErrValidation is matched by every input or configuration error. A scan that
// fails validation never dials anything.
var ErrValidation = target.ErrValidation

var (
	// ErrResourceExhausted is wrapped by SystemError when the process ran out
	// of file descriptors or socket buffers.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrDuplicateOutcome is returned by Aggregator.Add for a candidate already accounted for.
	ErrDuplicateOutcome = errors.New("duplicate outcome")
	// ErrUnexpectedOutcome is returned by Aggregator.Add for a candidate outside the scan.
	ErrUnexpectedOutcome = errors.New("outcome for candidate outside the scan")
	// ErrIncomplete is returned while outcomes are still missing.
	ErrIncomplete = errors.New("scan incomplete")
	// ErrInvalidCandidate marks a probe for a non-IPv4 host or port 0.
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// ConfigError reports an invalid executor or annotator setting.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrValidation }

// SystemError reports an operating system failure that affects the whole scan.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }
