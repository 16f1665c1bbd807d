package netprobe

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config configures an Executor.
type Config struct {
	// Workers is the number of concurrent connect attempts. Must be >= 1.
	Workers int
	// Timeout bounds each connect attempt. Must be > 0.
	Timeout time.Duration
	// Dialer opens connections. Nil uses a net.Dialer with keep-alive disabled.
	Dialer Dialer
	// StopOnExhaustion stops dispatching new candidates once an attempt fails
	// because the process ran out of file descriptors.
	StopOnExhaustion bool
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Workers: DefaultWorkers,
		Timeout: DefaultTimeout,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return &ConfigError{Field: "workers", Value: strconv.Itoa(c.Workers), Reason: "must be at least 1"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Value: c.Timeout.String(), Reason: "must be positive"}
	}
	return nil
}

// ProgressFunc is called by Executor.Run after each outcome is accounted for.
// It runs on the collecting goroutine and must not block for long.
type ProgressFunc func(o Outcome, accounted, expected uint64)

// Executor probes candidates on a bounded worker pool.
type Executor struct {
	cfg    Config
	dialer Dialer
}

// NewExecutor validates cfg and returns an Executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := cfg.Dialer
	if d == nil {
		d = &net.Dialer{KeepAlive: -1}
	}
	return &Executor{cfg: cfg, dialer: d}, nil
}

// Config returns the executor configuration.
func (e *Executor) Config() Config { return e.cfg }

// Probe performs one connect attempt and classifies it. The connection, if
// any, is closed before Probe returns.
func (e *Executor) Probe(ctx context.Context, c target.Candidate) Outcome {
	out := Outcome{Candidate: c}
	if !c.Host.Is4() || c.Port == 0 {
		out.Status = StatusError
		out.Err = fmt.Errorf("%w: %s", ErrInvalidCandidate, c)
		return out
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := e.dialer.DialContext(dialCtx, "tcp4", c.String())
	out.RTT = time.Since(start)
	if err == nil {
		_ = conn.Close()
		out.Status = StatusOpen
		debugLog(ComponentProbe, "%s open (%.2fms)", c, float64(out.RTT.Microseconds())/1000)
		return out
	}

	out.Status = classify(err)
	out.Err = err
	debugLogVerbose(ComponentProbe, "%s %s: %v", c, out.Status, err)
	return out
}

// classify maps a dial error to a Status.
func classify(err error) Status {
	if isRefused(err) {
		return StatusClosed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusError
}

// Stream probes every candidate yielded by candidates and returns a channel
// of outcomes, one per dispatched candidate. The channel is closed after the
// last worker exits. When ctx is cancelled no further candidates are
// dispatched and in-flight attempts end within one timeout.
//
// The caller must drain the channel.
func (e *Executor) Stream(ctx context.Context, candidates iter.Seq[target.Candidate]) <-chan Outcome {
	return e.stream(ctx, nil, candidates)
}

// stream is Stream with an extra stop channel that halts dispatch without
// cancelling in-flight attempts.
func (e *Executor) stream(ctx context.Context, stop <-chan struct{}, candidates iter.Seq[target.Candidate]) <-chan Outcome {
	jobs := make(chan target.Candidate, e.cfg.Workers)
	results := make(chan Outcome, e.cfg.Workers)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for c := range jobs {
			results <- e.Probe(ctx, c)
		}
	}

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
	enqueue:
		for c := range candidates {
			if ctx.Err() != nil {
				break
			}
			select {
			case <-stop:
				debugLog(ComponentProbe, "dispatch stopped before %s", c)
				break enqueue
			default:
			}
			select {
			case <-ctx.Done():
				break enqueue
			case <-stop:
				debugLog(ComponentProbe, "dispatch stopped before %s", c)
				break enqueue
			case jobs <- c:
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	return results
}

// Run probes every candidate of scan and aggregates the outcomes.
//
// On completion it returns the sorted report and a nil error. If ctx is
// cancelled it returns what was collected (Complete == false) together with
// an error wrapping ctx.Err(). If any attempt failed for lack of file
// descriptors the report is returned with a *SystemError.
func (e *Executor) Run(ctx context.Context, scan *target.Scan, progress ProgressFunc) (*Report, error) {
	if scan == nil {
		return nil, &ConfigError{Field: "scan", Value: "<nil>", Reason: "no candidates to probe"}
	}

	agg := NewAggregator(scan)
	debugLog(ComponentProbe, "probing %d candidates (%d hosts x %d ports), workers=%d timeout=%v",
		scan.Count(), scan.HostCount(), len(scan.Ports()), e.cfg.Workers, e.cfg.Timeout)

	started := time.Now()
	stop := make(chan struct{})
	stopped := false
	var sysErr *SystemError

	for o := range e.stream(ctx, stop, scan.All()) {
		if err := agg.Add(o); err != nil {
			debugLog(ComponentReport, "dropped outcome: %v", err)
			continue
		}
		if o.Status == StatusError && isExhausted(o.Err) {
			if sysErr == nil {
				sysErr = &SystemError{Op: "connect " + o.Candidate.String(), Err: fmt.Errorf("%w: %w", ErrResourceExhausted, o.Err)}
				debugLog(ComponentProbe, "resource exhaustion: %v", o.Err)
			}
			if e.cfg.StopOnExhaustion && !stopped {
				close(stop)
				stopped = true
			}
		}
		if progress != nil {
			progress(o, agg.Accounted(), agg.Expected())
		}
	}

	debugLog(ComponentProbe, "accounted %d/%d outcomes in %v", agg.Accounted(), agg.Expected(), time.Since(started))

	if err := ctx.Err(); err != nil {
		rep := agg.Partial()
		return rep, fmt.Errorf("scan interrupted after %d of %d candidates: %w", rep.Accounted, rep.Expected, err)
	}

	rep, err := agg.Report()
	if err != nil {
		rep = agg.Partial()
		if sysErr != nil {
			return rep, sysErr
		}
		return rep, err
	}
	if sysErr != nil {
		return rep, sysErr
	}
	return rep, nil
}
