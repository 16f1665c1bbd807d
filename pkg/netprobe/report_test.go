package netprobe

import (
	"bytes"
	"errors"
	"math/rand"
	"net/netip"
	"reflect"
	"sync"
	"testing"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func outcome(host string, port uint16, st Status) Outcome {
	return Outcome{Candidate: target.Candidate{Host: mustAddr(host), Port: port}, Status: st}
}

func TestAggregator_ArbitraryOrderSortedReport(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 100}, "10.0.0.0/29")

	var outcomes []Outcome
	for c := range scan.All() {
		st := StatusClosed
		switch {
		case c.Host == mustAddr("10.0.0.6") && (c.Port == 80 || c.Port == 22):
			st = StatusOpen
		case c.Host == mustAddr("10.0.0.2") && c.Port == 99:
			st = StatusOpen
		case c.Port == 50:
			st = StatusTimeout
		}
		outcomes = append(outcomes, Outcome{Candidate: c, Status: st})
	}
	rand.New(rand.NewSource(1)).Shuffle(len(outcomes), func(i, j int) {
		outcomes[i], outcomes[j] = outcomes[j], outcomes[i]
	})

	agg := NewAggregator(scan)
	for _, o := range outcomes {
		if err := agg.Add(o); err != nil {
			t.Fatalf("Add(%s): %v", o.Candidate, err)
		}
	}
	if !agg.Done() {
		t.Fatalf("aggregator not done: %d/%d", agg.Accounted(), agg.Expected())
	}

	rep, err := agg.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := []HostPorts{
		{Host: mustAddr("10.0.0.2"), Ports: []uint16{99}},
		{Host: mustAddr("10.0.0.6"), Ports: []uint16{22, 80}},
	}
	if !reflect.DeepEqual(rep.Hosts, want) {
		t.Errorf("hosts = %v, want %v", rep.Hosts, want)
	}
	if rep.Summary.Timeout != 6 || rep.Summary.Open != 3 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if rep.OpenCount() != 3 {
		t.Errorf("OpenCount = %d", rep.OpenCount())
	}
	if _, ok := rep.Ports(mustAddr("10.0.0.3")); ok {
		t.Error("host without open ports should not be reported")
	}
}

func TestAggregator_Duplicate(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 2}, "10.0.0.1")
	agg := NewAggregator(scan)

	if err := agg.Add(outcome("10.0.0.1", 1, StatusOpen)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := agg.Add(outcome("10.0.0.1", 1, StatusClosed))
	if !errors.Is(err, ErrDuplicateOutcome) {
		t.Fatalf("expected ErrDuplicateOutcome, got %v", err)
	}
	if agg.Accounted() != 1 {
		t.Errorf("duplicate was counted: %d", agg.Accounted())
	}
}

func TestAggregator_Unexpected(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 2}, "10.0.0.1")
	agg := NewAggregator(scan)

	for _, o := range []Outcome{
		outcome("10.0.0.2", 1, StatusOpen),
		outcome("10.0.0.1", 3, StatusOpen),
	} {
		if err := agg.Add(o); !errors.Is(err, ErrUnexpectedOutcome) {
			t.Errorf("Add(%s): expected ErrUnexpectedOutcome, got %v", o.Candidate, err)
		}
	}
}

func TestAggregator_Incomplete(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 3}, "10.0.0.1")
	agg := NewAggregator(scan)
	_ = agg.Add(outcome("10.0.0.1", 2, StatusOpen))

	if _, err := agg.Report(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	p := agg.Partial()
	if p.Complete || p.Accounted != 1 || p.Expected != 3 {
		t.Errorf("partial = %+v", p)
	}
	if ports, ok := p.Ports(mustAddr("10.0.0.1")); !ok || !reflect.DeepEqual(ports, []uint16{2}) {
		t.Errorf("partial ports = %v", ports)
	}
}

func TestAggregator_FailuresCapped(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 200}, "10.0.0.1")
	agg := NewAggregator(scan)
	for p := 200; p >= 1; p-- {
		o := outcome("10.0.0.1", uint16(p), StatusError)
		o.Err = errors.New("no route to host")
		_ = agg.Add(o)
	}
	rep, err := agg.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.Summary.Errored != 200 {
		t.Errorf("Errored = %d", rep.Summary.Errored)
	}
	if len(rep.Failures) != MaxRecordedFailures {
		t.Fatalf("kept %d failures, want %d", len(rep.Failures), MaxRecordedFailures)
	}
	for i := 1; i < len(rep.Failures); i++ {
		if rep.Failures[i-1].Candidate.Compare(rep.Failures[i].Candidate) >= 0 {
			t.Fatalf("failures not sorted at %d", i)
		}
	}
	if rep.Failures[0].Reason() != "no route to host" {
		t.Errorf("Reason = %q", rep.Failures[0].Reason())
	}
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	scan := mustScan(t, target.PortRange{Start: 1, End: 130}, "10.0.0.0/28")
	agg := NewAggregator(scan)

	ch := make(chan Outcome)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range ch {
				if err := agg.Add(o); err != nil {
					t.Errorf("Add: %v", err)
				}
			}
		}()
	}
	for c := range scan.All() {
		st := StatusClosed
		if c.Port == 130 || c.Port == 64 {
			st = StatusOpen
		}
		ch <- Outcome{Candidate: c, Status: st}
	}
	close(ch)
	wg.Wait()

	rep, err := agg.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rep.Hosts) != 14 {
		t.Fatalf("got %d hosts, want 14", len(rep.Hosts))
	}
	for _, hp := range rep.Hosts {
		if !reflect.DeepEqual(hp.Ports, []uint16{64, 130}) {
			t.Errorf("%s ports = %v", hp.Host, hp.Ports)
		}
	}
}

func TestReport_WriteText(t *testing.T) {
	rep := &Report{Hosts: []HostPorts{
		{Host: mustAddr("10.0.0.5"), Ports: []uint16{22, 80, 443}},
		{Host: mustAddr("10.0.0.17"), Ports: []uint16{8080}},
	}}
	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	want := "10.0.0.5   22,80,443\n10.0.0.17  8080\n"
	if buf.String() != want {
		t.Errorf("WriteText =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestReport_WriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Report{}).WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
