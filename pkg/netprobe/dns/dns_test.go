// Package dns tests for reverse lookups.
package dns

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
)

// startServer runs an in-process DNS server answering PTR queries from names.
func startServer(t *testing.T, names map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	handler := mdns.HandlerFunc(func(w mdns.ResponseWriter, r *mdns.Msg) {
		m := new(mdns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if host, ok := names[q.Name]; ok && q.Qtype == mdns.TypePTR {
			m.Answer = append(m.Answer, &mdns.PTR{
				Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypePTR, Class: mdns.ClassINET, Ttl: 60},
				Ptr: host,
			})
		} else {
			m.Rcode = mdns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestNewDiscovery(t *testing.T) {
	d := NewDiscovery()
	if d == nil {
		t.Fatal("NewDiscovery returned nil")
	}
	if d.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, d.Timeout)
	}
	if d.Workers != DefaultWorkers {
		t.Errorf("Expected workers %d, got %d", DefaultWorkers, d.Workers)
	}
	if d.ConfigFile != DefaultConfigFile {
		t.Errorf("Expected config file %s, got %s", DefaultConfigFile, d.ConfigFile)
	}
}

func TestLookupAddr_Found(t *testing.T) {
	server := startServer(t, map[string]string{
		"5.0.0.10.in-addr.arpa.": "printer.lan.",
	})

	d := NewDiscovery()
	d.Timeout = time.Second
	d.Servers = []string{server}

	res, err := d.LookupAddr(context.Background(), netip.MustParseAddr("10.0.0.5"))
	if err != nil {
		t.Fatalf("LookupAddr failed: %v", err)
	}
	if res.Hostname != "printer.lan" {
		t.Errorf("Hostname = %q, want printer.lan", res.Hostname)
	}
	if res.Server != server {
		t.Errorf("Server = %q, want %q", res.Server, server)
	}
}

func TestLookupAddr_NotFound(t *testing.T) {
	server := startServer(t, nil)

	d := NewDiscovery()
	d.Timeout = time.Second
	d.Servers = []string{server}

	res, err := d.LookupAddr(context.Background(), netip.MustParseAddr("10.0.0.6"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if res.Hostname != "" {
		t.Errorf("expected empty hostname, got %q", res.Hostname)
	}
}

func TestLookupMultiple_PreservesOrder(t *testing.T) {
	server := startServer(t, map[string]string{
		"1.1.168.192.in-addr.arpa.": "gw.lan.",
		"3.1.168.192.in-addr.arpa.": "nas.lan.",
	})

	d := NewDiscovery()
	d.Timeout = time.Second
	d.Workers = 2
	d.Servers = []string{server}

	addrs := []netip.Addr{
		netip.MustParseAddr("192.168.1.1"),
		netip.MustParseAddr("192.168.1.2"),
		netip.MustParseAddr("192.168.1.3"),
	}
	results := d.LookupMultiple(context.Background(), addrs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"gw.lan", "", "nas.lan"}
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d is nil", i)
		}
		if r.Addr != addrs[i] {
			t.Errorf("result %d addr = %s, want %s", i, r.Addr, addrs[i])
		}
		if r.Hostname != want[i] {
			t.Errorf("result %d hostname = %q, want %q", i, r.Hostname, want[i])
		}
	}
}

func TestLookupMultiple_Empty(t *testing.T) {
	d := NewDiscovery()
	if results := d.LookupMultiple(context.Background(), nil); results != nil {
		t.Errorf("Expected nil for empty input, got %v", results)
	}
}

func TestLookupMultiple_ContextCancellation(t *testing.T) {
	d := NewDiscovery()
	d.Timeout = 100 * time.Millisecond
	d.Servers = []string{"127.0.0.1:1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.LookupMultiple(ctx, []netip.Addr{
		netip.MustParseAddr("192.168.1.1"),
		netip.MustParseAddr("192.168.1.2"),
	})
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestNameservers_FromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	if err := os.WriteFile(path, []byte("nameserver 192.0.2.53\nnameserver 192.0.2.54\n"), 0o644); err != nil {
		t.Fatalf("write resolv.conf: %v", err)
	}

	d := NewDiscovery()
	d.ConfigFile = path
	got := d.nameservers()
	if len(got) != 2 || got[0] != "192.0.2.53:53" || got[1] != "192.0.2.54:53" {
		t.Errorf("nameservers() = %v", got)
	}
}

func TestNameservers_MissingConfigFile(t *testing.T) {
	d := NewDiscovery()
	d.ConfigFile = filepath.Join(t.TempDir(), "missing.conf")
	if got := d.nameservers(); len(got) != 0 {
		t.Errorf("expected no nameservers, got %v", got)
	}
}
