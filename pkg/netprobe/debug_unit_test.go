package netprobe

import (
	"strings"
	"testing"

	"github.com/marcuoli/go-netprobe/pkg/netprobe/dns"
)

func TestDebugLog_Gating(t *testing.T) {
	oldLogger := debugLogger
	oldLevel := debugLevel
	defer func() {
		SetDebugLogger(oldLogger)
		SetDebugLevel(oldLevel)
	}()

	var calls []struct {
		component Component
		msg       string
	}

	SetDebugLogger(func(component Component, format string, args ...interface{}) {
		calls = append(calls, struct {
			component Component
			msg       string
		}{component: component, msg: format})
	})

	SetDebugLevel(DebugOff)
	debugLog(ComponentProbe, "a")
	debugLogVerbose(ComponentProbe, "b")
	if len(calls) != 0 {
		t.Fatalf("expected 0 calls with DebugOff, got %d", len(calls))
	}

	SetDebugLevel(DebugBasic)
	debugLog(ComponentProbe, "c")
	debugLogVerbose(ComponentProbe, "d")
	if len(calls) != 1 {
		t.Fatalf("expected 1 call with DebugBasic, got %d", len(calls))
	}
	if calls[0].component != ComponentProbe || calls[0].msg != "c" {
		t.Fatalf("unexpected call: %#v", calls[0])
	}

	SetDebugLevel(DebugVerbose)
	debugLogVerbose(ComponentReport, "e")
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls with DebugVerbose, got %d", len(calls))
	}
	if calls[1].component != ComponentReport || calls[1].msg != "e" {
		t.Fatalf("unexpected call: %#v", calls[1])
	}
}

func TestGetDebugLevel(t *testing.T) {
	oldLevel := GetDebugLevel()
	defer SetDebugLevel(oldLevel)

	SetDebugLevel(DebugVerbose)
	if GetDebugLevel() != DebugVerbose {
		t.Fatalf("expected DebugVerbose, got %v", GetDebugLevel())
	}
}

func TestSubpackageLoggersRouted(t *testing.T) {
	oldLogger := debugLogger
	oldLevel := debugLevel
	defer func() {
		SetDebugLogger(oldLogger)
		SetDebugLevel(oldLevel)
	}()

	var got Component
	SetDebugLogger(func(component Component, format string, args ...interface{}) {
		got = component
	})
	SetDebugLevel(DebugBasic)

	dns.DebugLogger("hello %s", "world")
	if got != ComponentDNS {
		t.Fatalf("expected dns messages tagged %q, got %q", ComponentDNS, got)
	}
}

func TestComponentToPrefix(t *testing.T) {
	tests := map[Component]string{
		ComponentProbe:     LogPrefixProbe,
		ComponentDNS:       LogPrefixDNS,
		ComponentARP:       LogPrefixARP,
		Component("bogus"): LogPrefixNetprobe,
	}
	for c, want := range tests {
		if got := ComponentToPrefix(c); got != want {
			t.Errorf("ComponentToPrefix(%q) = %q, want %q", c, got, want)
		}
		if !strings.HasPrefix(ComponentToPrefix(c), "[Netprobe") {
			t.Errorf("prefix %q lacks [Netprobe", ComponentToPrefix(c))
		}
	}
}
