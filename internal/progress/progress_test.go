package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestNilBar(t *testing.T) {
	var b *Bar
	b.Update(1, 2)
	b.Finish()

	if NewWriter(&bytes.Buffer{}, "scan", false) != nil {
		t.Error("disabled bar should be nil")
	}
}

func TestBar_Throttle(t *testing.T) {
	var buf bytes.Buffer
	b := NewWriter(&buf, "scan", true)

	b.Update(1, 100)
	first := buf.Len()
	if first == 0 {
		t.Fatal("first update drew nothing")
	}
	b.Update(2, 100)
	if buf.Len() != first {
		t.Error("update within refresh interval was drawn")
	}
	b.Update(100, 100)
	if buf.Len() == first {
		t.Error("final update was dropped")
	}
	if !strings.Contains(buf.String(), "100/100") {
		t.Errorf("missing counter in %q", buf.String())
	}

	b.Finish()
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("Finish did not end the line")
	}
}

func TestBar_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	b := NewWriter(&buf, "scan", true)
	b.Update(0, 0)
	b.Finish()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
