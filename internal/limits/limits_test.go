package limits

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		workers int
		limit   uint64
		want    int
	}{
		{64, 1024, 64},
		{5000, 1024, 1024 - Reserve},
		{0, 1024, 1},
		{-5, 1024, 1},
		{10, Reserve, 1},
		{10, 0, 1},
		{4096, ^uint64(0), 4096},
	}
	for _, tt := range tests {
		if got := clamp(tt.workers, tt.limit); got != tt.want {
			t.Errorf("clamp(%d, %d) = %d, want %d", tt.workers, tt.limit, got, tt.want)
		}
	}
}

func TestSuggestedWorkers(t *testing.T) {
	n := SuggestedWorkers()
	if n < 1 || n > MaxSuggested {
		t.Errorf("SuggestedWorkers() = %d", n)
	}
}

func TestClampWorkers_NeverZero(t *testing.T) {
	if got := ClampWorkers(1); got != 1 {
		t.Errorf("ClampWorkers(1) = %d", got)
	}
}
