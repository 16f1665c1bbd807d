// Package limits sizes the probe worker pool to what the process may open.
package limits

import "runtime"

// Reserve is the number of descriptors kept free for stdio, DNS and logging.
const Reserve = 32

// MaxSuggested caps SuggestedWorkers.
const MaxSuggested = 4096

// ClampWorkers lowers workers so that concurrent connects cannot exceed the
// open-file limit. It never returns less than 1.
func ClampWorkers(workers int) int {
	limit, ok := FileLimit()
	if !ok {
		return workers
	}
	return clamp(workers, limit)
}

func clamp(workers int, limit uint64) int {
	if workers < 1 {
		return 1
	}
	if limit <= Reserve {
		return 1
	}
	if avail := limit - Reserve; uint64(workers) > avail {
		return int(avail)
	}
	return workers
}

// SuggestedWorkers returns 64 workers per CPU, capped at MaxSuggested and
// clamped to the open-file limit.
func SuggestedWorkers() int {
	n := runtime.NumCPU() * 64
	if n > MaxSuggested {
		n = MaxSuggested
	}
	return ClampWorkers(n)
}
