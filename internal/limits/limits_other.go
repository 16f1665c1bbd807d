//go:build !unix

package limits

// FileLimit reports no limit; sockets are not bounded by a descriptor table here.
func FileLimit() (uint64, bool) {
	return 0, false
}
