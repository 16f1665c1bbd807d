// Package netprobe: Debug logging support.
package netprobe

import (
	"sync"
)

// DebugLevel represents the verbosity level for debug logging.
type DebugLevel int

const (
	// DebugOff disables all debug logging.
	DebugOff DebugLevel = iota
	// DebugBasic logs scan start/finish, open ports and errors.
	DebugBasic
	// DebugVerbose additionally logs every closed, timed out and failed attempt.
	DebugVerbose
)

// DebugLogger is a callback function for debug logging.
// The component parameter names the part of the scanner that produced the message.
type DebugLogger func(component Component, format string, args ...interface{})

var (
	debugLogger DebugLogger
	debugLevel  DebugLevel
	debugMu     sync.RWMutex
)

// SetDebugLogger sets a custom debug logger callback.
// Pass nil to disable debug logging.
func SetDebugLogger(logger DebugLogger) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger = logger
}

// SetDebugLevel sets the debug verbosity level.
func SetDebugLevel(level DebugLevel) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLevel = level
}

// GetDebugLevel returns the current debug level.
func GetDebugLevel() DebugLevel {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugLevel
}

func debugLogAt(min DebugLevel, component Component, format string, args ...interface{}) {
	debugMu.RLock()
	logger := debugLogger
	level := debugLevel
	debugMu.RUnlock()

	if logger != nil && level >= min {
		logger(component, format, args...)
	}
}

// debugLog logs a message if debug logging is enabled.
func debugLog(component Component, format string, args ...interface{}) {
	debugLogAt(DebugBasic, component, format, args...)
}

// debugLogVerbose logs a message only at DebugVerbose.
func debugLogVerbose(component Component, format string, args ...interface{}) {
	debugLogAt(DebugVerbose, component, format, args...)
}
