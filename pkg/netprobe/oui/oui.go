// Package oui provides MAC address vendor lookup using the IEEE OUI database.
// This package resolves MAC addresses to vendor/manufacturer names.
package oui

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/klauspost/oui"
)

// ErrNoDatabase is returned by lookups on a nil *DB.
var ErrNoDatabase = errors.New("no OUI database loaded")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from OUI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// VendorInfo contains information about a MAC address vendor.
type VendorInfo struct {
	Manufacturer string
	Address      []string
	Country      string
	Prefix       string
}

// DB is a loaded OUI database. It is read-only and safe for concurrent use.
type DB struct {
	path string
	db   oui.OuiDB
}

// Open loads an IEEE oui.txt file.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("OUI database file not found: %w", err)
	}
	debugLog("Loading OUI database from: %s", path)
	db, err := oui.OpenStaticFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OUI database: %w", err)
	}
	debugLog("OUI database loaded from %s", path)
	return &DB{path: path, db: db}, nil
}

// Load reads an oui.txt formatted database from r.
func Load(r io.Reader) (*DB, error) {
	db, err := oui.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OUI database: %w", err)
	}
	return &DB{db: db}, nil
}

// Path returns the file the database was loaded from, if any.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Lookup looks up the vendor information for a MAC address.
// The MAC address can be in various formats: "00:11:22:33:44:55", "00-11-22-33-44-55", "001122334455".
// An unknown vendor returns (nil, nil).
func (d *DB) Lookup(mac string) (*VendorInfo, error) {
	if d == nil || d.db == nil {
		return nil, ErrNoDatabase
	}

	norm := NormalizeMAC(mac)
	if norm == "" {
		return nil, fmt.Errorf("invalid MAC address format: %q", mac)
	}

	hwAddr, err := net.ParseMAC(norm)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MAC address: %w", err)
	}

	entry, err := d.db.Query(hwAddr.String())
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			debugLog("%s: vendor not found in database", norm)
			return nil, nil
		}
		return nil, fmt.Errorf("OUI lookup failed: %w", err)
	}

	vendor := &VendorInfo{
		Manufacturer: entry.Manufacturer,
		Prefix:       entry.Prefix.String(),
		Country:      entry.Country,
	}
	if len(entry.Address) > 0 {
		vendor.Address = entry.Address
	}

	debugLog("%s -> %s", norm, vendor.Manufacturer)
	return vendor, nil
}

// LookupName returns just the manufacturer name, or "" if unknown.
func (d *DB) LookupName(mac string) string {
	vendor, err := d.Lookup(mac)
	if err != nil || vendor == nil {
		return ""
	}
	return vendor.Manufacturer
}

// NormalizeMAC converts "00-11-22-33-44-55", "0011.2233.4455" and similar
// spellings to "00:11:22:33:44:55". Returns "" if invalid.
func NormalizeMAC(mac string) string {
	raw := strings.NewReplacer("-", "", ":", "", ".", "").Replace(strings.ToLower(mac))
	if len(raw) != 12 {
		return ""
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return ""
	}
	return net.HardwareAddr(b).String()
}
