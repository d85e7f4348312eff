// Package guestlog reports guest-visible misbehavior without ever failing
// the access that caused it. A memory-mapped register access always succeeds
// from the CPU's point of view; a bad offset or a poke at an unimplemented
// feature is an observability event, not an error.
package guestlog

import (
	"github.com/sirupsen/logrus"
)

type Category uint32

const (
	// GuestError flags accesses the guest should not have made, like a
	// read of a reserved offset inside a device window.
	GuestError Category = 1 << iota
	// Unimp flags registers that exist in the documentation but are
	// intentionally not modeled.
	Unimp
)

var log = logrus.New()

var mask = GuestError | Unimp

var counts = map[Category]uint64{}

// SetMask selects which categories are emitted. Suppressed categories are
// still counted.
func SetMask(m Category) {
	mask = m
}

// SetOutput redirects log output, mainly for tests.
func SetLogger(l *logrus.Logger) {
	log = l
}

func (c Category) String() string {
	switch c {
	case GuestError:
		return "guest_error"
	case Unimp:
		return "unimp"
	}
	return "unknown"
}

// Report logs a diagnosable condition against a named device.
func Report(c Category, device string, format string, args ...interface{}) {
	counts[c]++
	if mask&c == 0 {
		return
	}
	entry := log.WithFields(logrus.Fields{
		"category": c.String(),
		"device":   device,
	})
	switch c {
	case GuestError:
		entry.Warnf(format, args...)
	case Unimp:
		entry.Infof(format, args...)
	default:
		entry.Infof(format, args...)
	}
}

// BadOffset reports a read or write against an unmapped or reserved offset.
func BadOffset(device string, write bool, offset uint32) {
	verb := "reading"
	if write {
		verb = "writing"
	}
	Report(GuestError, device, "%s: %s a bad offset 0x%03x", device, verb, offset)
}

// Count returns how many conditions of the category have been reported,
// including suppressed ones.
func Count(c Category) uint64 {
	return counts[c]
}

// ResetCounts zeroes the per-category counters, for tests.
func ResetCounts() {
	counts = map[Category]uint64{}
}
