// Package memory keeps bounded histories of recently used values.
package memory

import "strings"

// DefaultSize is how many recent subjects and ISBNs are remembered.
const DefaultSize = 300

// Window is a FIFO history of strings with a maximum size.
//
// Membership is loose on purpose: a value is considered present when it
// contains a stored entry or a stored entry contains it. An ISBN embedded
// in a longer recorded token therefore still counts as a duplicate.
//
// Push never evicts. Trim brings the window back to its maximum and is
// called once at the start of every cycle, so the window may briefly hold
// more than max entries in between.
//
// A Window is not safe for concurrent use; its owner serializes access.
type Window struct {
	max     int
	entries []string
}

// NewWindow returns an empty window holding at most max entries after Trim.
// A non-positive max uses DefaultSize.
func NewWindow(max int) *Window {
	if max <= 0 {
		max = DefaultSize
	}
	return &Window{max: max}
}

// Contains reports whether value overlaps any entry by substring containment.
func (w *Window) Contains(value string) bool {
	if value == "" {
		return false
	}
	for _, entry := range w.entries {
		if strings.Contains(entry, value) || strings.Contains(value, entry) {
			return true
		}
	}
	return false
}

// Push appends value to the window. Empty values are ignored.
func (w *Window) Push(value string) {
	if value == "" {
		return
	}
	w.entries = append(w.entries, value)
}

// Trim evicts the oldest entries until the window is within its maximum.
// It returns the number of evicted entries.
func (w *Window) Trim() int {
	over := len(w.entries) - w.max
	if over <= 0 {
		return 0
	}
	// copy so the evicted prefix does not pin the backing array
	w.entries = append([]string(nil), w.entries[over:]...)
	return over
}

// Len returns the current number of entries.
func (w *Window) Len() int {
	return len(w.entries)
}

// Max returns the configured maximum size.
func (w *Window) Max() int {
	return w.max
}

// Values returns a copy of the entries, oldest first.
func (w *Window) Values() []string {
	return append([]string(nil), w.entries...)
}
