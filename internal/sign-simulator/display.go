// Package simulator is a development stand-in for the LED sign daemon: it
// speaks the signwire protocol over the same local socket and keeps the
// would-be display contents in memory.
package simulator

import (
	"sync"

	"sign-scheduler-service/pkg/signwire"
)

// Display holds the items the sign would currently be rendering.
type Display struct {
	mu    sync.Mutex
	items []signwire.Item
}

func NewDisplay() *Display {
	return &Display{}
}

// Apply replaces the display contents, as a SET command does on the real sign.
func (d *Display) Apply(items []signwire.Item) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = items
}

// Clear wipes the display.
func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = nil
}

// Snapshot returns a copy of the current display contents.
func (d *Display) Snapshot() []signwire.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]signwire.Item, len(d.items))
	copy(out, d.items)
	return out
}
