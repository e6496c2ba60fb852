// Package selection holds the basin selection shared across views.
package selection

import (
	"sync"

	"github.com/basinatlas/server/internal/data/geojson"
)

// Cell is an observable optional basin name. It is the single piece of
// shared mutable state: map and treemap hover interactions write it, every
// view reads it. Writes are last-writer-wins; subscribers are notified
// synchronously inside each write, in registration order.
type Cell struct {
	mu       sync.Mutex
	current  string
	selected bool
	subs     []func(name string, selected bool)
}

// NewCell returns an empty selection.
func NewCell() *Cell {
	return &Cell{}
}

// Get returns the current selection, if any.
func (c *Cell) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.selected
}

// Set selects a basin by name and notifies subscribers.
func (c *Cell) Set(name string) {
	c.mu.Lock()
	c.current = name
	c.selected = true
	subs := c.subs
	c.mu.Unlock()

	for _, fn := range subs {
		fn(name, true)
	}
}

// Clear removes the selection and notifies subscribers.
func (c *Cell) Clear() {
	c.mu.Lock()
	c.current = ""
	c.selected = false
	subs := c.subs
	c.mu.Unlock()

	for _, fn := range subs {
		fn("", false)
	}
}

// Subscribe registers fn to run on every write. Subscribers run in the order
// they registered.
func (c *Cell) Subscribe(fn func(name string, selected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Resolve maps the current selection to a feature in fc. A selection naming
// a basin absent from the collection (or no selection at all) falls back to
// the default basin; if even that is absent, ok is false and views degrade
// to their no-data presentation.
func (c *Cell) Resolve(fc *geojson.FeatureCollection, defaultBasin string) (*geojson.Feature, bool) {
	name, selected := c.Get()
	if selected {
		if f, ok := fc.Get(name); ok {
			return f, true
		}
	}
	return fc.Get(defaultBasin)
}
