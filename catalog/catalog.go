// Package catalog runs discovery over many files and keeps the combined
// result.
package catalog

import (
	"sync"

	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/internal"
)

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal only) and the highest is 3
// (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return internal.SetPackageLevel(logger, level)
}

// Catalog is the running registry of datasets, keyed by name. It is safe for
// concurrent use.
type Catalog struct {
	mu     sync.Mutex
	order  []string
	byName map[string]discovery.Result
}

// New starts a catalog from the given entries, usually the configured ones.
func New(initial []discovery.Result) *Catalog {
	c := &Catalog{byName: map[string]discovery.Result{}}
	c.Merge(initial)
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Known returns a deep copy of the entries in insertion order, ready to be
// handed to the next pass.
func (c *Catalog) Known() []discovery.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]discovery.Result, 0, len(c.order))
	for _, name := range c.order {
		ret = append(ret, c.byName[name].Clone())
	}
	return ret
}

// Lookup returns a copy of the named entry.
func (c *Catalog) Lookup(name string) (discovery.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, has := c.byName[name]
	if !has {
		return discovery.Result{}, false
	}
	return r.Clone(), true
}

// Merge applies the results of one pass. New names are appended. A decided
// result replaces the entry of the same name; an undecided one never
// overwrites a decision.
func (c *Catalog) Merge(results []discovery.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		name := r.Descriptor.Name
		prev, has := c.byName[name]
		if !has {
			c.order = append(c.order, name)
			c.byName[name] = r.Clone()
			continue
		}
		if r.Availability == discovery.Unknown && prev.Availability != discovery.Unknown {
			continue
		}
		c.byName[name] = r.Clone()
	}
}
