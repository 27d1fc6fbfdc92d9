package command

import (
	"sort"
	"sync"
)

// Counter tallies dispatch signal kinds for the lifetime of the process.
// It is owned by the router and passed to whoever reports on it; there is
// no reset, so counts grow unbounded until the process exits.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// CounterEntry is one (kind, count) pair.
type CounterEntry struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

func (c *Counter) Inc(kind string) {
	c.mu.Lock()
	c.counts[kind]++
	c.mu.Unlock()
}

// Snapshot returns all entries, most frequent first; ties break by kind
// name.
func (c *Counter) Snapshot() []CounterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CounterEntry, 0, len(c.counts))
	for kind, n := range c.counts {
		out = append(out, CounterEntry{Kind: kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Total returns the sum over all kinds.
func (c *Counter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}
