package domain

import "sync/atomic"

// CallCounters counts geocoding calls by kind. Safe for concurrent use;
// counts only grow for the lifetime of the value.
type CallCounters struct {
	reverse atomic.Uint64
	forward atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of CallCounters.
type CounterSnapshot struct {
	ReverseCalls uint64 `json:"reverseCalls"`
	ForwardCalls uint64 `json:"forwardCalls"`
}

// IncReverse records one reverse lookup and returns the new total.
func (c *CallCounters) IncReverse() uint64 { return c.reverse.Add(1) }

// IncForward records one forward lookup and returns the new total.
func (c *CallCounters) IncForward() uint64 { return c.forward.Add(1) }

// Snapshot reads both counters.
func (c *CallCounters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		ReverseCalls: c.reverse.Load(),
		ForwardCalls: c.forward.Load(),
	}
}
