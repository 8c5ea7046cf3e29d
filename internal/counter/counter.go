// Package counter maintains an eventually consistent total-quote count as
// a server-confirmed baseline plus signed local deltas that have not been
// confirmed yet. The UI sees an instantly updated total on every local
// mutation; Reconcile re-anchors to server truth without a visible jump.
package counter

import "sync"

// State is a point-in-time copy of the counter. Effective is always
// derived from the other three fields, never stored as ground truth.
type State struct {
	BaselineTotal  int
	PendingAdds    int
	PendingDeletes int
	Effective      int
}

// OnChangeFunc is invoked with the new effective total after every
// mutation, outside the counter's lock.
type OnChangeFunc func(total int)

// Counter implements the baseline+delta model. All compound updates happen
// inside one critical section so the invariant
// effective == baseline + adds - deletes holds after every operation.
type Counter struct {
	mu       sync.Mutex
	baseline int
	adds     int
	deletes  int
	onChange OnChangeFunc
}

// New creates a counter anchored at whatever total is already known.
// Negative initial totals are treated as zero.
func New(initialTotal int) *Counter {
	if initialTotal < 0 {
		initialTotal = 0
	}
	return &Counter{baseline: initialTotal}
}

// SetOnChange registers the change hook. Must be called before the counter
// is shared across goroutines.
func (c *Counter) SetOnChange(fn OnChangeFunc) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// LocalAdd records an optimistic local add and returns the new effective
// total, published immediately with no network wait.
func (c *Counter) LocalAdd() int {
	c.mu.Lock()
	c.adds++
	total := c.effectiveLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(total)
	}
	return total
}

// LocalDelete records an optimistic local delete and returns the new
// effective total.
func (c *Counter) LocalDelete() int {
	c.mu.Lock()
	c.deletes++
	total := c.effectiveLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(total)
	}
	return total
}

// RevertDelete undoes one optimistic delete whose server call failed.
// Floored at zero.
func (c *Counter) RevertDelete() int {
	c.mu.Lock()
	if c.deletes > 0 {
		c.deletes--
	}
	total := c.effectiveLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(total)
	}
	return total
}

// Reconcile re-anchors the baseline to the server's authoritative total.
// A positive server diff means the server already reflects adds the client
// still holds as pending, so that pending credit is retired; a negative
// diff retires pending deletes symmetrically. Both are floored at zero.
// When the server has caught up exactly, the effective total is continuous
// across the call.
func (c *Counter) Reconcile(serverTotal int) int {
	if serverTotal < 0 {
		serverTotal = 0
	}

	c.mu.Lock()
	diff := serverTotal - c.baseline
	switch {
	case diff > 0:
		c.adds -= diff
		if c.adds < 0 {
			c.adds = 0
		}
	case diff < 0:
		c.deletes += diff // diff is negative: retire pending deletes
		if c.deletes < 0 {
			c.deletes = 0
		}
	}
	c.baseline = serverTotal
	total := c.effectiveLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(total)
	}
	return total
}

// Effective returns the derived total, clamped at zero.
func (c *Counter) Effective() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

// Snapshot returns a consistent copy of the counter state.
func (c *Counter) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		BaselineTotal:  c.baseline,
		PendingAdds:    c.adds,
		PendingDeletes: c.deletes,
		Effective:      c.effectiveLocked(),
	}
}

func (c *Counter) effectiveLocked() int {
	total := c.baseline + c.adds - c.deletes
	if total < 0 {
		return 0
	}
	return total
}
