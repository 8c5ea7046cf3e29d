package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertInvariant checks that the derived total always equals
// baseline + adds - deletes (clamped at zero).
func assertInvariant(t *testing.T, c *Counter) {
	t.Helper()
	s := c.Snapshot()
	want := s.BaselineTotal + s.PendingAdds - s.PendingDeletes
	if want < 0 {
		want = 0
	}
	assert.Equal(t, want, s.Effective)
	assert.GreaterOrEqual(t, s.PendingAdds, 0)
	assert.GreaterOrEqual(t, s.PendingDeletes, 0)
}

func TestLocalAddPublishesImmediately(t *testing.T) {
	c := New(5)

	var published []int
	c.SetOnChange(func(total int) { published = append(published, total) })

	assert.Equal(t, 6, c.LocalAdd())
	assert.Equal(t, []int{6}, published)
	assertInvariant(t, c)
}

func TestLocalDeleteAndRevert(t *testing.T) {
	c := New(3)

	assert.Equal(t, 2, c.LocalDelete())
	assertInvariant(t, c)

	assert.Equal(t, 3, c.RevertDelete())
	assertInvariant(t, c)

	// Revert with nothing pending stays floored at zero.
	assert.Equal(t, 3, c.RevertDelete())
	s := c.Snapshot()
	assert.Equal(t, 0, s.PendingDeletes)
}

func TestReconcileContinuity(t *testing.T) {
	// baseline=10, one pending add (effective 11); server catches up to 11.
	c := New(10)
	require.Equal(t, 11, c.LocalAdd())

	total := c.Reconcile(11)

	s := c.Snapshot()
	assert.Equal(t, 11, s.BaselineTotal)
	assert.Equal(t, 0, s.PendingAdds)
	assert.Equal(t, 11, total, "no visible jump")
	assertInvariant(t, c)
}

func TestReconcileServerAhead(t *testing.T) {
	// Multi-device: server gained quotes the client never saw. The extra
	// gain shows up after the pending credit is retired.
	c := New(10)
	c.LocalAdd() // effective 11

	total := c.Reconcile(13)

	s := c.Snapshot()
	assert.Equal(t, 13, s.BaselineTotal)
	assert.Equal(t, 0, s.PendingAdds)
	assert.Equal(t, 13, total)
	assertInvariant(t, c)
}

func TestReconcileDeleteConfirmed(t *testing.T) {
	// baseline=10, one optimistic delete (effective 9); server applies it.
	c := New(10)
	require.Equal(t, 9, c.LocalDelete())

	total := c.Reconcile(9)

	s := c.Snapshot()
	assert.Equal(t, 9, s.BaselineTotal)
	assert.Equal(t, 0, s.PendingDeletes)
	assert.Equal(t, 9, total, "no visible jump")
	assertInvariant(t, c)
}

func TestReconcileDeleteBeyondPending(t *testing.T) {
	// Server dropped more quotes than the client had pending deletes for.
	c := New(10)
	c.LocalDelete() // effective 9

	total := c.Reconcile(6)

	s := c.Snapshot()
	assert.Equal(t, 6, s.BaselineTotal)
	assert.Equal(t, 0, s.PendingDeletes, "floored, never negative")
	assert.Equal(t, 6, total)
	assertInvariant(t, c)
}

func TestEndToEndOptimisticAdd(t *testing.T) {
	c := New(5)

	var last int
	c.SetOnChange(func(total int) { last = total })

	assert.Equal(t, 6, c.LocalAdd())
	assert.Equal(t, 6, last, "published immediately")

	total := c.Reconcile(6)
	s := c.Snapshot()
	assert.Equal(t, 6, s.BaselineTotal)
	assert.Equal(t, 0, s.PendingAdds)
	assert.Equal(t, 6, total)
}

func TestInvariantUnderInterleaving(t *testing.T) {
	c := New(7)

	ops := []func(){
		func() { c.LocalAdd() },
		func() { c.LocalDelete() },
		func() { c.LocalAdd() },
		func() { c.Reconcile(8) },
		func() { c.LocalDelete() },
		func() { c.LocalDelete() },
		func() { c.Reconcile(5) },
		func() { c.RevertDelete() },
		func() { c.LocalAdd() },
		func() { c.Reconcile(9) },
	}
	for _, op := range ops {
		op()
		assertInvariant(t, c)
	}
}

func TestNewClampsNegative(t *testing.T) {
	c := New(-3)
	assert.Equal(t, 0, c.Effective())
}
