package tagcache

import (
	"math"
	"testing"
)

// checkInvariant verifies that the recorded total matches the sum of live
// entry counts and never exceeds the ceiling.
func checkInvariant(t *testing.T, c *Cache) {
	t.Helper()
	sum := 0.0
	c.Each(func(_ int, count float64) { sum += count })
	if math.Abs(sum-c.SampleCount()) > 1e-9*c.MaxCount() {
		t.Errorf("sum of entries = %v, SampleCount = %v", sum, c.SampleCount())
	}
	if c.SampleCount() > c.MaxCount()+1e-9 {
		t.Errorf("SampleCount %v exceeds MaxCount %v", c.SampleCount(), c.MaxCount())
	}
}

func TestCacheNoteAndCount(t *testing.T) {
	c := NewCache(3, 100)

	c.Note(7, 1)
	c.Note(7, 2)
	c.Note(9, 1)

	if got := c.CountOf(7); got != 3 {
		t.Errorf("CountOf(7) = %v, want 3", got)
	}
	if got := c.CountOf(9); got != 1 {
		t.Errorf("CountOf(9) = %v, want 1", got)
	}
	if got := c.CountOf(42); got != 0 {
		t.Errorf("CountOf(42) = %v, want 0", got)
	}
	if got := c.SampleCount(); got != 4 {
		t.Errorf("SampleCount = %v, want 4", got)
	}
	checkInvariant(t, c)
}

func TestCacheEvictsMinimumCount(t *testing.T) {
	c := NewCache(3, 100)
	c.Note(1, 3)
	c.Note(2, 2)
	c.Note(3, 1)

	// Cache is full; tag 3 holds the minimum count and must go.
	c.Note(4, 1)

	if got := c.CountOf(3); got != 0 {
		t.Errorf("evicted tag 3 still has count %v", got)
	}
	if got := c.CountOf(4); got != 1 {
		t.Errorf("CountOf(4) = %v, want 1", got)
	}
	if got := c.SampleCount(); got != 6 {
		t.Errorf("SampleCount = %v, want 6 after eviction", got)
	}
	checkInvariant(t, c)
}

func TestCacheEvictionTieBreaksFirstFound(t *testing.T) {
	c := NewCache(2, 100)
	c.Note(1, 1)
	c.Note(2, 1)

	c.Note(3, 1)

	if c.CountOf(1) != 0 {
		t.Error("expected first-found minimum (tag 1) to be evicted")
	}
	if c.CountOf(2) != 1 || c.CountOf(3) != 1 {
		t.Errorf("unexpected survivors: tag2=%v tag3=%v", c.CountOf(2), c.CountOf(3))
	}
}

func TestCacheClampRescalesOthers(t *testing.T) {
	c := NewCache(2, 10)
	c.Note(1, 6)
	c.Note(2, 6) // total 12 > 10; tag 1 scales by (10-6)/(12-6)

	if got := c.CountOf(2); got != 6 {
		t.Errorf("touched entry = %v, want 6", got)
	}
	if got := c.CountOf(1); math.Abs(got-4) > 1e-12 {
		t.Errorf("rescaled entry = %v, want 4", got)
	}
	if got := c.SampleCount(); got != 10 {
		t.Errorf("SampleCount = %v, want clamp at 10", got)
	}
	checkInvariant(t, c)
}

func TestCacheClampWhenTouchedExceedsMax(t *testing.T) {
	c := NewCache(2, 10)
	c.Note(1, 3)
	c.Note(2, 20) // touched entry alone exceeds the ceiling

	if got := c.CountOf(2); got != 10 {
		t.Errorf("touched entry = %v, want clamp at 10", got)
	}
	if got := c.CountOf(1); got != 0 {
		t.Errorf("other entry = %v, want 0", got)
	}
	checkInvariant(t, c)
}

func TestCacheRescaleTotal(t *testing.T) {
	c := NewCache(3, 100)
	c.Note(1, 4)
	c.Note(2, 6)

	c.RescaleTotal(5)
	if got := c.CountOf(1); math.Abs(got-2) > 1e-12 {
		t.Errorf("CountOf(1) = %v, want 2", got)
	}
	if got := c.CountOf(2); math.Abs(got-3) > 1e-12 {
		t.Errorf("CountOf(2) = %v, want 3", got)
	}
	checkInvariant(t, c)

	// Requests above the ceiling clamp to it.
	c.RescaleTotal(1000)
	if got := c.SampleCount(); got != 100 {
		t.Errorf("SampleCount = %v, want 100", got)
	}

	// Rescaling an empty cache is a no-op.
	empty := NewCache(3, 100)
	empty.RescaleTotal(50)
	if empty.SampleCount() != 0 {
		t.Errorf("empty cache gained samples: %v", empty.SampleCount())
	}
}

func TestCacheDeleteBelowAndClear(t *testing.T) {
	c := NewCache(3, 100)
	c.Note(1, 0.5)
	c.Note(2, 5)

	c.DeleteBelow(1)
	if c.CountOf(1) != 0 {
		t.Error("tag 1 should have been dropped")
	}
	if c.CountOf(2) != 5 {
		t.Error("tag 2 should have survived")
	}
	if got := c.SampleCount(); got != 5 {
		t.Errorf("SampleCount = %v, want 5", got)
	}
	checkInvariant(t, c)

	c.Clear()
	if c.SampleCount() != 0 || c.CountOf(2) != 0 {
		t.Error("Clear left residue")
	}
}

func TestCacheInvariantUnderChurn(t *testing.T) {
	c := NewCache(5, 50)
	for i := 0; i < 500; i++ {
		c.Note(i%11, float64(i%7)+0.25)
		checkInvariant(t, c)
	}
}
