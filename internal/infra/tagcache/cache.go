// Package tagcache implements the bounded tag-occurrence stores the
// adaptation engine learns from.
//
// Two structures live here:
//
//   - Cache: a fixed-capacity map from an integer tag to a positive real
//     occurrence count. When full it evicts the minimum-count entry, and when
//     the total count exceeds a ceiling it proportionally rescales the other
//     entries so the total clamps at the ceiling. The effect is a cheap
//     frequency sketch that favours recent, reinforced tags.
//
//   - Spread: a vector of Caches indexed by execution-time bin. A consumer
//     frame keeps one Spread per observed parameter; it correlates the
//     consumer's own execution-time bin with the tags the parameter emitted
//     during that invocation. Spread also derives the discriminating tag
//     sets the decision-set solver runs on, and a Kolmogorov-style D
//     statistic measuring how strongly tags separate execution-time bins.
package tagcache

// entry is one (tag, count) slot. Invalid slots have valid false and count 0;
// their tag is meaningless.
type entry struct {
	valid bool
	tag   int
	count float64
}

// Cache maps integer tags to weighted occurrence counts with at most
// capacity live entries and a total count clamped to maxCount.
//
// Invariant: SampleCount() equals the sum of live entry counts (up to
// floating-point drift) and never exceeds maxCount.
type Cache struct {
	entries     []entry
	maxCount    float64
	sampleCount float64
}

// NewCache returns a cache with the given entry capacity and count ceiling.
func NewCache(capacity int, maxCount float64) *Cache {
	return &Cache{entries: make([]entry, capacity), maxCount: maxCount}
}

// SampleCount returns the current total count across live entries.
func (c *Cache) SampleCount() float64 { return c.sampleCount }

// MaxCount returns the count ceiling.
func (c *Cache) MaxCount() float64 { return c.maxCount }

// Capacity returns the number of entry slots.
func (c *Cache) Capacity() int { return len(c.entries) }

// CountOf returns the occurrence count of tag, 0 if absent.
func (c *Cache) CountOf(tag int) float64 {
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].tag == tag {
			return c.entries[i].count
		}
	}
	return 0
}

// Each calls fn for every live entry in slot order.
func (c *Cache) Each(fn func(tag int, count float64)) {
	for i := range c.entries {
		if c.entries[i].valid {
			fn(c.entries[i].tag, c.entries[i].count)
		}
	}
}

// victimSlot returns the first empty slot, or the first slot holding the
// minimum count when the cache is full.
func (c *Cache) victimSlot() int {
	victim := -1
	lowest := 0.0
	for i := range c.entries {
		if !c.entries[i].valid {
			return i
		}
		if victim == -1 || c.entries[i].count < lowest {
			victim = i
			lowest = c.entries[i].count
		}
	}
	return victim
}

// Note records add occurrences of tag, evicting the minimum-count entry if
// the tag is new and no slot is free. If the total would exceed the ceiling,
// every entry other than the touched one is scaled down so the total lands
// exactly on the ceiling; if the touched entry alone exceeds the ceiling it
// is clamped and the rest are zeroed.
func (c *Cache) Note(tag int, add float64) {
	slot := -1
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].tag == tag {
			slot = i
			break
		}
	}

	if slot == -1 {
		slot = c.victimSlot()
		c.entries[slot] = entry{valid: true, tag: tag}

		// Eviction may have dropped a count; recompute the total.
		c.sampleCount = 0
		for i := range c.entries {
			if c.entries[i].valid {
				c.sampleCount += c.entries[i].count
			}
		}
	}

	c.entries[slot].count += add
	c.sampleCount += add

	if c.sampleCount > c.maxCount {
		cur := c.entries[slot].count
		ratio := 0.0
		if cur < c.maxCount {
			ratio = (c.maxCount - cur) / (c.sampleCount - cur)
		} else {
			c.entries[slot].count = c.maxCount
		}
		for i := range c.entries {
			if i != slot {
				c.entries[i].count *= ratio
			}
		}
		c.sampleCount = c.maxCount
	}
}

// RescaleTotal proportionally rescales every live entry so the total count
// becomes min(newTotal, maxCount). No effect on an empty cache.
func (c *Cache) RescaleTotal(newTotal float64) {
	if c.sampleCount == 0 {
		return
	}
	if newTotal > c.maxCount {
		newTotal = c.maxCount
	}
	ratio := newTotal / c.sampleCount
	for i := range c.entries {
		if c.entries[i].valid {
			c.entries[i].count *= ratio
		}
	}
	c.sampleCount = newTotal
}

// DeleteBelow removes every entry whose count is below threshold.
func (c *Cache) DeleteBelow(threshold float64) {
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].count < threshold {
			c.deleteSlot(i)
		}
	}
}

func (c *Cache) deleteSlot(i int) {
	if !c.entries[i].valid {
		return
	}
	c.sampleCount -= c.entries[i].count
	c.entries[i] = entry{tag: -1}
}

// Clear drops all entries and resets the total.
func (c *Cache) Clear() {
	for i := range c.entries {
		c.entries[i] = entry{tag: -1}
	}
	c.sampleCount = 0
}
