package tagcache

import "sort"

// Defaults for per-bin caches in a Spread.
const (
	DefaultEntriesPerBin = 10
	DefaultBinMaxCount   = 1000.0
)

// DiscTag is one tag surviving a Discriminating query, with its two weights:
// Count is the tag's in-set count normalised by the spread's total sample
// count, Prob is the fraction of the tag's occurrences that fell inside the
// queried bin set.
type DiscTag struct {
	Tag   int
	Count float64
	Prob  float64
}

// Spread correlates a consumer frame's execution-time bin with the tags an
// observed parameter emitted. One bounded Cache per bin.
type Spread struct {
	bins []*Cache
}

// NewSpread returns a spread with numBins per-bin caches of the default
// capacity and ceiling.
func NewSpread(numBins int) *Spread {
	return NewSpreadWith(numBins, DefaultEntriesPerBin, DefaultBinMaxCount)
}

// NewSpreadWith returns a spread with explicit per-bin cache geometry.
func NewSpreadWith(numBins, entriesPerBin int, binMaxCount float64) *Spread {
	s := &Spread{bins: make([]*Cache, numBins)}
	for i := range s.bins {
		s.bins[i] = NewCache(entriesPerBin, binMaxCount)
	}
	return s
}

// NumBins returns the number of execution-time bins.
func (s *Spread) NumBins() int { return len(s.bins) }

// Bin returns the cache for bin i.
func (s *Spread) Bin(i int) *Cache { return s.bins[i] }

// Note records add occurrences of tag under execution-time bin.
func (s *Spread) Note(bin, tag int, add float64) {
	s.bins[bin].Note(tag, add)
}

// CurrentTotal sums the sample counts of all bins.
func (s *Spread) CurrentTotal() float64 {
	total := 0.0
	for _, b := range s.bins {
		total += b.SampleCount()
	}
	return total
}

// ComplementaryBins returns all bin indices not present in the given set.
// The input must hold unique indices; it is sorted in place.
func (s *Spread) ComplementaryBins(given []int) []int {
	sort.Ints(given)
	var out []int
	j := 0
	for i := 0; i < len(s.bins); i++ {
		if j < len(given) && given[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

// Discriminating returns, sorted ascending by tag, every tag whose in-set
// occurrence ratio meets threshold:
//
//	ratio = count-in-given-bins / count-in-all-bins  >=  threshold
//
// A threshold of 0 yields all tags present anywhere in the spread. The given
// bin indices must be unique.
func (s *Spread) Discriminating(givenBins []int, threshold float64) []DiscTag {
	opposing := s.ComplementaryBins(givenBins)

	forCounts := map[int]float64{}
	againstCounts := map[int]float64{}

	for _, bi := range givenBins {
		s.bins[bi].Each(func(tag int, count float64) {
			forCounts[tag] += count
			againstCounts[tag] += 0
		})
	}
	for _, bi := range opposing {
		s.bins[bi].Each(func(tag int, count float64) {
			againstCounts[tag] += count
			forCounts[tag] += 0
		})
	}

	total := s.CurrentTotal()
	if total == 0 {
		total = 1 // numerators are all zero anyway
	}

	tags := make([]int, 0, len(forCounts))
	for tag := range forCounts {
		tags = append(tags, tag)
	}
	sort.Ints(tags)

	var out []DiscTag
	for _, tag := range tags {
		cf := forCounts[tag]
		ca := againstCounts[tag]
		if cf/(cf+ca) >= threshold {
			out = append(out, DiscTag{Tag: tag, Count: cf / total, Prob: cf / (cf + ca)})
		}
	}
	return out
}

// Discrimination reports whether the spread has been exercised enough to
// judge tag/bin separation, the run length needed for that judgement, and —
// when exercised — the maximal Kolmogorov D statistic between the per-bin
// tag CDFs of the dominant bins (those holding at least 1% of all samples).
func (s *Spread) Discrimination() (exercising bool, minRunLength, maxD float64) {
	total := s.CurrentTotal()
	dominantThreshold := total * 0.01

	var dominant []int
	for i, b := range s.bins {
		if b.SampleCount() >= dominantThreshold {
			dominant = append(dominant, i)
		}
	}

	seen := map[int]bool{}
	var domain []int
	for _, bi := range dominant {
		s.bins[bi].Each(func(tag int, _ float64) {
			if !seen[tag] {
				seen[tag] = true
				domain = append(domain, tag)
			}
		})
	}
	sort.Ints(domain)

	minRunLength = float64(len(dominant))*float64(len(domain)) + 1
	if minRunLength > DefaultBinMaxCount {
		minRunLength = DefaultBinMaxCount
	}

	exercising = total >= minRunLength
	if !exercising {
		return false, minRunLength, 0
	}

	if len(dominant) == 1 {
		// A single CDF cannot be compared against anything.
		if len(domain) <= 1 {
			return true, minRunLength, 1
		}
		return true, minRunLength, 0
	}

	cdf := make([]float64, len(dominant))
	for _, tag := range domain {
		stepMin, stepMax := 1.0, 0.0
		for bi, dbi := range dominant {
			b := s.bins[dbi]
			cdf[bi] += b.CountOf(tag) / b.SampleCount()
			if cdf[bi] < stepMin {
				stepMin = cdf[bi]
			}
			if cdf[bi] > stepMax {
				stepMax = cdf[bi]
			}
		}
		if d := stepMax - stepMin; d > maxD {
			maxD = d
		}
	}
	return true, minRunLength, maxD
}
