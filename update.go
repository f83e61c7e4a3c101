package cadence

import (
	"math"
	"sort"
)

// updateOnCompletion feeds one completed invocation of a measured frame into
// its statistics and into the learned records of every enclosing consumer.
func (e *Engine) updateOnCompletion(f *frame) {
	s := f.state

	s.window.push(s.curExecTime)
	t := s.rescaler(s.window.average())

	if s.hasMean {
		inWindow := t >= s.mean*(1.0-s.windowFracLower) && t <= s.mean*(1.0+s.windowFracUpper)

		s.totalInvocations++
		n := float64(s.totalInvocations)
		hit := 0.0
		if inWindow {
			hit = 1.0
		}
		s.satisfactionRatio = (s.satisfactionRatio*(n-1) + hit) / n
		s.unbinnedMean = (s.unbinnedMean*(n-1) + t) / n
		s.unbinnedSqMean = (s.unbinnedSqMean*(n-1) + t*t) / n
		s.variance = s.unbinnedSqMean - s.unbinnedMean*s.unbinnedMean
		s.varianceFromMean = s.unbinnedSqMean - s.mean*s.mean
	}

	bin := s.scheme.BinOf(t)

	s.execTimeParam.informConsumers(enclosingFrames(f), bin)
	s.histogram.Note(bin, 1)

	activeSuccess := containsInt(s.forBins, bin)
	activeFailure := containsInt(s.againstBins, bin)
	// FOR and AGAINST are disjoint; a bin may be in neither when no ancestor
	// imposes a preference and the frame has no local objective.

	magnified := e.magnifiedCount(s, t, activeSuccess, activeFailure)

	// Failure run-lengths against the active decision.
	if activeFailure {
		s.activeFailRun++
	} else if s.activeFailRun > 0 {
		s.activeFailHist = noteRunLength(s.activeFailHist, s.activeFailRun)
		s.activeFailRun = 0
	}

	// ... and against the frame's own specified objective.
	_, localAgainst := s.localObjectiveBins()
	if containsInt(localAgainst, bin) {
		s.specifiedFailRun++
	} else if s.specifiedFailRun > 0 {
		s.specifiedFailHist = noteRunLength(s.specifiedFailHist, s.specifiedFailRun)
		s.specifiedFailRun = 0
	}

	// Fold each parameter's current record into its long-record spread,
	// weighted by the magnified count. Parameter order is fixed by id so
	// replays are deterministic.
	sort.Slice(s.params, func(i, j int) bool { return s.params[i].id < s.params[j].id })
	for _, p := range s.params {
		record := s.currRecords[p]
		spread := s.spreads[p]

		var countUpdate float64
		if magnified >= 0 {
			countUpdate = magnified
		} else {
			// Negative marker: replace the fixed count with this fraction of
			// the spread's accumulated history.
			countUpdate = -magnified * spread.CurrentTotal()
			if countUpdate == 0 {
				countUpdate = 1
			}
		}

		record.RescaleTotal(countUpdate)
		record.Each(func(tag int, count float64) {
			spread.Note(bin, tag, count)
		})
		record.Clear()
	}

	if e.features.deemphasize {
		for _, p := range s.params {
			spread := s.spreads[p]
			for i := 0; i < spread.NumBins(); i++ {
				b := spread.Bin(i)
				b.RescaleTotal(b.SampleCount() * e.features.deemphasizeAlpha)
			}
		}
	}

	if e.features.forget {
		for _, p := range s.params {
			spread := s.spreads[p]
			threshold := spread.CurrentTotal() * e.features.forgetBeta
			for i := 0; i < spread.NumBins(); i++ {
				spread.Bin(i).DeleteBelow(threshold)
			}
		}
	}

	s.prevExecTime = t

	if e.metrics != nil {
		outcome := "neutral"
		if activeSuccess {
			outcome = "success"
		} else if activeFailure {
			outcome = "failure"
		}
		e.metrics.FrameCompleted(f.id, s.curExecTime, outcome)
	}
}

// magnifiedCount weights one completed sample by how close it landed to the
// objective: a reward peaking at 1.5 on the mean for successes, a graded
// penalty for failures, and a negative marker for far misses that tells the
// spread update to scale against accumulated history instead.
func (e *Engine) magnifiedCount(s *frameState, t float64, success, failure bool) float64 {
	if !e.features.magnifyByDeviation {
		return 1
	}

	switch {
	case success:
		// forBins is a contiguous bin range, so the window is an interval.
		lower := s.scheme.LowerEdge(s.forBins[0])
		upper := s.scheme.UpperEdge(s.forBins[len(s.forBins)-1])
		rng := upper - lower
		deviation := math.Abs(t-s.mean) / rng // in [0,1)
		return 1.5 / (1.0 + 2.0*deviation)    // 1.5 on the mean, above 0.5 at the edge

	case failure && len(s.forBins) > 0:
		lower := s.scheme.LowerEdge(s.forBins[0])
		upper := s.scheme.UpperEdge(s.forBins[len(s.forBins)-1])
		rng := upper - lower
		devLower := math.Abs(t-lower) / rng
		devUpper := math.Abs(t-upper) / rng
		deviation := math.Min(devLower, devUpper)

		switch {
		case deviation < 0.2:
			return 1
		case deviation < 0.4:
			return 2 // penalise near misses hard enough to be remembered
		default:
			// 0.22 at deviation 0.4, approaching 0.5 for far misses.
			return -1.0 / (2.0 + 1.0/deviation)
		}

	default:
		return 1
	}
}

// noteRunLength buckets a completed failure run into the log2 histogram:
// bucket i counts runs of length in [2^i, 2^(i+1)), i.e. bucket floor(log2 n).
func noteRunLength(hist []int64, runLength int64) []int64 {
	bucket := -1
	for runLength > 0 {
		bucket++
		runLength /= 2
	}
	for bucket >= len(hist) {
		hist = append(hist, 0)
	}
	hist[bucket]++
	return hist
}
