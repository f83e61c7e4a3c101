package cadence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FrameStatistics is a read-only snapshot of one measured frame's adaptation
// record: its execution-time histogram, its specified and active objective
// bins, the satisfaction ratios over each, and the failure run-length
// histograms. Produced by Engine.FrameStatistics; an unknown or destroyed
// frame id yields an empty snapshot, never an error.
type FrameStatistics struct {
	FrameID FrameID

	ExecTimeBinCenters     []float64
	ExecTimeBinFrequencies []float64

	SpecifiedObjectiveBins     []int
	SatisfactionRatioSpecified float64
	FailureRunLengthsSpecified []int64

	ActiveObjectiveBins     []int
	SatisfactionRatioActive float64
	FailureRunLengthsActive []int64
}

// FrameStatistics snapshots frame id. The snapshot allocates its own buffers
// and stays valid after further engine activity.
func (e *Engine) FrameStatistics(id FrameID) FrameStatistics {
	stats := FrameStatistics{FrameID: id}

	f := e.lookup(id)
	if f == nil || f.kind != kindMeasured {
		return stats
	}
	s := f.state
	if !s.objectiveInit { // never activated: no binning geometry yet
		return stats
	}

	stats.ExecTimeBinCenters = make([]float64, s.numBins)
	stats.ExecTimeBinFrequencies = make([]float64, s.numBins)
	for i := 0; i < s.numBins; i++ {
		stats.ExecTimeBinCenters[i] = s.scheme.Center(i)
	}
	s.histogram.Each(func(tag int, count float64) {
		stats.ExecTimeBinFrequencies[tag] = count
	})

	localFor, _ := s.localObjectiveBins()
	stats.SpecifiedObjectiveBins = localFor
	if s.active {
		stats.ActiveObjectiveBins = append([]int(nil), s.forBins...)
	}

	total := 0.0
	for _, f := range stats.ExecTimeBinFrequencies {
		total += f
	}
	for _, bin := range stats.SpecifiedObjectiveBins {
		stats.SatisfactionRatioSpecified += stats.ExecTimeBinFrequencies[bin]
	}
	for _, bin := range stats.ActiveObjectiveBins {
		stats.SatisfactionRatioActive += stats.ExecTimeBinFrequencies[bin]
	}
	if total > 0 {
		stats.SatisfactionRatioSpecified /= total
		stats.SatisfactionRatioActive /= total
	}

	stats.FailureRunLengthsSpecified = append([]int64(nil), s.specifiedFailHist...)
	stats.FailureRunLengthsActive = append([]int64(nil), s.activeFailHist...)
	return stats
}

// PrintString formats the snapshot in the exit-report layout the plotting
// tooling parses.
func (s FrameStatistics) PrintString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "$$ Frame #%d : Statistics\n", s.FrameID)
	fmt.Fprintf(&b, "$$   vExecTime_bin_centers     = %s\n", formatFloats(s.ExecTimeBinCenters))
	fmt.Fprintf(&b, "$$   vExecTime_bin_frequencies = %s\n", formatFloats(s.ExecTimeBinFrequencies))
	fmt.Fprintf(&b, "$$   vSpecified_Objective_bin_indices = %s\n", formatInts(s.SpecifiedObjectiveBins))
	fmt.Fprintf(&b, "$$   satisfaction_ratio_wrt_specified_objective = %s\n", formatFloat(s.SatisfactionRatioSpecified))
	fmt.Fprintf(&b, "$$   vFailure_Runlengths_wrt_specified_objective = %s\n", formatInt64s(s.FailureRunLengthsSpecified))
	fmt.Fprintf(&b, "$$   vActive_Objective_bin_indices = %s\n", formatInts(s.ActiveObjectiveBins))
	fmt.Fprintf(&b, "$$   satisfaction_ratio_wrt_active_objective = %s\n", formatFloat(s.SatisfactionRatioActive))
	fmt.Fprintf(&b, "$$   vFailure_Runlengths_wrt_active_objective = %s\n", formatInt64s(s.FailureRunLengthsActive))
	return b.String()
}

// ExecTimeDecisionDistribution correlates one tracking frame's execution-time
// bins with the decision tags an exec frame chose: Counts[i][j] is the
// occurrence count of ModelChoices[j] under ExecTimeBinCenters[i].
type ExecTimeDecisionDistribution struct {
	ExecTimeBinCenters []float64
	ModelChoices       []int
	Counts             [][]float64
}

// ExecFrameStatistics is a read-only snapshot of the decision history of one
// exec frame, as observed by every frame tracking its decision parameter.
type ExecFrameStatistics struct {
	ExecFrameID    FrameID
	TrackingFrames []FrameID
	Distributions  map[FrameID]ExecTimeDecisionDistribution
}

// ExecFrameStatistics snapshots exec frame id. An unknown, destroyed or
// non-exec id yields an empty snapshot, never an error.
func (e *Engine) ExecFrameStatistics(id FrameID) ExecFrameStatistics {
	stats := ExecFrameStatistics{ExecFrameID: id, Distributions: map[FrameID]ExecTimeDecisionDistribution{}}

	f := e.lookup(id)
	if f == nil || f.kind != kindExec {
		return stats
	}
	param := f.exec.decisionParam

	for _, tf := range e.frames {
		if tf == nil || tf.kind != kindMeasured {
			continue
		}
		spread, ok := tf.state.spreads[param]
		if !ok {
			continue
		}

		stats.TrackingFrames = append(stats.TrackingFrames, tf.id)

		var dist ExecTimeDecisionDistribution
		seen := map[int]bool{}
		for i := 0; i < spread.NumBins(); i++ {
			spread.Bin(i).Each(func(tag int, _ float64) {
				if !seen[tag] {
					seen[tag] = true
					dist.ModelChoices = append(dist.ModelChoices, tag)
				}
			})
		}
		sort.Ints(dist.ModelChoices)

		column := map[int]int{}
		for j, tag := range dist.ModelChoices {
			column[tag] = j
		}
		dist.Counts = make([][]float64, spread.NumBins())
		for i := 0; i < spread.NumBins(); i++ {
			dist.Counts[i] = make([]float64, len(dist.ModelChoices))
			spread.Bin(i).Each(func(tag int, count float64) {
				dist.Counts[i][column[tag]] = count
			})
		}

		for i := 0; i < tf.state.numBins; i++ {
			dist.ExecTimeBinCenters = append(dist.ExecTimeBinCenters, tf.state.scheme.Center(i))
		}
		stats.Distributions[tf.id] = dist
	}

	sort.Slice(stats.TrackingFrames, func(i, j int) bool {
		return stats.TrackingFrames[i] < stats.TrackingFrames[j]
	})
	return stats
}

// PrintString formats the snapshot in the exit-report layout.
func (s ExecFrameStatistics) PrintString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "$$ ExecFrame #%d: Statistics\n", s.ExecFrameID)
	fmt.Fprintf(&b, "$$   vTracking_FrameIDs = %s\n", formatFrameIDs(s.TrackingFrames))

	for _, fid := range s.TrackingFrames {
		dist := s.Distributions[fid]
		fmt.Fprintf(&b, "$$ ---- Tracking Frame #%d ----\n", fid)
		b.WriteString("$$   || vModelChoices\n")
		b.WriteString("$$   \\/   vExecTime_bin_centers ==> ")
		for i, c := range dist.ExecTimeBinCenters {
			fmt.Fprintf(&b, "%d(%s)  ", i, formatFloat(c))
		}
		b.WriteString("\n")
		for j, choice := range dist.ModelChoices {
			fmt.Fprintf(&b, "$$           %d:                    ", choice)
			for i := range dist.Counts {
				fmt.Fprintf(&b, "%s     ", formatFloat(dist.Counts[i][j]))
			}
			b.WriteString("\n")
		}
		b.WriteString("$$\n")
	}
	return b.String()
}

// ─── Formatting helpers ─────────────────────────────────────────────────────

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatInt64s(vs []int64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFrameIDs(vs []FrameID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
