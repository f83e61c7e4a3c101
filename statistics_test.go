package cadence

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestStatisticsUnobjectivedFrame(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(nil)

	for _, d := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		mustEnter(t, e, f.ID())
		step(d)
		mustComplete(t, e, f.ID())
	}

	stats := e.FrameStatistics(f.ID())
	if len(stats.ExecTimeBinCenters) != 20 {
		t.Fatalf("bin centers = %d, want the 20 absolute bins", len(stats.ExecTimeBinCenters))
	}

	total := 0.0
	nonZero := 0
	for _, freq := range stats.ExecTimeBinFrequencies {
		total += freq
		if freq > 0 {
			nonZero++
		}
	}
	if total != 3 {
		t.Errorf("total frequency = %v, want 3", total)
	}
	// 1s lands in its own bin; 2s and 3s share the topmost.
	if nonZero != 2 {
		t.Errorf("distinct occupied bins = %d, want 2", nonZero)
	}
	if stats.ExecTimeBinFrequencies[18] != 1 || stats.ExecTimeBinFrequencies[19] != 2 {
		t.Errorf("frequencies = %v, want bin18=1 bin19=2", stats.ExecTimeBinFrequencies)
	}

	if stats.SatisfactionRatioSpecified != 0 {
		t.Errorf("specified satisfaction = %v, want 0 without an objective", stats.SatisfactionRatioSpecified)
	}
	if len(stats.FailureRunLengthsSpecified) != 0 || len(stats.FailureRunLengthsActive) != 0 {
		t.Error("failure run-lengths recorded without an objective")
	}
}

func TestStatisticsSatisfiedObjective(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(AbsoluteObjective(2.0, 0.1, 0.1, 0.9))

	for _, d := range []time.Duration{2000 * time.Millisecond, 1900 * time.Millisecond, 2100 * time.Millisecond} {
		mustEnter(t, e, f.ID())
		step(d)
		mustComplete(t, e, f.ID())
	}

	stats := e.FrameStatistics(f.ID())
	if len(stats.ExecTimeBinCenters) != 22 {
		t.Fatalf("bin centers = %d, want the 22 mean-relative bins", len(stats.ExecTimeBinCenters))
	}
	if got := stats.SatisfactionRatioSpecified; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("specified satisfaction = %v, want 1.0", got)
	}
	if len(stats.ActiveObjectiveBins) != 0 {
		t.Error("inactive frame reported active objective bins")
	}

	// The active view exists only while the frame is active.
	mustEnter(t, e, f.ID())
	active := e.FrameStatistics(f.ID())
	if len(active.ActiveObjectiveBins) == 0 {
		t.Fatal("active frame reported no active objective bins")
	}
	if got := active.SatisfactionRatioActive; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("active satisfaction = %v, want 1.0", got)
	}
	step(2 * time.Second)
	mustComplete(t, e, f.ID())
}

func TestStatisticsMissingFrameNeverFails(t *testing.T) {
	e, _ := newTestEngine()

	stats := e.FrameStatistics(42)
	if stats.FrameID != 42 || len(stats.ExecTimeBinCenters) != 0 {
		t.Errorf("missing frame snapshot not empty: %+v", stats)
	}

	f := e.NewFrame(nil)
	f.Destroy()
	stats = e.FrameStatistics(f.ID())
	if len(stats.ExecTimeBinCenters) != 0 {
		t.Error("destroyed frame snapshot not empty")
	}

	execStats := e.ExecFrameStatistics(42)
	if len(execStats.TrackingFrames) != 0 {
		t.Error("missing exec frame snapshot not empty")
	}
}

func TestStatisticsPrintFormat(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(AbsoluteObjective(2.0, 0.1, 0.1, 0.9))

	mustEnter(t, e, f.ID())
	step(2 * time.Second)
	mustComplete(t, e, f.ID())

	out := e.FrameStatistics(f.ID()).PrintString()

	wantLines := []string{
		"$$ Frame #0 : Statistics",
		"$$   vExecTime_bin_centers     = [",
		"$$   vExecTime_bin_frequencies = [",
		"$$   vSpecified_Objective_bin_indices = [",
		"$$   satisfaction_ratio_wrt_specified_objective = 1",
		"$$   vFailure_Runlengths_wrt_specified_objective = []",
		"$$   vActive_Objective_bin_indices = []",
		"$$   satisfaction_ratio_wrt_active_objective = 0",
		"$$   vFailure_Runlengths_wrt_active_objective = []",
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != len(wantLines) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(wantLines), out)
	}
	for i, want := range wantLines {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want)
		}
	}
}

func TestExecFrameStatisticsDistribution(t *testing.T) {
	fx := newAdaptiveFixture(t)
	for i := 0; i < 10; i++ {
		fx.invoke(t)
	}

	stats := fx.engine.ExecFrameStatistics(fx.exec.ID())
	if len(stats.TrackingFrames) != 1 || stats.TrackingFrames[0] != fx.parent.ID() {
		t.Fatalf("tracking frames = %v, want just the parent", stats.TrackingFrames)
	}

	dist := stats.Distributions[fx.parent.ID()]
	if len(dist.ExecTimeBinCenters) != 22 {
		t.Errorf("bin centers = %d, want 22 (parent is mean-relative)", len(dist.ExecTimeBinCenters))
	}
	if len(dist.ModelChoices) == 0 {
		t.Fatal("no decision tags recorded")
	}
	total := 0.0
	for _, row := range dist.Counts {
		for _, c := range row {
			total += c
		}
	}
	if total <= 0 {
		t.Error("distribution holds no counts")
	}

	out := stats.PrintString()
	if !strings.Contains(out, "$$ ExecFrame #") || !strings.Contains(out, "vTracking_FrameIDs") {
		t.Errorf("print format missing headers:\n%s", out)
	}
}

func TestFailureRunLengthBuckets(t *testing.T) {
	tests := []struct {
		run        int64
		wantBucket int
	}{
		{1, 0},
		{2, 1},
		{3, 1},
		{4, 2},
		{7, 2},
		{8, 3},
	}
	for _, tt := range tests {
		hist := noteRunLength(nil, tt.run)
		if len(hist) != tt.wantBucket+1 || hist[tt.wantBucket] != 1 {
			t.Errorf("noteRunLength(%d) = %v, want single count in bucket %d", tt.run, hist, tt.wantBucket)
		}
	}
}

func TestFailureRunLengthsRecorded(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(AbsoluteObjective(1.0, 0.1, 0.1, 0.9))

	// Three failing invocations, then a success ending the run.
	for _, d := range []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, time.Second} {
		mustEnter(t, e, f.ID())
		step(d)
		mustComplete(t, e, f.ID())
	}

	stats := e.FrameStatistics(f.ID())
	// A run of 3 lands in bucket 1 (lengths in [2,4), bucket floor(log2 3)).
	if len(stats.FailureRunLengthsSpecified) != 2 || stats.FailureRunLengthsSpecified[1] != 1 {
		t.Errorf("specified run-lengths = %v, want bucket 1 holding one run", stats.FailureRunLengthsSpecified)
	}
}
