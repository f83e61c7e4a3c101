package cadence

import (
	"time"

	"github.com/cadence-rt/cadence/internal/infra/binning"
	"github.com/cadence-rt/cadence/internal/infra/tagcache"
)

// frameState is the full adaptation state of a measured frame: the resolved
// objective, the learned records, the active FOR/AGAINST decision, the
// lifecycle bookkeeping and the fast-reaction controller state (the latter
// lives here because the controller steers the decisions of exec frames
// nested under this frame against this frame's objective).
type frameState struct {
	owner *frame

	// Objective snapshot. Written once on first activation, read-only after.
	objectiveInit   bool
	hasMean         bool
	mean            float64
	windowFracLower float64
	windowFracUpper float64
	prob            float64
	windowSize      int
	rescaler        ImpactRescaler
	scheme          binning.Scheme
	numBins         int

	window    *slidingWindow
	histogram *tagcache.Cache // execution-time bin occurrence counts

	// execTimeParam publishes this frame's execution-time bin to consumers.
	execTimeParam *parameter

	// Per-consumed-parameter records. params holds the keys sorted by
	// parameter id so completion-time replay over the maps is deterministic.
	params      []*parameter
	spreads     map[*parameter]*tagcache.Spread
	currRecords map[*parameter]*tagcache.Cache

	// Active decision: the bins this frame currently works FOR and AGAINST.
	// Disjoint at all times; recomputed on every activation.
	forBins     []int
	againstBins []int

	// Failure run-lengths, log2-bucketed: bucket i counts runs of length in
	// [2^i, 2^(i+1)).
	specifiedFailRun  int64
	specifiedFailHist []int64
	activeFailRun     int64
	activeFailHist    []int64

	// Unbinned statistics (only maintained when a mean objective exists).
	totalInvocations  int64
	satisfactionRatio float64
	unbinnedMean      float64
	unbinnedSqMean    float64
	variance          float64
	varianceFromMean  float64

	prevExecTime float64

	frs *frsState // lazily initialised by the fast-reaction strategy

	// Lifecycle. Fields below stackIndex are meaningful only while active.
	active         bool
	suspended      bool
	curExecTime    float64 // cumulative over the suspend/resume pieces of this invocation
	stackIndex     int
	parent         *frame
	activeChildren []*frame
	enterTime      time.Time // valid while executing
}

func newFrameState(owner *frame) *frameState {
	s := &frameState{
		owner:       owner,
		spreads:     map[*parameter]*tagcache.Spread{},
		currRecords: map[*parameter]*tagcache.Cache{},
		stackIndex:  -1,
	}
	s.execTimeParam = owner.engine.newParameter(owner)
	return s
}

// initObjective resolves the objective snapshot and allocates the structures
// whose geometry depends on the binning scheme. Called exactly once, on the
// frame's first activation.
func (s *frameState) initObjective(hasMean bool, mean, fracLower, fracUpper, prob float64, windowSize int, rescaler ImpactRescaler) {
	s.hasMean = hasMean
	s.mean = mean
	s.windowFracLower = fracLower
	s.windowFracUpper = fracUpper
	s.prob = prob
	if windowSize < 1 {
		windowSize = 1
	}
	s.windowSize = windowSize
	if rescaler == nil {
		rescaler = identityRescaler
	}
	s.rescaler = rescaler

	if hasMean {
		s.scheme = binning.MeanRelative{Mean: mean}
	} else {
		s.scheme = binning.Absolute{}
	}
	s.numBins = s.scheme.NumBins()

	s.window = newSlidingWindow(windowSize)
	s.histogram = tagcache.NewCache(s.numBins, histogramMaxCount)
	s.objectiveInit = true
}

// localObjectiveBins derives the FOR/AGAINST bin sets from this frame's own
// objective: FOR is the contiguous range covering the acceptance window,
// AGAINST its complement. Both empty without a mean objective.
func (s *frameState) localObjectiveBins() (forBins, againstBins []int) {
	if !s.hasMean {
		return nil, nil
	}
	lo := s.scheme.BinOf((1.0 - s.windowFracLower) * s.mean)
	hi := s.scheme.BinOf((1.0 + s.windowFracUpper) * s.mean)
	for i := lo; i <= hi; i++ {
		forBins = append(forBins, i)
	}
	for i := 0; i < lo; i++ {
		againstBins = append(againstBins, i)
	}
	for i := hi + 1; i < s.numBins; i++ {
		againstBins = append(againstBins, i)
	}
	return forBins, againstBins
}

func containsInt(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}
