package cadence

import (
	"math"
	"testing"
	"time"
)

// nestedFixture wires a child frame publishing its execution-time bins into
// a parent consumer, with history decay and forgetting switched off so the
// recorded weights are exact.
type nestedFixture struct {
	engine *Engine
	step   func(time.Duration)
	parent *Frame
	child  *Frame
}

func newNestedFixture(t *testing.T) *nestedFixture {
	t.Helper()
	e, step := newTestEngine()
	e.SetDeemphasizeHistory(false, 0.99)
	e.SetForgetHistory(false, 0.001)
	return &nestedFixture{
		engine: e,
		step:   step,
		parent: e.NewFrame(AbsoluteObjective(0.1, 0.1, 0.1, 0.9)),
		child:  e.NewFrame(nil),
	}
}

// cycle runs one parent invocation containing one child invocation; the
// child burns childTime, the parent parentTotal in all.
func (fx *nestedFixture) cycle(t *testing.T, childTime, parentTotal time.Duration) {
	t.Helper()
	mustEnter(t, fx.engine, fx.parent.ID())
	mustEnter(t, fx.engine, fx.child.ID())
	fx.step(childTime)
	mustComplete(t, fx.engine, fx.child.ID())
	fx.step(parentTotal - childTime)
	mustComplete(t, fx.engine, fx.parent.ID())
}

// spreadWeight reads the weight recorded for the child's habitual tag under
// the parent's bin for parentTime.
func (fx *nestedFixture) spreadWeight(childTime, parentTime float64) float64 {
	ps := fx.engine.lookup(fx.parent.ID()).state
	cs := fx.engine.lookup(fx.child.ID()).state
	spread := ps.spreads[cs.execTimeParam]
	parentBin := ps.scheme.BinOf(parentTime)
	childTag := cs.scheme.BinOf(childTime)
	return spread.Bin(parentBin).CountOf(childTag)
}

func TestMagnificationRewardsCenterHit(t *testing.T) {
	fx := newNestedFixture(t)

	// Parent lands exactly on its mean: the sample is reinforced at 1.5x.
	fx.cycle(t, 50*time.Millisecond, 100*time.Millisecond)

	if got := fx.spreadWeight(0.05, 0.1); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("center-hit weight = %v, want 1.5", got)
	}
}

func TestMagnificationPenalizesNearMiss(t *testing.T) {
	fx := newNestedFixture(t)

	// 0.122s misses the window by 0.2..0.4 of its range: weight 2.
	fx.cycle(t, 50*time.Millisecond, 122*time.Millisecond)

	if got := fx.spreadWeight(0.05, 0.122); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("near-miss weight = %v, want the penalty 2", got)
	}
}

func TestMagnificationFarMissUsesHistoryFraction(t *testing.T) {
	fx := newNestedFixture(t)

	// A far miss with no accumulated history falls back to weight 1.
	fx.cycle(t, 50*time.Millisecond, 200*time.Millisecond)
	if got := fx.spreadWeight(0.05, 0.2); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("far-miss weight with empty history = %v, want 1", got)
	}

	// With history accumulated, the same miss writes a fraction of the
	// spread's current total instead of a fixed count.
	for i := 0; i < 5; i++ {
		fx.cycle(t, 50*time.Millisecond, 100*time.Millisecond)
	}
	ps := fx.engine.lookup(fx.parent.ID()).state
	cs := fx.engine.lookup(fx.child.ID()).state
	before := ps.spreads[cs.execTimeParam].CurrentTotal()

	fx.cycle(t, 50*time.Millisecond, 200*time.Millisecond)

	// deviation = |0.2 - upper| / range; the written weight is
	// total / (2 + 1/deviation).
	upper := ps.scheme.UpperEdge(ps.forBins[len(ps.forBins)-1])
	lower := ps.scheme.LowerEdge(ps.forBins[0])
	deviation := (0.2 - upper) / (upper - lower)
	want := before / (2.0 + 1.0/deviation)

	after := ps.spreads[cs.execTimeParam].CurrentTotal()
	if math.Abs((after-before)-want) > 1e-9 {
		t.Errorf("far-miss history fraction: total grew by %v, want %v", after-before, want)
	}
}

func TestMagnificationDisabled(t *testing.T) {
	fx := newNestedFixture(t)
	fx.engine.SetMagnifyCountByDeviation(false)

	fx.cycle(t, 50*time.Millisecond, 100*time.Millisecond)

	if got := fx.spreadWeight(0.05, 0.1); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("weight with magnification disabled = %v, want 1", got)
	}
}

func TestHistoryDeemphasisDecaysCounts(t *testing.T) {
	e, step := newTestEngine()
	e.SetForgetHistory(false, 0.001)

	parent := e.NewFrame(AbsoluteObjective(0.1, 0.1, 0.1, 0.9))
	child := e.NewFrame(nil)

	run := func(childTime, parentTotal time.Duration) {
		mustEnter(t, e, parent.ID())
		mustEnter(t, e, child.ID())
		step(childTime)
		mustComplete(t, e, child.ID())
		step(parentTotal - childTime)
		mustComplete(t, e, parent.ID())
	}

	run(50*time.Millisecond, 100*time.Millisecond)

	ps := e.lookup(parent.ID()).state
	cs := e.lookup(child.ID()).state
	// The fresh 1.5 reward decays once by 0.99 on the same completion.
	got := ps.spreads[cs.execTimeParam].CurrentTotal()
	if math.Abs(got-1.5*0.99) > 1e-9 {
		t.Errorf("decayed total = %v, want %v", got, 1.5*0.99)
	}
}

func TestHistoryForgettingDropsRareTags(t *testing.T) {
	e, step := newTestEngine()
	e.SetDeemphasizeHistory(false, 0.99)
	e.SetForgetHistory(true, 0.4) // aggressive threshold for the test

	parent := e.NewFrame(AbsoluteObjective(0.1, 0.1, 0.1, 0.9))
	child := e.NewFrame(nil)

	run := func(childTime, parentTotal time.Duration) {
		mustEnter(t, e, parent.ID())
		mustEnter(t, e, child.ID())
		step(childTime)
		mustComplete(t, e, child.ID())
		step(parentTotal - childTime)
		mustComplete(t, e, parent.ID())
	}

	// Establish one dominant tag, then a single occurrence of a rare one.
	for i := 0; i < 4; i++ {
		run(50*time.Millisecond, 100*time.Millisecond)
	}
	run(5*time.Millisecond, 100*time.Millisecond)

	ps := e.lookup(parent.ID()).state
	cs := e.lookup(child.ID()).state
	spread := ps.spreads[cs.execTimeParam]

	rareTag := cs.scheme.BinOf(0.005)
	parentBin := ps.scheme.BinOf(0.1)
	if got := spread.Bin(parentBin).CountOf(rareTag); got != 0 {
		t.Errorf("rare tag survived forgetting with count %v", got)
	}
	dominantTag := cs.scheme.BinOf(0.05)
	if got := spread.Bin(parentBin).CountOf(dominantTag); got == 0 {
		t.Error("dominant tag was forgotten")
	}
}

func TestUnbinnedStatistics(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(AbsoluteObjective(2.0, 0.1, 0.1, 0.9))

	for _, d := range []time.Duration{1900 * time.Millisecond, 2100 * time.Millisecond} {
		mustEnter(t, e, f.ID())
		step(d)
		mustComplete(t, e, f.ID())
	}

	s := e.lookup(f.ID()).state
	if s.totalInvocations != 2 {
		t.Errorf("totalInvocations = %d, want 2", s.totalInvocations)
	}
	if math.Abs(s.unbinnedMean-2.0) > 1e-9 {
		t.Errorf("unbinnedMean = %v, want 2.0", s.unbinnedMean)
	}
	if math.Abs(s.satisfactionRatio-1.0) > 1e-9 {
		t.Errorf("satisfactionRatio = %v, want 1.0", s.satisfactionRatio)
	}
	wantVar := (1.9*1.9+2.1*2.1)/2 - 4.0
	if math.Abs(s.variance-wantVar) > 1e-9 {
		t.Errorf("variance = %v, want %v", s.variance, wantVar)
	}
}

func TestSlidingWindowSmoothsMeasurement(t *testing.T) {
	e, step := newTestEngine()
	f := e.NewFrame(AbsoluteObjective(1.0, 0.1, 0.1, 0.9).WithWindowSize(2))

	// 0.5s then 1.5s: the window average 1.0 satisfies the objective even
	// though neither raw measurement does.
	mustEnter(t, e, f.ID())
	step(500 * time.Millisecond)
	mustComplete(t, e, f.ID())

	mustEnter(t, e, f.ID())
	step(1500 * time.Millisecond)
	mustComplete(t, e, f.ID())

	s := e.lookup(f.ID()).state
	if s.totalInvocations != 2 {
		t.Fatalf("totalInvocations = %d", s.totalInvocations)
	}
	// The second invocation's smoothed sample hits the window.
	if math.Abs(s.satisfactionRatio-0.5) > 1e-9 {
		t.Errorf("satisfactionRatio = %v, want 0.5", s.satisfactionRatio)
	}
}

func TestImpactRescalerMapsScale(t *testing.T) {
	e, step := newTestEngine()
	// A frame-rate style objective: 100 fps over a 10 ms frame.
	obj := AbsoluteObjective(100.0, 0.1, 0.1, 0.9).WithRescaler(func(t float64) float64 {
		return 1.0 / (t + 1e-9)
	})
	f := e.NewFrame(obj)

	mustEnter(t, e, f.ID())
	step(10 * time.Millisecond)
	mustComplete(t, e, f.ID())

	s := e.lookup(f.ID()).state
	if math.Abs(s.unbinnedMean-100.0) > 1e-3 {
		t.Errorf("rescaled sample = %v, want ~100", s.unbinnedMean)
	}
	if math.Abs(s.satisfactionRatio-1.0) > 1e-9 {
		t.Errorf("satisfactionRatio = %v, want 1.0", s.satisfactionRatio)
	}
}
