package cadence

import "math"

// Gradient controller constants.
//
// The EWMA sums converge geometrically: with weight d, a steady per-step
// contribution S accumulates to S/(1-d). Deviation accumulation uses weight
// 0.9 (converges to 10x the steady contribution); the half-cycle magnitude
// sum uses the shorter memory 0.6 (converges to 2.5x).
const (
	deviationWeight      = 0.9
	deviationConvergence = 1.0 / (1.0 - deviationWeight) // 10
	halfCycleWeight      = 0.6
	halfCycleConvergence = 1.0 / (1.0 - halfCycleWeight) // 2.5
	defaultGain          = -1.0 / 5000.0
	minControlLagRescale = 1.2
)

// statWindowBoundaries bucket a parent invocation's deviation from its mean
// objective (as a fraction of the mean) for the per-choice outcome table.
var statWindowBoundaries = []float64{-1.0, -0.75, -0.40, -0.20, -0.10, 0.10, 0.20, 0.40, 0.75, 1.0, 1.5, 2.0, 3.0, 5.0}

// frsState is the fast-reaction controller state, held by the measured
// parent frame whose objective the controller steers toward. The controlled
// system is modelled per-variable as y = (1/a_i)·x_i with negative gains
// (more complex choices take longer).
type frsState struct {
	coeffs []float64 // a_i, negative

	prevX          []float64 // bounded previous choices as reals; -1 before the first decision
	prevXUnbounded []float64

	// Range-precision bookkeeping: per-variable |Δx| as a plain average over
	// the current rescale window and as a weight-0.9 EWMA sum.
	avgXDev      []float64
	sumXDev      []float64
	windowLenDev int64

	// Unidirectional failure runs: sign tracks the side of the mean the
	// failing y lies on, magnitude the run length.
	failUnidirRun   int64
	avgUnidirRun    float64
	numUnidirRuns   int64

	// Control-lag bookkeeping: half-cycles of y around the mean objective.
	prevY           float64
	halfStartSign   int
	halfPosMax      float64
	halfNegMax      float64
	halfLength      int64
	halfCrossedMean bool
	halfEWMA        float64

	// Responsiveness bookkeeping: one-sided failure runs and the per-variable
	// |Δx| they accumulated, snapshotted when a run ends.
	onesidedRun           int64
	deflectionX           []float64
	correctionRunLength   int64
	correctionDeflectionX []float64

	// choiceStats[v][choice][bucket] counts parent outcomes per chosen value.
	choiceStats [][][]int64
}

func newFRSState(sch *decisionSchema) *frsState {
	n := len(sch.varIDs)
	st := &frsState{
		coeffs:                make([]float64, n),
		prevX:                 make([]float64, n),
		prevXUnbounded:        make([]float64, n),
		avgXDev:               make([]float64, n),
		sumXDev:               make([]float64, n),
		deflectionX:           make([]float64, n),
		correctionDeflectionX: make([]float64, n),
		choiceStats:           make([][][]int64, n),
	}
	for i := 0; i < n; i++ {
		st.coeffs[i] = defaultGain
		if sch.initGains[i] != 0 {
			st.coeffs[i] = -sch.initGains[i]
		}
		st.prevX[i] = -1
		st.prevXUnbounded[i] = -1
		st.choiceStats[i] = make([][]int64, len(sch.priorities[i]))
		for j := range st.choiceStats[i] {
			st.choiceStats[i][j] = make([]int64, len(statWindowBoundaries))
		}
	}
	st.halfStartSign = -1 // prevY starts at 0, below any positive mean
	return st
}

// fastReactionTag runs one step of the gradient controller against the
// immediate parent's objective and returns the encoded decision tag.
// Without a parent mean objective there is nothing to steer toward and the
// most complex vector (tag 0) runs.
func (e *Engine) fastReactionTag(s *execState) int {
	sch := s.schema
	ps := s.curParent.state

	if !ps.hasMean {
		return 0
	}

	if ps.frs == nil {
		ps.frs = newFRSState(sch)
	}
	st := ps.frs

	yDelta := ps.prevExecTime - ps.mean

	st.updateHalfCycle(ps, yDelta)
	st.noteChoiceOutcome(ps)

	success := ps.prevExecTime >= ps.mean*(1.0-ps.windowFracLower) &&
		ps.prevExecTime <= ps.mean*(1.0+ps.windowFracUpper)

	if success {
		values := make([]int, len(st.prevX))
		for i, x := range st.prevX {
			if x >= 0 {
				values[i] = int(x + 0.5)
			}
		}

		if st.failUnidirRun != 0 { // this success terminated a run
			st.numUnidirRuns++
			st.avgUnidirRun = (st.avgUnidirRun*float64(st.numUnidirRuns-1) +
				math.Abs(float64(st.failUnidirRun))) / float64(st.numUnidirRuns)
			st.failUnidirRun = 0
		}

		st.snapshotOnesidedRun()
		return sch.encode(values)
	}

	// FAILURE: move every variable along its inverse gain.
	st.windowLenDev++

	if (yDelta > 0 && st.onesidedRun < 0) ||
		(yDelta < 0 && st.onesidedRun > 0) ||
		absInt64(st.onesidedRun) >= 2*int64(ps.windowSize) {
		st.snapshotOnesidedRun()
	}
	if yDelta >= 0 {
		st.onesidedRun++
	} else {
		st.onesidedRun--
	}

	newX := make([]float64, len(st.prevX))
	for i := range newX {
		if st.prevX[i] < 0 { // first decision: start with the most complex
			newX[i] = 0
			continue
		}
		newX[i] = st.prevX[i] - yDelta/st.coeffs[i]

		dev := math.Abs(newX[i] - st.prevX[i])
		st.avgXDev[i] = (st.avgXDev[i]*float64(st.windowLenDev-1) + dev) / float64(st.windowLenDev)
		st.sumXDev[i] = st.sumXDev[i]*deviationWeight + dev
		st.deflectionX[i] += dev
	}

	bounded := make([]float64, len(newX))
	values := make([]int, len(newX))
	for i, x := range newX {
		hi := float64(len(sch.priorities[i]) - 1)
		bounded[i] = math.Min(math.Max(x, 0), hi)
		values[i] = int(bounded[i] + 0.5)
	}

	st.updateUnidirectionalRun(sch, newX, yDelta)
	e.maybeRescale(s, ps, st)

	copy(st.prevX, bounded)
	copy(st.prevXUnbounded, newX)

	return sch.encode(values)
}

// updateHalfCycle advances the half-cycle tracker with the parent's latest
// measurement. A potential half-cycle becomes true once y crosses the mean;
// it ends when y reverses direction, contributing its peak-to-peak magnitude
// per sliding window to the weight-0.6 EWMA the control-lag trigger reads.
func (st *frsState) updateHalfCycle(ps *frameState, yDelta float64) {
	yDeflection := ps.prevExecTime - st.prevY

	if st.halfCrossedMean {
		if (st.halfStartSign == -1 && yDeflection < 0) ||
			(st.halfStartSign == +1 && yDeflection > 0) {
			// The half-cycle ends on direction reversal.
			magnitude := (st.halfPosMax - st.halfNegMax) /
				(float64(st.halfLength) / float64(ps.windowSize))
			st.halfEWMA = st.halfEWMA*halfCycleWeight + magnitude

			// A new potential half-cycle starts at the current deflection.
			if yDelta > 0 {
				st.halfStartSign = +1
			} else {
				st.halfStartSign = -1
			}
			st.halfPosMax = math.Max(yDelta, 0)
			st.halfNegMax = math.Min(yDelta, 0)
			st.halfLength = 0
			st.halfCrossedMean = false
		}
	} else {
		if (st.halfStartSign == -1 && yDelta > 0) ||
			(st.halfStartSign == +1 && yDelta < 0) {
			st.halfCrossedMean = true
		}
	}

	if yDelta > st.halfPosMax {
		st.halfPosMax = yDelta
	}
	if yDelta < st.halfNegMax {
		st.halfNegMax = yDelta
	}
	st.halfLength++
	st.prevY = ps.prevExecTime
}

// noteChoiceOutcome records the parent's latest deviation bucket against the
// previously chosen value of each variable.
func (st *frsState) noteChoiceOutcome(ps *frameState) {
	bucket := -1
	for b := range statWindowBoundaries {
		if b < len(statWindowBoundaries)-1 {
			if ps.prevExecTime >= ps.mean*(1.0+statWindowBoundaries[b]) &&
				ps.prevExecTime < ps.mean*(1.0+statWindowBoundaries[b+1]) {
				bucket = b
				break
			}
		} else if ps.prevExecTime >= ps.mean*(1.0+statWindowBoundaries[b]) {
			bucket = b
			break
		}
	}
	if bucket < 0 {
		return
	}

	for i := range st.choiceStats {
		if st.prevX[i] < 0 { // first time, no previous choice
			continue
		}
		st.choiceStats[i][int(st.prevX[i]+0.5)][bucket]++
	}
}

// snapshotOnesidedRun ends the current one-sided failure run, preserving its
// length and accumulated |Δx| for the responsiveness trigger.
func (st *frsState) snapshotOnesidedRun() {
	st.correctionRunLength = absInt64(st.onesidedRun)
	st.onesidedRun = 0
	copy(st.correctionDeflectionX, st.deflectionX)
	for i := range st.deflectionX {
		st.deflectionX[i] = 0
	}
}

// updateUnidirectionalRun tracks runs of consecutive failures with y on the
// same side of the mean. When every variable is stuck at a range boundary
// the controller cannot act, so the run ends without contributing further.
func (st *frsState) updateUnidirectionalRun(sch *decisionSchema, newX []float64, yDelta float64) {
	allStuck := true
	for i := range newX {
		hi := float64(len(sch.priorities[i]) - 1)
		stuck := (st.prevXUnbounded[i] < 0 && newX[i] < 0) ||
			(st.prevXUnbounded[i] > hi && newX[i] > hi)
		if !stuck {
			allStuck = false
		}
	}

	if !allStuck {
		switch {
		case yDelta > 0 && st.failUnidirRun >= 0:
			st.failUnidirRun++
		case yDelta < 0 && st.failUnidirRun <= 0:
			st.failUnidirRun--
		default: // direction flipped: the previous run ends, a new one starts
			st.numUnidirRuns++
			st.avgUnidirRun = (st.avgUnidirRun*float64(st.numUnidirRuns-1) +
				math.Abs(float64(st.failUnidirRun))) / float64(st.numUnidirRuns)
			if yDelta > 0 {
				st.failUnidirRun = 1
			} else {
				st.failUnidirRun = -1
			}
		}
	} else if st.failUnidirRun != 0 {
		st.numUnidirRuns++
		st.avgUnidirRun = (st.avgUnidirRun*float64(st.numUnidirRuns-1) +
			math.Abs(float64(st.failUnidirRun))) / float64(st.numUnidirRuns)
		st.failUnidirRun = 0 // saturated: this failure contributes to no run
	}
}

// maybeRescale applies at most one of the three self-rescaling triggers, in
// priority order, and clears the accumulated evidence when one fires. No
// trigger fires before a full sliding window of evidence has accumulated,
// so a single outlier cannot distort the gain estimate.
func (e *Engine) maybeRescale(s *execState, ps *frameState, st *frsState) {
	factors := make([]float64, len(st.coeffs))
	cause := ""

	// Range precision: the per-step movement saturates the choice range, so
	// shrink the gain until one unit of Δy moves roughly one choice step.
	for i := range st.sumXDev {
		if st.sumXDev[i] > deviationConvergence*1.0 && st.avgXDev[i] >= 1.0 {
			factors[i] = st.avgXDev[i]
			cause = "range-precision"
		}
	}

	// Responsiveness: failures kept pushing one way for longer than a
	// window while the control barely moved; raise the slowest variable's
	// gain so the controller catches up faster.
	if cause == "" && st.correctionRunLength > int64(ps.windowSize) {
		numWindows := float64(st.correctionRunLength) / float64(ps.windowSize)
		minFactor := 0.0
		minVar := -1
		for i := range st.correctionDeflectionX {
			distortionPerWindow := st.correctionDeflectionX[i] / numWindows
			if distortionPerWindow != 0 && distortionPerWindow < 1.0 {
				if minVar == -1 || distortionPerWindow < minFactor {
					minVar = i
					minFactor = distortionPerWindow
				}
			}
		}
		if minVar != -1 {
			factors[minVar] = minFactor
			cause = "responsiveness"
		}
	}

	// Control lag: sustained oscillation much taller than the objective
	// window means the control overshoots; dampen every gain by the excess.
	if cause == "" {
		windowHeight := ps.mean * (ps.windowFracLower + ps.windowFracUpper)
		threshold := halfCycleConvergence * windowHeight
		factor := 0.0
		if st.halfEWMA > threshold {
			factor = st.halfEWMA / threshold
		}
		if factor < minControlLagRescale {
			factor = 0
		}
		if factor != 0 {
			for i := range factors {
				factors[i] = factor
			}
			cause = "control-lag"
		}
	}

	if s.forceFixedCoeff {
		cause = ""
	}
	if cause != "" && st.windowLenDev < int64(ps.windowSize) {
		cause = ""
	}
	if cause == "" {
		return
	}

	for i := range st.coeffs {
		if factors[i] != 0 {
			st.coeffs[i] *= factors[i]
		}
		st.avgXDev[i] = 0
		st.sumXDev[i] = 0
	}
	st.windowLenDev = 0

	st.failUnidirRun = 0
	st.avgUnidirRun = 0
	st.numUnidirRuns = 0

	if ps.prevExecTime <= ps.mean {
		st.halfStartSign = -1
	} else {
		st.halfStartSign = +1
	}
	st.halfPosMax = 0
	st.halfNegMax = 0
	st.halfLength = 0
	st.halfCrossedMean = false
	st.halfEWMA = 0

	st.onesidedRun = 0
	st.correctionRunLength = 0
	for i := range st.deflectionX {
		st.deflectionX[i] = 0
		st.correctionDeflectionX[i] = 0
	}

	if e.metrics != nil {
		e.metrics.StrategyRescaled(s.owner.id, cause)
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
