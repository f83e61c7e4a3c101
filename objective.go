package cadence

// ImpactRescaler maps a measured execution time in seconds onto the scale an
// objective is declared in. It must be a pure, continuous, non-negative
// function of its input. The identity is used when none is supplied.
//
// Example: to declare a frame-rate objective instead of a frame-time one,
// use func(t float64) float64 { return 0.001 / (t + 1e-6) } and state the
// objective mean and window on the frame-rate scale.
type ImpactRescaler func(seconds float64) float64

func identityRescaler(seconds float64) float64 { return seconds }

// Objective declares the execution-time target of a measured frame: keep the
// (rescaled, window-averaged) execution time within
// [mean*(1-WindowFracLower), mean*(1+WindowFracUpper)] with probability Prob.
//
// The mean is either given directly (absolute) or as a fraction of another
// frame's resolved mean (relative). Resolution happens on the frame's first
// activation; a relative objective requires its reference frame to have been
// activated first.
type Objective struct {
	// Relative objectives: mean = fraction × resolved mean of ReferenceFrame.
	// ReferenceFrame is -1 for absolute objectives.
	ReferenceFrame   FrameID
	RelativeMeanFrac float64

	// Mean in seconds (on the rescaled scale). Set directly for absolute
	// objectives; unused for relative ones, whose mean is computed at
	// activation and kept in the frame's state.
	Mean float64

	WindowFracLower float64
	WindowFracUpper float64

	// Prob is the declared satisfaction probability. It is recorded and
	// reported but not enforced as a hard constraint.
	Prob float64

	// SlidingWindowSize is the number of recent invocations averaged into
	// the measurement the engine adapts on. Minimum 1.
	SlidingWindowSize int

	// ImpactRescaler, nil for identity.
	ImpactRescaler ImpactRescaler
}

// AbsoluteObjective declares a mean execution time in seconds with an
// acceptance window of [-lowerFrac, +upperFrac] fractions of the mean.
func AbsoluteObjective(mean, lowerFrac, upperFrac, prob float64) *Objective {
	return &Objective{
		ReferenceFrame:    -1,
		Mean:              mean,
		WindowFracLower:   lowerFrac,
		WindowFracUpper:   upperFrac,
		Prob:              prob,
		SlidingWindowSize: 1,
	}
}

// RelativeObjective declares a mean as a fraction of the resolved mean of
// another frame, with the same window semantics as AbsoluteObjective.
func RelativeObjective(reference FrameID, meanFrac, lowerFrac, upperFrac, prob float64) *Objective {
	return &Objective{
		ReferenceFrame:    reference,
		RelativeMeanFrac:  meanFrac,
		WindowFracLower:   lowerFrac,
		WindowFracUpper:   upperFrac,
		Prob:              prob,
		SlidingWindowSize: 1,
	}
}

// WithWindowSize sets the sliding-window length and returns the objective.
func (o *Objective) WithWindowSize(n int) *Objective {
	if n < 1 {
		n = 1
	}
	o.SlidingWindowSize = n
	return o
}

// WithRescaler sets the impact rescaler and returns the objective.
func (o *Objective) WithRescaler(r ImpactRescaler) *Objective {
	o.ImpactRescaler = r
	return o
}

func (o *Objective) isRelative() bool { return o.ReferenceFrame >= 0 }
