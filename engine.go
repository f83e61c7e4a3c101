// Package cadence is a soft real-time adaptation runtime embedded in an
// application.
//
// The application demarcates repeatedly-executing code regions ("frames")
// and declares target execution times for them. Regions whose work can
// trade fidelity for speed are expressed as exec frames: a declarative
// model tree of alternative implementations. On every invocation the engine
// picks which alternatives run, steering the measured execution time of the
// enclosing frames toward their declared mean within a tolerance window.
// Objectives are hierarchical: an outer frame's objective can override the
// preferences of inner frames.
//
// Key concepts:
//
//   - Frame: a marked region whose invocations are timed. Frames nest, and
//     an invocation can be suspended and resumed piecewise.
//
//   - ExecFrame: a region that additionally selects among alternative
//     implementations (a Model of Nop/Bind/Sequence/Select nodes) each run.
//
//   - Parameter: a stream of integer tags emitted by a frame — its
//     execution-time bin, or an exec frame's decision tag. Ancestor frames
//     consume parameters and learn which tags correlate with meeting their
//     objectives.
//
//   - Strategies: by default a reinforcement ranking over the learned
//     correlation history; optionally a fast-reaction gradient controller
//     that treats choices as a real-valued control vector.
//
// The engine is single-threaded by contract: all calls must come from one
// logical thread, and there is no internal locking. Wrap the engine in a
// mutex if another goroutine (for example a statistics HTTP server) needs
// to read from it.
package cadence

import (
	"math/rand"
	"time"

	"github.com/cadence-rt/cadence/internal/infra/clock"
)

// FrameID identifies a frame for the engine's lifetime. Ids are assigned
// monotonically at construction and never reused; a destroyed frame leaves
// a permanent null slot.
type FrameID int64

// Top is the parent id denoting a top-level frame in EnterWithParent.
const Top FrameID = -1

// MetricsHook receives engine events. Implementations must be cheap; the
// hook runs on the engine's single thread inside the hot path. A nil hook
// disables instrumentation.
type MetricsHook interface {
	FrameEntered(id FrameID)
	FrameCompleted(id FrameID, seconds float64, outcome string)
	ExecFrameRan(id FrameID, tag int, seconds float64)
	StrategyRescaled(id FrameID, cause string)
}

// Options configures an Engine.
type Options struct {
	// Now is an injectable clock for testing. Defaults to time.Now.
	Now func() time.Time

	// Rand drives probabilistic exploration. Defaults to a time-seeded
	// source; inject a fixed-seed source for deterministic tests.
	Rand *rand.Rand

	// Metrics receives engine events; nil disables instrumentation.
	Metrics MetricsHook
}

// featureFlags carries the runtime feature controls with their defaults.
type featureFlags struct {
	magnifyByDeviation bool
	exploration        float64
	deemphasize        bool
	deemphasizeAlpha   float64
	forget             bool
	forgetBeta         float64
	fastReaction       bool
}

// Engine owns a frame registry, the frame stack, the clock and the feature
// flags. Multiple engines may coexist (one per test, for example); each is
// fully independent.
type Engine struct {
	clk      *clock.Clock
	rng      *rand.Rand
	metrics  MetricsHook
	verifier constraintVerifier

	frames     []*frame // registry: dense, indexed by id, nil = destroyed
	stack      []*frame // active frames; nil holes compacted from the top on complete
	paramCount int64

	features featureFlags
}

// New returns an engine with default feature settings.
func New(opts Options) *Engine {
	c := clock.New()
	if opts.Now != nil {
		c.Now = opts.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		clk:     c,
		rng:     rng,
		metrics: opts.Metrics,
		features: featureFlags{
			magnifyByDeviation: true,
			exploration:        0,
			deemphasize:        true,
			deemphasizeAlpha:   0.99,
			forget:             true,
			forgetBeta:         0.001,
			fastReaction:       false,
		},
	}
}

// ─── Feature controls ───────────────────────────────────────────────────────

// SetMagnifyCountByDeviation toggles deviation-dependent sample weighting on
// completion. Default true.
func (e *Engine) SetMagnifyCountByDeviation(enable bool) {
	e.features.magnifyByDeviation = enable
}

// SetProbabilityOfExploration sets the chance, in [0,1), that the ranking
// strategy skips past an otherwise chosen candidate. Default 0.
func (e *Engine) SetProbabilityOfExploration(p float64) {
	if p < 0 || p >= 1 {
		return
	}
	e.features.exploration = p
}

// SetDeemphasizeHistory toggles the per-completion decay of learned spreads
// and sets the decay rate. Default (true, 0.99).
func (e *Engine) SetDeemphasizeHistory(enable bool, alpha float64) {
	e.features.deemphasize = enable
	e.features.deemphasizeAlpha = alpha
}

// SetForgetHistory toggles dropping of spread entries whose count falls
// below beta times the spread's total, and sets beta. Default (true, 0.001).
func (e *Engine) SetForgetHistory(enable bool, beta float64) {
	e.features.forget = enable
	e.features.forgetBeta = beta
}

// SetUseFastReactionStrategy switches nested exec frames from reinforcement
// ranking to the gradient controller. Default false.
func (e *Engine) SetUseFastReactionStrategy(enable bool) {
	e.features.fastReaction = enable
}

// ─── Frame construction and registry ────────────────────────────────────────

type frameKind int

const (
	kindMeasured frameKind = iota
	kindExec
)

// frame is a registry slot: a measured frame (objective + adaptation state)
// or an exec frame (model + decision state). Both share the id space.
type frame struct {
	id         FrameID
	kind       frameKind
	engine     *Engine
	objective  *Objective // declared objective, nil if none; kindMeasured only
	constraint Constraint // declared constraint, may be undefined
	state      *frameState
	exec       *execState
}

func (e *Engine) register(f *frame) FrameID {
	f.id = FrameID(len(e.frames))
	e.frames = append(e.frames, f)
	return f.id
}

// lookup returns the live frame for id, or nil.
func (e *Engine) lookup(id FrameID) *frame {
	if id < 0 || int(id) >= len(e.frames) {
		return nil
	}
	return e.frames[id]
}

// Frame is a handle to a measured frame.
type Frame struct {
	engine *Engine
	id     FrameID
}

// ID returns the frame's stable id.
func (f *Frame) ID() FrameID { return f.id }

// NewFrame registers a measured frame. A nil objective declares a frame that
// is timed and binned absolutely but imposes no target of its own.
func (e *Engine) NewFrame(obj *Objective) *Frame {
	return e.NewConstrainedFrame(obj, Constraint{})
}

// NewConstrainedFrame registers a measured frame carrying a correctness
// constraint over the select variables decided within it.
func (e *Engine) NewConstrainedFrame(obj *Objective, con Constraint) *Frame {
	f := &frame{kind: kindMeasured, engine: e, objective: obj, constraint: con}
	f.state = newFrameState(f)
	e.register(f)
	return &Frame{engine: e, id: f.id}
}

// Destroy removes the frame from the registry, leaving a permanent null
// slot. The frame must be inactive.
func (f *Frame) Destroy() { f.engine.destroy(f.id) }

func (e *Engine) destroy(id FrameID) {
	if e.lookup(id) != nil {
		e.frames[id] = nil
	}
}

// Convenience queries mirroring the flat bridge surface.

// IsActive reports whether the frame is executing or suspended. Unknown and
// destroyed frames report false.
func (e *Engine) IsActive(id FrameID) bool {
	f := e.lookup(id)
	return f != nil && f.state != nil && f.state.active
}

// IsExecuting reports whether the frame is currently executing.
func (e *Engine) IsExecuting(id FrameID) bool {
	f := e.lookup(id)
	return f != nil && f.state != nil && f.state.active && !f.state.suspended
}
