package cadence

import "fmt"

// execState is the decision state of an exec frame: the model tree, the
// extracted decision schema, the stickiness bookkeeping and the parameter
// publishing the chosen decision tags to enclosing consumers.
type execState struct {
	owner  *frame
	model  Model
	schema *decisionSchema

	decisionParam *parameter

	stickinessLength int
	stickyRemaining  int
	stickyTag        int

	forceDefault    bool
	forceFixedCoeff bool

	// curParent is the innermost executing frame at the time of the current
	// run; nil for a top-level run.
	curParent *frame
}

// ExecFrame is a handle to an exec frame: a frame that selectively invokes
// bound work items to meet the objectives of the frames containing it.
type ExecFrame struct {
	engine *Engine
	id     FrameID
}

// ID returns the exec frame's stable id.
func (x *ExecFrame) ID() FrameID { return x.id }

// ExecFrameOption configures an exec frame at construction.
type ExecFrameOption func(*execState)

// WithStickiness sets the minimum number of consecutive runs an untried
// choice is retried before it can be abandoned. Models with control-lag
// (where a choice's effect shows up invocations later) need this to avoid
// rejecting choices on stale evidence. Default 0.
func WithStickiness(n int) ExecFrameOption {
	return func(s *execState) { s.stickinessLength = n }
}

// NewExecFrame registers an exec frame running the given model. Fails when
// select nodes sharing a variable id disagree on shape, priorities, default
// choice or initial gain.
func (e *Engine) NewExecFrame(model Model, opts ...ExecFrameOption) (*ExecFrame, error) {
	schema, err := extractDecisionSchema(&model)
	if err != nil {
		return nil, err
	}

	f := &frame{kind: kindExec, engine: e}
	f.exec = &execState{owner: f, model: model, schema: schema}
	f.exec.decisionParam = e.newParameter(f)
	for _, opt := range opts {
		opt(f.exec)
	}
	e.register(f)
	return &ExecFrame{engine: e, id: f.id}, nil
}

// ForceDefaultSelection toggles picking each select's declared default
// choice instead of consulting a strategy. Either every select variable in
// the model declares a default or none does; a partial declaration fails
// the run.
func (x *ExecFrame) ForceDefaultSelection(enable bool) {
	if f := x.engine.lookup(x.id); f != nil && f.exec != nil {
		f.exec.forceDefault = enable
	}
}

// ForceFixedFRSCoeff suppresses rescaling of the fast-reaction strategy
// coefficients, pinning them at their declared initial values.
func (x *ExecFrame) ForceFixedFRSCoeff(enable bool) {
	if f := x.engine.lookup(x.id); f != nil && f.exec != nil {
		f.exec.forceFixedCoeff = enable
	}
}

// Destroy removes the exec frame from the registry, leaving a permanent
// null slot.
func (x *ExecFrame) Destroy() { x.engine.destroy(x.id) }

// Run decides this invocation's choices, runs the model, and publishes the
// decision tag to every enclosing consumer. Every caller slot a Bind leaf
// may reach must have been rebound since the previous run.
func (x *ExecFrame) Run() error { return x.engine.RunExecFrame(x.id) }

// RunExecFrame runs the exec frame registered under id.
func (e *Engine) RunExecFrame(id FrameID) error {
	f := e.lookup(id)
	if f == nil {
		return fmt.Errorf("run exec frame %d: %w", id, ErrUnknownFrame)
	}
	if f.kind != kindExec {
		return fmt.Errorf("run exec frame %d: %w", id, ErrTypeMismatch)
	}
	s := f.exec

	s.curParent = e.innermostExecuting()
	if s.curParent != nil && !s.decisionParam.hasConsumer(s.curParent.state) {
		s.decisionParam.addConsumer(s.curParent.state)
	}

	tag := -1

	if s.forceDefault {
		declared := 0
		for _, d := range s.schema.defaults {
			if d != -1 {
				declared++
			}
		}
		if declared > 0 && declared != len(s.schema.varIDs) {
			return fmt.Errorf("run exec frame %d: partial default choices: %w", id, ErrModelSchema)
		}
		if declared > 0 {
			tag = s.schema.encode(s.schema.defaults)
		}
	}

	if tag == -1 && s.stickyRemaining > 0 {
		tag = s.stickyTag
		s.stickyRemaining--
	}

	if tag == -1 {
		tag = e.chooseDecisionTag(s)
	}
	values := s.schema.decode(tag)

	start := e.clk.Now()
	if err := runModel(&s.model, s.schema.varIDs, values); err != nil {
		return fmt.Errorf("run exec frame %d: %w", id, err)
	}
	consumed := e.clk.Elapsed(start, e.clk.Now())

	if s.curParent != nil {
		enclosing := append([]*frame{s.curParent}, enclosingFrames(s.curParent)...)
		s.decisionParam.informConsumers(enclosing, tag)
	}

	if e.metrics != nil {
		e.metrics.ExecFrameRan(id, tag, consumed)
	}
	return nil
}

// chooseDecisionTag dispatches to the configured strategy. Top-level runs
// have no objective to steer toward and take the highest-priority vector.
func (e *Engine) chooseDecisionTag(s *execState) int {
	if s.curParent == nil {
		return s.schema.encode(s.schema.highestPriorityVector())
	}
	if e.features.fastReaction {
		return e.fastReactionTag(s)
	}
	return e.rankingTag(s)
}
