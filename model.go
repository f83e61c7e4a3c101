package cadence

// Caller is a slot a work item is bound to before each exec-frame run. The
// binding is single-shot: invoking the bound work item clears the slot, so a
// stale binding can never run twice.
type Caller struct {
	fn func()
}

// NewCaller returns an empty caller slot.
func NewCaller() *Caller { return &Caller{} }

// Rebind replaces the caller's bound work item.
func (c *Caller) Rebind(fn func()) { c.fn = fn }

// modelKind discriminates the Model tree variants.
type modelKind int

const (
	modelNop modelKind = iota
	modelBind
	modelSequence
	modelSelect
)

// Model is a declarative tree describing the alternative implementations an
// exec frame chooses among on each run:
//
//   - Nop performs no work.
//   - Bind invokes the work item currently bound to a caller slot.
//   - Sequence runs its children in order.
//   - Select runs exactly one child, chosen by the decision made for its
//     variable. Select nodes sharing a variable id under one exec frame
//     must agree on child count, priorities, default choice and initial
//     gain, or construction of the exec frame fails.
//
// Models are plain values; an exec frame takes ownership of the tree it is
// constructed with.
type Model struct {
	kind     modelKind
	caller   *Caller // modelBind
	children []Model // modelSequence, modelSelect

	// modelSelect only
	varID      int
	priorities []int // one per child; lower is more preferred; nil means all equal
	// defaultChoice is a fixed child index picked when default selection is
	// forced on the exec frame; -1 when unset.
	defaultChoice int
	// initialGain seeds the fast-reaction coefficient for this variable when
	// positive; 0 leaves the strategy's built-in default.
	initialGain float64
}

// Nop returns a model that does nothing.
func Nop() Model { return Model{kind: modelNop, varID: -1, defaultChoice: -1} }

// Bind returns a leaf model invoking the work item bound to caller.
func Bind(caller *Caller) Model {
	return Model{kind: modelBind, caller: caller, varID: -1, defaultChoice: -1}
}

// Sequence returns a model running children in order.
func Sequence(children ...Model) Model {
	return Model{kind: modelSequence, children: children, varID: -1, defaultChoice: -1}
}

// SelectOption configures a Select model.
type SelectOption func(*Model)

// WithPriorities sets the per-child tie-break preference order; lower values
// are more preferred. Must match the child count.
func WithPriorities(priorities ...int) SelectOption {
	return func(m *Model) { m.priorities = priorities }
}

// WithDefaultChoice sets the child index picked when default selection is
// forced on the owning exec frame.
func WithDefaultChoice(index int) SelectOption {
	return func(m *Model) { m.defaultChoice = index }
}

// WithInitialGain seeds the fast-reaction strategy coefficient for this
// select variable. Must be positive; it is stored negated internally since
// more complex choices take longer.
func WithInitialGain(gain float64) SelectOption {
	return func(m *Model) { m.initialGain = gain }
}

// Select returns a model that runs one of children per the decision made for
// variable varID.
func Select(varID int, children []Model, opts ...SelectOption) Model {
	m := Model{kind: modelSelect, children: children, varID: varID, defaultChoice: -1}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
