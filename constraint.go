package cadence

// VID names a select variable inside a constraint expression.
type VID int

// constraintKind discriminates the Constraint tree variants.
type constraintKind int

const (
	conUndef constraintKind = iota
	conGT
	conGEQ
	conLT
	conLEQ
	conEQ
	conAND
	conOR
	conXOR
	conNOT
)

// Constraint is a correctness condition over the select variables that may
// be decided within a frame's invocation: linear comparisons between two
// variables, combined with three-valued logic connectives. A constraint
// attached to a frame applies to that frame and all its dynamic sub-frames.
//
// Constraints evaluate in three-valued logic because at any instant only
// some of the mentioned variables have taken a value for the current
// invocation.
type Constraint struct {
	kind     constraintKind
	v1, v2   VID
	children []Constraint
}

// GT returns v1 > v2.
func GT(v1, v2 VID) Constraint { return Constraint{kind: conGT, v1: v1, v2: v2} }

// GEQ returns v1 >= v2.
func GEQ(v1, v2 VID) Constraint { return Constraint{kind: conGEQ, v1: v1, v2: v2} }

// LT returns v1 < v2.
func LT(v1, v2 VID) Constraint { return Constraint{kind: conLT, v1: v1, v2: v2} }

// LEQ returns v1 <= v2.
func LEQ(v1, v2 VID) Constraint { return Constraint{kind: conLEQ, v1: v1, v2: v2} }

// EQ returns v1 == v2.
func EQ(v1, v2 VID) Constraint { return Constraint{kind: conEQ, v1: v1, v2: v2} }

// And combines two constraints conjunctively.
func And(c1, c2 Constraint) Constraint {
	return Constraint{kind: conAND, children: []Constraint{c1, c2}}
}

// Or combines two constraints disjunctively.
func Or(c1, c2 Constraint) Constraint {
	return Constraint{kind: conOR, children: []Constraint{c1, c2}}
}

// Xor combines two constraints exclusively.
func Xor(c1, c2 Constraint) Constraint {
	return Constraint{kind: conXOR, children: []Constraint{c1, c2}}
}

// Not negates a constraint.
func Not(c Constraint) Constraint {
	return Constraint{kind: conNOT, children: []Constraint{c}}
}

func (c Constraint) isDefined() bool { return c.kind != conUndef }

// ─── Three-valued logic ─────────────────────────────────────────────────────

// LogicValue is a three-valued truth value: False, True, or Unknown. Unknown
// arises when a constraint mentions variables that have not yet taken a
// value in the current invocation.
type LogicValue int

// Three-valued truth values.
const (
	LogicFalse LogicValue = iota
	LogicTrue
	LogicUnknown
)

// IsDefinite reports whether v is True or False.
func (v LogicValue) IsDefinite() bool { return v == LogicTrue || v == LogicFalse }

// LogicAnd returns the three-valued conjunction.
func LogicAnd(a, b LogicValue) LogicValue {
	if a == LogicFalse || b == LogicFalse {
		return LogicFalse
	}
	if a == LogicTrue && b == LogicTrue {
		return LogicTrue
	}
	return LogicUnknown
}

// LogicOr returns the three-valued disjunction.
func LogicOr(a, b LogicValue) LogicValue {
	if a == LogicTrue || b == LogicTrue {
		return LogicTrue
	}
	if a == LogicFalse && b == LogicFalse {
		return LogicFalse
	}
	return LogicUnknown
}

// LogicXor returns the three-valued exclusive disjunction.
func LogicXor(a, b LogicValue) LogicValue {
	if a == LogicUnknown || b == LogicUnknown {
		return LogicUnknown
	}
	if a != b {
		return LogicTrue
	}
	return LogicFalse
}

// LogicNot returns the three-valued negation.
func LogicNot(a LogicValue) LogicValue {
	if a == LogicUnknown {
		return LogicUnknown
	}
	if a == LogicTrue {
		return LogicFalse
	}
	return LogicTrue
}

// ─── Verifier plug point ────────────────────────────────────────────────────

// constraintVerifier checks candidate decisions against the constraints
// declared on the active enclosing frames.
type constraintVerifier struct{}

// VerifyDecisions reports whether assigning the given values to the given
// select variables can satisfy the given constraints.
//
// TODO: evaluate the constraint trees in three-valued logic over the
// partial assignment; until then every candidate is treated as satisfiable.
func (constraintVerifier) VerifyDecisions(constraints []Constraint, varIDs, values []int) LogicValue {
	return LogicTrue
}

// activeConstraints collects the declared constraints on the active
// ancestor chain of start, innermost first, start included.
func (e *Engine) activeConstraints(start *frame) []Constraint {
	var out []Constraint
	for _, f := range append([]*frame{start}, enclosingFrames(start)...) {
		if f.constraint.isDefined() {
			out = append(out, f.constraint)
		}
	}
	return out
}
