package cadence

import (
	"testing"
	"time"
)

func TestLogicAnd(t *testing.T) {
	tests := []struct {
		a, b, want LogicValue
	}{
		{LogicTrue, LogicTrue, LogicTrue},
		{LogicTrue, LogicFalse, LogicFalse},
		{LogicFalse, LogicTrue, LogicFalse},
		{LogicFalse, LogicFalse, LogicFalse},
		{LogicTrue, LogicUnknown, LogicUnknown},
		{LogicUnknown, LogicTrue, LogicUnknown},
		{LogicFalse, LogicUnknown, LogicFalse}, // a definite false dominates
		{LogicUnknown, LogicFalse, LogicFalse},
		{LogicUnknown, LogicUnknown, LogicUnknown},
	}
	for _, tt := range tests {
		if got := LogicAnd(tt.a, tt.b); got != tt.want {
			t.Errorf("LogicAnd(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLogicOr(t *testing.T) {
	tests := []struct {
		a, b, want LogicValue
	}{
		{LogicTrue, LogicTrue, LogicTrue},
		{LogicTrue, LogicFalse, LogicTrue},
		{LogicFalse, LogicTrue, LogicTrue},
		{LogicFalse, LogicFalse, LogicFalse},
		{LogicTrue, LogicUnknown, LogicTrue}, // a definite true dominates
		{LogicUnknown, LogicTrue, LogicTrue},
		{LogicFalse, LogicUnknown, LogicUnknown},
		{LogicUnknown, LogicFalse, LogicUnknown},
		{LogicUnknown, LogicUnknown, LogicUnknown},
	}
	for _, tt := range tests {
		if got := LogicOr(tt.a, tt.b); got != tt.want {
			t.Errorf("LogicOr(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLogicXor(t *testing.T) {
	tests := []struct {
		a, b, want LogicValue
	}{
		{LogicTrue, LogicTrue, LogicFalse},
		{LogicTrue, LogicFalse, LogicTrue},
		{LogicFalse, LogicTrue, LogicTrue},
		{LogicFalse, LogicFalse, LogicFalse},
		// Unknown poisons xor: no definite value can absorb it.
		{LogicTrue, LogicUnknown, LogicUnknown},
		{LogicUnknown, LogicFalse, LogicUnknown},
		{LogicUnknown, LogicUnknown, LogicUnknown},
	}
	for _, tt := range tests {
		if got := LogicXor(tt.a, tt.b); got != tt.want {
			t.Errorf("LogicXor(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLogicNot(t *testing.T) {
	tests := []struct {
		a, want LogicValue
	}{
		{LogicTrue, LogicFalse},
		{LogicFalse, LogicTrue},
		{LogicUnknown, LogicUnknown},
	}
	for _, tt := range tests {
		if got := LogicNot(tt.a); got != tt.want {
			t.Errorf("LogicNot(%v) = %v, want %v", tt.a, got, tt.want)
		}
	}
}

func TestLogicValueIsDefinite(t *testing.T) {
	if !LogicTrue.IsDefinite() || !LogicFalse.IsDefinite() {
		t.Error("True and False are definite")
	}
	if LogicUnknown.IsDefinite() {
		t.Error("Unknown is not definite")
	}
}

func TestConstraintConstructors(t *testing.T) {
	tests := []struct {
		name string
		con  Constraint
		kind constraintKind
	}{
		{"GT", GT(1, 2), conGT},
		{"GEQ", GEQ(1, 2), conGEQ},
		{"LT", LT(1, 2), conLT},
		{"LEQ", LEQ(1, 2), conLEQ},
		{"EQ", EQ(1, 2), conEQ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.con.kind != tt.kind {
				t.Errorf("kind = %v, want %v", tt.con.kind, tt.kind)
			}
			if tt.con.v1 != 1 || tt.con.v2 != 2 {
				t.Errorf("operands = (%v, %v), want (1, 2)", tt.con.v1, tt.con.v2)
			}
			if !tt.con.isDefined() {
				t.Error("constructed constraint reports undefined")
			}
		})
	}
}

func TestConstraintCombinators(t *testing.T) {
	leaf1 := GT(1, 2)
	leaf2 := EQ(3, 4)

	tests := []struct {
		name     string
		con      Constraint
		kind     constraintKind
		children int
	}{
		{"And", And(leaf1, leaf2), conAND, 2},
		{"Or", Or(leaf1, leaf2), conOR, 2},
		{"Xor", Xor(leaf1, leaf2), conXOR, 2},
		{"Not", Not(leaf1), conNOT, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.con.kind != tt.kind {
				t.Errorf("kind = %v, want %v", tt.con.kind, tt.kind)
			}
			if len(tt.con.children) != tt.children {
				t.Errorf("children = %d, want %d", len(tt.con.children), tt.children)
			}
			if tt.con.children[0].kind != conGT {
				t.Error("first child is not the given leaf")
			}
		})
	}

	if (Constraint{}).isDefined() {
		t.Error("zero constraint reports defined")
	}
}

func TestVerifyDecisionsAcceptsEverything(t *testing.T) {
	// The verifier is a plug point: until constraint evaluation over
	// partial assignments is wired, every candidate must pass.
	var v constraintVerifier
	cons := []Constraint{And(GT(0, 1), Not(EQ(0, 1)))}

	if got := v.VerifyDecisions(cons, []int{0, 1}, []int{2, 0}); got != LogicTrue {
		t.Errorf("VerifyDecisions = %v, want LogicTrue", got)
	}
	if got := v.VerifyDecisions(nil, nil, nil); got != LogicTrue {
		t.Errorf("VerifyDecisions with no constraints = %v, want LogicTrue", got)
	}
}

func TestConstrainedFramePassesRankingFilter(t *testing.T) {
	e, step := newTestEngine()

	// A frame-level constraint must not disturb ranking while the verifier
	// accepts everything.
	parent := e.NewConstrainedFrame(
		AbsoluteObjective(0.005, 0.3, 0.3, 0.9),
		GT(0, 1),
	)
	c := NewCaller()
	ef, err := e.NewExecFrame(Select(0, []Model{Bind(c), Nop()}))
	if err != nil {
		t.Fatal(err)
	}

	mustEnter(t, e, parent.ID())
	if got := e.activeConstraints(e.lookup(parent.ID())); len(got) != 1 {
		t.Fatalf("activeConstraints = %d, want the declared constraint", len(got))
	}
	c.Rebind(func() { step(5 * time.Millisecond) })
	if err := ef.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mustComplete(t, e, parent.ID())
}
