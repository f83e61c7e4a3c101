package cadence

import "fmt"

// runModel walks the model tree executing the work it describes under the
// given decision: Nop does nothing, Bind invokes (and clears) its caller's
// bound work item, Sequence runs children in order, and Select runs the one
// child its variable's decided value names.
func runModel(m *Model, varIDs []int, values []int) error {
	switch m.kind {
	case modelNop:
		return nil

	case modelBind:
		if m.caller.fn == nil {
			return ErrUnboundCaller
		}
		fn := m.caller.fn
		m.caller.fn = nil // single-shot: a binding never runs twice
		fn()
		return nil

	case modelSequence:
		for i := range m.children {
			if err := runModel(&m.children[i], varIDs, values); err != nil {
				return err
			}
		}
		return nil

	case modelSelect:
		slot := -1
		for i, id := range varIDs {
			if id == m.varID {
				slot = i
				break
			}
		}
		if slot == -1 {
			return fmt.Errorf("select var %d missing from decision vector: %w", m.varID, ErrModelSchema)
		}
		return runModel(&m.children[values[slot]], varIDs, values)

	default:
		return fmt.Errorf("unknown model kind %d: %w", m.kind, ErrModelSchema)
	}
}
