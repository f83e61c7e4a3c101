package cadence

import (
	"fmt"
	"sort"
)

// decisionSchema is the decision-vector layout extracted from a model tree:
// one slot per distinct select variable in breadth-first order.
type decisionSchema struct {
	varIDs     []int
	priorities [][]int // per variable, per choice; lower is more preferred
	defaults   []int   // per variable; -1 when none declared
	initGains  []float64

	// priorityOrder[v] lists (priority, value) pairs for variable v sorted
	// from the most preferred value down.
	priorityOrder [][]priorityValue
}

type priorityValue struct {
	priority int
	value    int
}

// extractDecisionSchema walks the model breadth-first recording each select
// variable's shape on first occurrence and verifying that repeats agree on
// child count, priorities, default choice and initial gain.
func extractDecisionSchema(root *Model) (*decisionSchema, error) {
	sch := &decisionSchema{}

	queue := []*Model{root}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		switch m.kind {
		case modelNop, modelBind:
			// leaves

		case modelSequence:
			for i := range m.children {
				queue = append(queue, &m.children[i])
			}

		case modelSelect:
			for i := range m.children {
				queue = append(queue, &m.children[i])
			}

			if len(m.priorities) > 0 && len(m.priorities) != len(m.children) {
				return nil, fmt.Errorf("select var %d: %d priorities for %d children: %w",
					m.varID, len(m.priorities), len(m.children), ErrModelSchema)
			}
			if m.initialGain < 0 {
				return nil, fmt.Errorf("select var %d: initial gain must be positive: %w", m.varID, ErrModelSchema)
			}

			slot := sch.indexOf(m.varID)
			if slot != -1 { // repeated variable: shapes must agree
				if len(sch.priorities[slot]) != len(m.children) {
					return nil, fmt.Errorf("select var %d: unequal selection sizes across occurrences: %w",
						m.varID, ErrModelSchema)
				}
				if len(m.priorities) > 0 {
					previouslySpecified := false
					for _, p := range sch.priorities[slot] {
						if p != 0 {
							previouslySpecified = true
						}
					}
					if previouslySpecified {
						for i, p := range m.priorities {
							if p != sch.priorities[slot][i] {
								return nil, fmt.Errorf("select var %d: conflicting priorities: %w", m.varID, ErrModelSchema)
							}
						}
					} else {
						sch.priorities[slot] = append([]int(nil), m.priorities...)
					}
				}
				if m.defaultChoice != -1 && sch.defaults[slot] != -1 && m.defaultChoice != sch.defaults[slot] {
					return nil, fmt.Errorf("select var %d: conflicting default choices: %w", m.varID, ErrModelSchema)
				}
				if m.defaultChoice != -1 && sch.defaults[slot] == -1 {
					sch.defaults[slot] = m.defaultChoice
				}
				if m.initialGain != 0 && sch.initGains[slot] != 0 && m.initialGain != sch.initGains[slot] {
					return nil, fmt.Errorf("select var %d: conflicting initial gains: %w", m.varID, ErrModelSchema)
				}
				if m.initialGain != 0 && sch.initGains[slot] == 0 {
					sch.initGains[slot] = m.initialGain
				}
			} else { // first occurrence
				slot = len(sch.varIDs)
				sch.varIDs = append(sch.varIDs, m.varID)
				sch.defaults = append(sch.defaults, m.defaultChoice)
				sch.initGains = append(sch.initGains, m.initialGain)
				if len(m.priorities) == 0 {
					sch.priorities = append(sch.priorities, make([]int, len(m.children)))
				} else {
					sch.priorities = append(sch.priorities, append([]int(nil), m.priorities...))
				}
			}

			if d := sch.defaults[slot]; d != -1 && (d < 0 || d >= len(sch.priorities[slot])) {
				return nil, fmt.Errorf("select var %d: default choice %d out of range: %w", m.varID, d, ErrModelSchema)
			}
		}
	}

	sch.priorityOrder = make([][]priorityValue, len(sch.varIDs))
	for v, prios := range sch.priorities {
		pairs := make([]priorityValue, len(prios))
		for value, priority := range prios {
			pairs[value] = priorityValue{priority: priority, value: value}
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].priority < pairs[j].priority })
		sch.priorityOrder[v] = pairs
	}

	return sch, nil
}

func (sch *decisionSchema) indexOf(varID int) int {
	for i, id := range sch.varIDs {
		if id == varID {
			return i
		}
	}
	return -1
}

// numDecisionVectors returns the size of the full decision-vector space.
func (sch *decisionSchema) numDecisionVectors() int {
	n := 1
	for _, prios := range sch.priorities {
		n *= len(prios)
	}
	return n
}

// encode packs per-variable choices into a mixed-radix integer tag.
func (sch *decisionSchema) encode(values []int) int {
	tag := 0
	for i, v := range values {
		tag = tag*len(sch.priorities[i]) + v
	}
	return tag
}

// decode unpacks a tag back into per-variable choices.
func (sch *decisionSchema) decode(tag int) []int {
	values := make([]int, len(sch.priorities))
	for i := len(sch.priorities) - 1; i >= 0; i-- {
		k := len(sch.priorities[i])
		values[i] = tag % k
		tag /= k
	}
	return values
}

// highestPriorityVector returns the decision vector picking each variable's
// most preferred value.
func (sch *decisionSchema) highestPriorityVector() []int {
	values := make([]int, len(sch.priorityOrder))
	for i, order := range sch.priorityOrder {
		values[i] = order[0].value
	}
	return values
}

// nextLowerPriorityVector advances values odometer-style through priority
// order, least significant variable first. When values is already the lowest
// priority vector it is returned unchanged, signalling the end of the walk.
func (sch *decisionSchema) nextLowerPriorityVector(values []int) []int {
	next := append([]int(nil), values...)
	for i := len(sch.priorityOrder) - 1; i >= 0; i-- {
		order := sch.priorityOrder[i]
		pos := -1
		for j, pv := range order {
			if pv.value == values[i] {
				pos = j
				break
			}
		}
		if pos+1 < len(order) {
			next[i] = order[pos+1].value
			return next
		}
		next[i] = order[0].value // cycle this variable, carry to the next
	}
	return values // cycled through everything: already the lowest
}
