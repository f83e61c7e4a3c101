package cadence

import "fmt"

// innermostExecuting returns the deepest non-suspended frame on the stack,
// or nil when no frame is executing.
func (e *Engine) innermostExecuting() *frame {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if f := e.stack[i]; f != nil && !f.state.suspended {
			return f
		}
	}
	return nil
}

// enclosingFrames returns the active ancestor chain of f, innermost parent
// first, not including f itself.
func enclosingFrames(f *frame) []*frame {
	var parent *frame
	switch f.kind {
	case kindMeasured:
		parent = f.state.parent
	case kindExec:
		parent = f.exec.curParent
	}
	var chain []*frame
	for parent != nil {
		chain = append(chain, parent)
		parent = parent.state.parent
	}
	return chain
}

// Enter starts or resumes frame id under the innermost executing frame (or
// as a top-level frame when nothing is executing).
func (e *Engine) Enter(id FrameID) error {
	parentID := Top
	if p := e.innermostExecuting(); p != nil {
		parentID = p.id
	}
	return e.EnterWithParent(id, parentID)
}

// EnterWithParent starts or resumes frame id under the chosen parent, which
// must currently be executing. A parent of Top enters a top-level frame. A
// resume must name the same parent the invocation started under.
func (e *Engine) EnterWithParent(id, parentID FrameID) error {
	now := e.clk.Now()

	f := e.lookup(id)
	if f == nil {
		return fmt.Errorf("enter frame %d: %w", id, ErrUnknownFrame)
	}
	if f.kind != kindMeasured {
		return fmt.Errorf("enter frame %d: %w", id, ErrTypeMismatch)
	}
	s := f.state

	switch {
	case !s.active: // Start: Inactive -> Executing
		var parent *frame
		if parentID != Top {
			p := e.lookup(parentID)
			if p == nil || p.kind != kindMeasured || !p.state.active || p.state.suspended {
				return fmt.Errorf("enter frame %d under %d: %w", id, parentID, ErrParentNotExecuting)
			}
			parent = p
		}

		s.active = true
		s.suspended = false
		s.curExecTime = 0

		s.stackIndex = len(e.stack)
		e.stack = append(e.stack, f)

		s.parent = parent
		if parent != nil {
			parent.state.activeChildren = append(parent.state.activeChildren, f)
		}

		if err := e.activateDecisionModel(f); err != nil {
			return fmt.Errorf("enter frame %d: %w", id, err)
		}

	case s.suspended: // Resume: Suspended -> Executing
		s.suspended = false
		if parentID != Top {
			if s.parent == nil || s.parent.id != parentID {
				return fmt.Errorf("resume frame %d under %d: %w", id, parentID, ErrParentMismatch)
			}
		} else if s.parent != nil {
			return fmt.Errorf("resume frame %d as top-level: %w", id, ErrParentMismatch)
		}

	default: // already Executing
		return fmt.Errorf("enter frame %d: %w", id, ErrReEnter)
	}

	s.enterTime = now
	if e.metrics != nil {
		e.metrics.FrameEntered(id)
	}
	return nil
}

// ExitSuspend suspends the executing frame id, returning the seconds of
// active execution since it last started or resumed. All direct children
// must already be suspended.
func (e *Engine) ExitSuspend(id FrameID) (float64, error) {
	f := e.lookup(id)
	if f == nil {
		return 0, fmt.Errorf("suspend frame %d: %w", id, ErrUnknownFrame)
	}
	if f.kind != kindMeasured {
		return 0, fmt.Errorf("suspend frame %d: %w", id, ErrTypeMismatch)
	}
	s := f.state
	if !s.active || s.suspended {
		return 0, fmt.Errorf("suspend frame %d: %w", id, ErrFrameInactive)
	}

	for _, child := range s.activeChildren {
		if !child.state.suspended {
			return 0, fmt.Errorf("suspend frame %d: child %d executing: %w", id, child.id, ErrNonLeafSuspend)
		}
	}

	dt := e.clk.Elapsed(s.enterTime, e.clk.Now())
	s.curExecTime += dt
	s.suspended = true
	return dt, nil
}

// ExitComplete completes the current invocation of frame id: suspends it if
// still executing, completes all still-active children post-order, runs the
// statistics update pipeline, and unlinks the frame. Returns the
// invocation's total active execution time in seconds, cumulative over all
// suspend/resume pieces.
//
// Completing an inactive frame is an error (the engine cannot tell a stray
// call from a corrupted stack). The Scope guard at the API level absorbs
// that case for unwinding paths.
func (e *Engine) ExitComplete(id FrameID) (float64, error) {
	f := e.lookup(id)
	if f == nil {
		return 0, fmt.Errorf("complete frame %d: %w", id, ErrUnknownFrame)
	}
	if f.kind != kindMeasured {
		return 0, fmt.Errorf("complete frame %d: %w", id, ErrTypeMismatch)
	}
	s := f.state
	if !s.active {
		return 0, fmt.Errorf("complete frame %d: %w", id, ErrFrameInactive)
	}

	if !s.suspended {
		if _, err := e.ExitSuspend(id); err != nil {
			return 0, err
		}
	}

	// Complete still-active children. Each recursive call removes the child
	// from s.activeChildren, so walk a snapshot.
	children := append([]*frame(nil), s.activeChildren...)
	for _, child := range children {
		if _, err := e.ExitComplete(child.id); err != nil {
			return 0, err
		}
	}

	e.updateOnCompletion(f)

	total := s.curExecTime
	s.curExecTime = 0

	if s.parent != nil {
		ps := s.parent.state
		for i, child := range ps.activeChildren {
			if child == f {
				ps.activeChildren = append(ps.activeChildren[:i], ps.activeChildren[i+1:]...)
				break
			}
		}
	}
	s.parent = nil
	s.active = false
	e.stack[s.stackIndex] = nil
	s.stackIndex = -1

	// Trim trailing null entries so the stack tail stays live.
	for len(e.stack) > 0 && e.stack[len(e.stack)-1] == nil {
		e.stack = e.stack[:len(e.stack)-1]
	}

	return total, nil
}

// Scope runs fn inside an invocation of frame id, completing it on the way
// out even when fn panics. The guard converts an unwound exit into a
// force-complete of the open frame so the stack invariants survive
// application-level panics.
func (e *Engine) Scope(id FrameID, fn func()) (seconds float64, err error) {
	if err = e.Enter(id); err != nil {
		return 0, err
	}
	defer func() {
		if e.IsActive(id) {
			s, cerr := e.ExitComplete(id)
			if err == nil {
				seconds, err = s, cerr
			}
		}
	}()
	fn()
	return seconds, err
}
