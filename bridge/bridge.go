// Package bridge exposes the adaptation engine as a flat, symbol-per-call
// surface over a process-default engine, mirroring the plain-C entry points
// of the compatibility layer. Handles are opaque; lifecycle violations are
// fatal, matching the C contract where every error kind aborts the program.
package bridge

import (
	"log"

	cadence "github.com/cadence-rt/cadence"
)

var defaultEngine = cadence.New(cadence.Options{})

// Default returns the process-default engine the flat calls operate on.
func Default() *cadence.Engine { return defaultEngine }

// SetDefault replaces the process-default engine. Intended for tests.
func SetDefault(e *cadence.Engine) { defaultEngine = e }

// CallerHandle is an opaque carrier of a caller slot, bit-for-bit stable
// across the bridge.
type CallerHandle struct {
	caller *cadence.Caller
}

// HandleFor wraps a caller slot for handing to bridge users.
func HandleFor(c *cadence.Caller) CallerHandle { return CallerHandle{caller: c} }

// FrameEnter enters frame id under the current innermost executing frame.
func FrameEnter(id cadence.FrameID) {
	if err := defaultEngine.Enter(id); err != nil {
		log.Fatalf("cadence: frame_enter: %v", err)
	}
}

// FrameEnterWithParent enters frame id under the chosen parent; a parent of
// -1 enters a top-level frame.
func FrameEnterWithParent(id, parent cadence.FrameID) {
	if err := defaultEngine.EnterWithParent(id, parent); err != nil {
		log.Fatalf("cadence: frame_enter_with_parent: %v", err)
	}
}

// FrameExitComplete completes frame id, returning the invocation's total
// active execution time in seconds.
func FrameExitComplete(id cadence.FrameID) float64 {
	seconds, err := defaultEngine.ExitComplete(id)
	if err != nil {
		log.Fatalf("cadence: frame_exit_complete: %v", err)
	}
	return seconds
}

// FrameExitSuspend suspends frame id, returning the seconds of active
// execution since it last started or resumed.
func FrameExitSuspend(id cadence.FrameID) float64 {
	seconds, err := defaultEngine.ExitSuspend(id)
	if err != nil {
		log.Fatalf("cadence: frame_exit_suspend: %v", err)
	}
	return seconds
}

// ExecFrameRun runs the exec frame registered under id.
func ExecFrameRun(id cadence.FrameID) {
	if err := defaultEngine.RunExecFrame(id); err != nil {
		log.Fatalf("cadence: execframe_run: %v", err)
	}
}

// RebindFunc binds a zero-argument work item to the caller slot behind the
// handle so the engine can invoke it on the next run.
func RebindFunc(h CallerHandle, fn func()) {
	h.caller.Rebind(fn)
}
