package cadence

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Lifecycle errors are fatal to the engine contract: once one is returned the
// frame stack can no longer be trusted and the application should terminate.
// The statistics facade never returns errors; missing frames yield empty
// snapshots.

var (
	// Frame lifecycle errors
	ErrUnknownFrame       = errors.New("unknown frame id")
	ErrReEnter            = errors.New("frame entered while already executing")
	ErrFrameInactive      = errors.New("operation requires an active frame")
	ErrParentNotExecuting = errors.New("chosen parent frame is not executing")
	ErrParentMismatch     = errors.New("frame resumed under a different parent")
	ErrNonLeafSuspend     = errors.New("cannot suspend a frame with an executing child")

	// Model errors
	ErrUnboundCaller = errors.New("caller slot has no bound work item")
	ErrModelSchema   = errors.New("model schema conflict")
	ErrTypeMismatch  = errors.New("frame id does not refer to an exec frame")

	// Objective errors
	ErrUnresolvedReference = errors.New("relative objective references a frame without a resolved mean")
)
