package bridge

import (
	"testing"
	"time"

	cadence "github.com/cadence-rt/cadence"
)

func TestBridgeLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	e := cadence.New(cadence.Options{Now: func() time.Time { return now }})
	prev := Default()
	SetDefault(e)
	t.Cleanup(func() { SetDefault(prev) })

	f := e.NewFrame(nil)

	FrameEnter(f.ID())
	if !e.IsExecuting(f.ID()) {
		t.Fatal("frame not executing after FrameEnter")
	}
	now = now.Add(time.Second)
	if got := FrameExitComplete(f.ID()); got != 1.0 {
		t.Errorf("FrameExitComplete = %v, want 1.0", got)
	}
}

func TestBridgeRebindAndRun(t *testing.T) {
	e := cadence.New(cadence.Options{})
	prev := Default()
	SetDefault(e)
	t.Cleanup(func() { SetDefault(prev) })

	caller := cadence.NewCaller()
	ef, err := e.NewExecFrame(cadence.Bind(caller))
	if err != nil {
		t.Fatal(err)
	}

	ran := false
	RebindFunc(HandleFor(caller), func() { ran = true })
	ExecFrameRun(ef.ID())
	if !ran {
		t.Error("bound work item did not run")
	}
}
