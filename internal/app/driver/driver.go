// Package driver runs the sample adaptive workload.
//
// The workload is a stand-in for an application main loop (think: one video
// frame per iteration): a measured frame with a mean execution-time
// objective encloses an exec frame selecting among alternatives of graded
// cost. The engine steers the selection so the loop's measured time
// converges into the objective window — observable on stdout in the $$
// exit report, over HTTP, and in the optional SQLite snapshot trail.
package driver

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	cadence "github.com/cadence-rt/cadence"
	"github.com/cadence-rt/cadence/internal/daemon"
	"github.com/cadence-rt/cadence/internal/infra/observability"
	"github.com/cadence-rt/cadence/internal/infra/statsdb"
	"github.com/prometheus/client_golang/prometheus"
)

// Driver owns one engine and the synthetic workload driving it.
//
// The engine itself is single-threaded; every entry point here takes the
// mutex so the statistics HTTP server can read snapshots while the workload
// loop runs.
type Driver struct {
	mu sync.Mutex

	cfg     daemon.Config
	engine  *cadence.Engine
	metrics *observability.Metrics

	frame   *cadence.Frame
	exec    *cadence.ExecFrame
	callers []*cadence.Caller
	// workloads[i] is the time alternative i burns per run.
	workloads []time.Duration

	db  *statsdb.DB // nil when snapshot recording is off
	out io.Writer

	invocations int64
}

// New builds a driver from config. Output (the $$ exit report) goes to out.
func New(cfg daemon.Config, out io.Writer) (*Driver, error) {
	d := &Driver{cfg: cfg, out: out, metrics: observability.New()}

	d.engine = cadence.New(cadence.Options{Metrics: d.metrics})
	d.engine.SetMagnifyCountByDeviation(cfg.Engine.MagnifyCountByDeviation)
	d.engine.SetProbabilityOfExploration(cfg.Engine.ProbabilityOfExploration)
	d.engine.SetDeemphasizeHistory(cfg.Engine.DeemphasizeHistory, cfg.Engine.DeemphasizeAlpha)
	d.engine.SetForgetHistory(cfg.Engine.ForgetHistory, cfg.Engine.ForgetBeta)
	d.engine.SetUseFastReactionStrategy(cfg.Engine.UseFastReactionStrategy)

	w := cfg.Workload
	obj := cadence.AbsoluteObjective(w.MeanSeconds, w.WindowFrac, w.WindowFrac, 0.9).
		WithWindowSize(w.SlidingWindow)
	d.frame = d.engine.NewFrame(obj)

	// Alternative i burns mean * 2 / 2^i: the most complex overshoots the
	// objective, the cheapest undershoots it, and one lands inside.
	n := w.AlternativeCount
	if n < 2 {
		n = 2
	}
	children := make([]cadence.Model, n)
	for i := 0; i < n; i++ {
		c := cadence.NewCaller()
		d.callers = append(d.callers, c)
		children[i] = cadence.Bind(c)
		cost := w.MeanSeconds * 2 / float64(int(1)<<i)
		d.workloads = append(d.workloads, time.Duration(cost*float64(time.Second)))
	}

	exec, err := d.engine.NewExecFrame(
		cadence.Select(0, children),
		cadence.WithStickiness(w.Stickiness),
	)
	if err != nil {
		return nil, fmt.Errorf("driver: build model: %w", err)
	}
	d.exec = exec

	if cfg.Stats.SQLitePath != "" {
		db, err := statsdb.Open(cfg.Stats.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.db = db
		log.Printf("driver: recording snapshots to %s (run %s)", cfg.Stats.SQLitePath, db.RunID())
	}

	return d, nil
}

// FrameID returns the id of the measured workload frame.
func (d *Driver) FrameID() cadence.FrameID { return d.frame.ID() }

// ExecFrameID returns the id of the workload's exec frame.
func (d *Driver) ExecFrameID() cadence.FrameID { return d.exec.ID() }

// Registry exposes the Prometheus registry for the HTTP server.
func (d *Driver) Registry() *prometheus.Registry { return d.metrics.Registry() }

// Run executes the configured number of invocations and prints the exit
// report.
func (d *Driver) Run() error {
	for i := 0; i < d.cfg.Workload.Invocations; i++ {
		if err := d.invoke(); err != nil {
			return err
		}
	}
	return d.report()
}

// invoke runs one workload iteration under the measured frame.
func (d *Driver) invoke() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.engine.Enter(d.frame.ID()); err != nil {
		return err
	}
	for i, c := range d.callers {
		burn := d.workloads[i]
		c.Rebind(func() { spin(burn) })
	}
	if err := d.exec.Run(); err != nil {
		return err
	}
	if _, err := d.engine.ExitComplete(d.frame.ID()); err != nil {
		return err
	}

	d.invocations++
	if every := int64(d.cfg.Workload.ReportEvery); d.db != nil && every > 0 && d.invocations%every == 0 {
		if err := d.db.RecordFrame(d.invocations, d.engine.FrameStatistics(d.frame.ID())); err != nil {
			return err
		}
		if err := d.db.RecordExecFrame(d.invocations, d.engine.ExecFrameStatistics(d.exec.ID())); err != nil {
			return err
		}
	}
	return nil
}

// report prints the $$ exit statistics for the workload frames.
func (d *Driver) report() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := io.WriteString(d.out, d.engine.FrameStatistics(d.frame.ID()).PrintString()); err != nil {
		return err
	}
	_, err := io.WriteString(d.out, d.engine.ExecFrameStatistics(d.exec.ID()).PrintString())
	return err
}

// Close releases the snapshot database, if open.
func (d *Driver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// FrameStatistics implements the HTTP server's StatsProvider.
func (d *Driver) FrameStatistics(id cadence.FrameID) cadence.FrameStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.FrameStatistics(id)
}

// ExecFrameStatistics implements the HTTP server's StatsProvider.
func (d *Driver) ExecFrameStatistics(id cadence.FrameID) cadence.ExecFrameStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.ExecFrameStatistics(id)
}

// spin busy-waits for roughly d, standing in for real work. A busy-wait
// rather than a sleep keeps the measured time on-CPU like the workloads the
// engine is meant to steer.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
