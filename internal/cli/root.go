// Package cli implements the cadence demo command line.
package cli

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadence-rt/cadence/internal/api"
	"github.com/cadence-rt/cadence/internal/app/driver"
	"github.com/cadence-rt/cadence/internal/daemon"
	"github.com/cadence-rt/cadence/internal/infra/statsdb"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Soft real-time adaptation demo",
	Long: `cadence drives a synthetic adaptive workload: a measured frame with an
execution-time objective encloses an exec frame selecting among
alternatives of graded cost. The engine learns which alternative keeps
the frame inside its objective window and prints the statistics report
on exit.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDBPath, "db", "", "Snapshot database to read (defaults to [stats].sqlite_path)")
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Run id to report (defaults to the latest run)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── cadence run ────────────────────────────────────────────────────────────

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the adaptive workload and print the exit report",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	d, err := driver.New(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Run()
}

// ─── cadence report ─────────────────────────────────────────────────────────

var (
	reportDBPath string
	reportRunID  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the recorded statistics of a previous run",
	Long: `Replays the statistics snapshots a previous 'cadence run' recorded to
SQLite, printing the last report per frame in the same $$ format the run
printed on exit.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	path := reportDBPath
	if path == "" {
		path = cfg.Stats.SQLitePath
	}
	if path == "" {
		return fmt.Errorf("no snapshot database: pass --db or set [stats].sqlite_path")
	}

	db, err := statsdb.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := reportRunID
	if runID == "" {
		if runID, err = db.LatestRunID(); err != nil {
			return err
		}
	}

	reports, err := db.LatestReports(runID)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("run %s has no recorded snapshots", runID)
	}
	for _, report := range reports {
		fmt.Fprint(os.Stdout, report)
	}
	return nil
}

// ─── cadence serve ──────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workload with the statistics HTTP server attached",
	Long: `Runs the adaptive workload while serving statistics snapshots and
Prometheus metrics over HTTP. The workload loop and the server share one
engine behind a mutex; the server only ever reads snapshots.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	cfg.API.Enabled = true

	d, err := driver.New(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer d.Close()

	server := api.NewServer(d)
	server.EnableMetrics(d.Registry())

	addr := net.JoinHostPort(cfg.API.Host, fmt.Sprintf("%d", cfg.API.Port))
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
	go func() {
		log.Printf("serving statistics on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
		}
	}()
	defer httpServer.Close()

	return d.Run()
}
