package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/jguida941/adaptive-hashmap-studio/snapshot"
	"github.com/jguida941/adaptive-hashmap-studio/workload"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newRunCSVCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var (
		csvPath         string
		metricsPort     int
		metricsOutDir   string
		jsonSummaryOut  string
		snapshotIn      string
		snapshotOut     string
		compress        bool
		reservoirSize   int
		sampleEvery     int
		compactInterval time.Duration
		tickInterval    time.Duration
		tickEveryOps    int
		dryRun          bool
		csvMaxRows      int
		csvMaxBytes     int
		latencyBuckets  string
	)
	cmd := &cobra.Command{
		Use:   "run-csv",
		Short: "Execute a workload CSV against the configured engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(g.verbose, g.json)
			defer log.Sync() //nolint:errcheck // stderr sync failures are not actionable here

			mode, guard, err := resolveModeAndConfig(g)
			if err != nil {
				return err
			}
			log.Infow("run-csv starting", "mode", mode, "csv", csvPath)

			preset := metrics.PresetMillis
			if latencyBuckets == "micro" {
				preset = metrics.PresetMicro
			} else if latencyBuckets != "" && latencyBuckets != "default" {
				return engineerr.BadInputf("--latency-buckets: unknown preset %q (want default|micro)", latencyBuckets)
			}

			f, err := os.Open(csvPath)
			if err != nil {
				return engineerr.Wrap(engineerr.IO, err, "opening "+csvPath)
			}
			defer f.Close()
			rows, err := workload.ReadRows(f, csvMaxRows, csvMaxBytes)
			if err != nil {
				return err
			}

			if dryRun {
				summary, err := workload.Run(nil, rows, workload.RunOptions{DryRun: true}, wallClock, nil)
				if err != nil {
					return err
				}
				writeSuccess(stdout, summary, g.json, func(w io.Writer, v any) {
					s := v.(workload.Summary)
					fmt.Fprintf(w, "dry-run ok: %d rows validated\n", s.Ops)
				})
				return nil
			}

			var engine itemsEngine
			if snapshotIn != "" {
				engine, err = loadEngineSnapshot(snapshotIn, mode)
			} else {
				engine, err = newEngine(mode, guard)
			}
			if err != nil {
				return err
			}

			var ndjsonFile *os.File
			var ndjsonSink workload.TickSink
			if metricsOutDir != "" {
				if err := os.MkdirAll(metricsOutDir, 0o755); err != nil {
					return engineerr.Wrap(engineerr.IO, err, "creating metrics-out-dir")
				}
				path := filepath.Join(metricsOutDir, "ticks.ndjson")
				ndjsonFile, err = os.Create(path)
				if err != nil {
					return engineerr.Wrap(engineerr.IO, err, "creating "+path)
				}
				defer ndjsonFile.Close()
				w := workload.NewNDJSONWriter(ndjsonFile)
				ndjsonSink = w.Write
			}

			ring := workload.NewTickRing(4096)
			sink := workload.FanOut(
				func(t metrics.Tick) error { ring.Push(t); return nil },
				ndjsonSink,
			)

			var srv *http.Server
			if metricsPort != 0 {
				srv = startMetricsServer(metricsPort, ring)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			var bar *progressbar.ProgressBar
			if !g.json {
				bar = progressbar.Default(int64(len(rows)), "replaying")
			}

			opts := workload.RunOptions{
				ReservoirSize: reservoirSize, SampleEvery: sampleEvery, BucketPreset: preset,
				TickEveryOps: tickEveryOps, TickInterval: tickInterval, CompactInterval: compactInterval,
				Thresholds: thresholdsFromGuardrails(guard),
			}
			tickSink := sink
			if bar != nil {
				tickSink = func(t metrics.Tick) error {
					_ = bar.Set64(int64(t.Ops))
					return sink(t)
				}
			}

			summary, err := workload.Run(engine, rows, opts, wallClock, tickSink)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				log.Errorw("run-csv aborted", "error", err)
				return err
			}
			log.Infow("run-csv complete",
				"ops", summary.Ops, "backend", summary.FinalBackend,
				"migrations", summary.Migrations, "compactions", summary.Compactions,
				"ops_per_second", summary.OpsPerSecond)

			if snapshotOut != "" {
				if err := saveEngineSnapshot(snapshotOut, mode, engine, snapshot.WriteOptions{Compress: compress}); err != nil {
					return err
				}
			}
			if jsonSummaryOut != "" {
				data, _ := json.MarshalIndent(summary, "", "  ")
				if err := os.WriteFile(jsonSummaryOut, data, 0o644); err != nil {
					return engineerr.Wrap(engineerr.IO, err, "writing "+jsonSummaryOut)
				}
			}

			writeSuccess(stdout, summary, g.json, func(w io.Writer, v any) {
				s := v.(workload.Summary)
				fmt.Fprintf(w, "ops=%d backend=%s migrations=%d compactions=%d ops/s=%.1f\n",
					s.Ops, s.FinalBackend, s.Migrations, s.Compactions, s.OpsPerSecond)
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "workload CSV to execute (required)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve the latest tick as JSON on this port; 0 disables")
	cmd.Flags().StringVar(&metricsOutDir, "metrics-out-dir", "", "directory to append the NDJSON tick stream to")
	cmd.Flags().StringVar(&jsonSummaryOut, "json-summary-out", "", "path to write the final aggregate JSON summary")
	cmd.Flags().StringVar(&snapshotIn, "snapshot-in", "", "resume from a snapshot instead of starting empty")
	cmd.Flags().StringVar(&snapshotOut, "snapshot-out", "", "persist the final engine state to this path")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip-frame the output snapshot")
	cmd.Flags().IntVar(&reservoirSize, "latency-sample-k", 1024, "reservoir size for latency percentiles")
	cmd.Flags().IntVar(&sampleEvery, "latency-sample-every", 1, "admit every Nth operation's latency to the reservoir")
	cmd.Flags().DurationVar(&compactInterval, "compact-interval", 0, "proactive RobinHood compaction period, applied only in adaptive mode (fast-lookup tables are not compacted); 0 disables")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", time.Second, "wall-clock tick period; 0 disables")
	cmd.Flags().IntVar(&tickEveryOps, "tick-every-ops", 1000, "emit a tick after this many ops; 0 disables")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the CSV only; do not mutate the map")
	cmd.Flags().IntVar(&csvMaxRows, "csv-max-rows", 0, "reject CSVs with more than this many rows; 0 disables")
	cmd.Flags().IntVar(&csvMaxBytes, "csv-max-bytes", 0, "reject CSVs larger than this many bytes; 0 disables")
	cmd.Flags().StringVar(&latencyBuckets, "latency-buckets", "default", "latency histogram preset: default|micro")
	cmd.MarkFlagRequired("csv")
	return cmd
}

func wallClock() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// startMetricsServer exposes the most recent tick as JSON at GET /tick.
// This is a deliberately minimal convenience surface, not the dashboards
// and Prometheus exposition named out of scope in spec §1 — it exists
// only so a caller watching a long run has something to poll.
func startMetricsServer(port int, ring *workload.TickRing) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/tick", func(w http.ResponseWriter, r *http.Request) {
		tick, ok := ring.Latest()
		if !ok {
			http.Error(w, "no ticks yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tick)
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
