package workload

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"time"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
)

// Engine is the shape the replay driver needs from a back-end, satisfied
// structurally by chaining.Map, robinhood.Map, and hybrid.Map.
type Engine interface {
	Put(key, val []byte) bool
	Get(key []byte) ([]byte, bool)
	Delete(key []byte) bool
	Size() int
}

// Row is one validated CSV operation.
type Row struct {
	Op    string // "put", "get", or "del"
	Key   []byte
	Value []byte
}

// ReadRows parses and validates a workload CSV per spec §4.6: header must
// be exactly op,key,value; no extra columns; key non-empty; value
// non-empty for put, empty for get/del. maxRows/maxBytes of 0 disable that
// clamp. All violations surface as BadInput with row/column diagnostics.
func ReadRows(r io.Reader, maxRows, maxBytes int) ([]Row, error) {
	if maxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
		if err != nil {
			return nil, engineerr.Wrap(engineerr.IO, err, "reading CSV")
		}
		if len(data) > maxBytes {
			return nil, engineerr.BadInputf("CSV exceeds csv-max-bytes=%d", maxBytes)
		}
		r = bytes.NewReader(data)
	}
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, engineerr.Wrap(engineerr.BadInput, err, "reading CSV header").WithRowCol(1, 0)
	}
	if len(header) != 3 || header[0] != "op" || header[1] != "key" || header[2] != "value" {
		return nil, engineerr.BadInputf("CSV header must be exactly op,key,value").WithRowCol(1, 0)
	}

	var rows []Row
	rowNum := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, engineerr.Wrap(engineerr.BadInput, err, "malformed CSV row").WithRowCol(rowNum, 0)
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, engineerr.BadInputf("CSV exceeds csv-max-rows=%d", maxRows).WithRowCol(rowNum, 0)
		}

		row, err := validateRow(rec, rowNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func validateRow(rec []string, rowNum int) (Row, error) {
	op := lower(rec[0])
	switch op {
	case "put", "get", "del":
	default:
		return Row{}, engineerr.BadInputf("unknown op %q", rec[0]).WithRowCol(rowNum, 1)
	}

	key := rec[1]
	if key == "" {
		return Row{}, engineerr.BadInputf("empty key").WithRowCol(rowNum, 2)
	}

	value := rec[2]
	switch op {
	case "put":
		if value == "" {
			return Row{}, engineerr.BadInputf("put requires a non-empty value").WithRowCol(rowNum, 3)
		}
	default:
		if value != "" {
			return Row{}, engineerr.BadInputf("%s must have an empty value", op).WithRowCol(rowNum, 3)
		}
	}

	return Row{Op: op, Key: []byte(key), Value: []byte(value)}, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// RunOptions controls a CSV replay run.
type RunOptions struct {
	ReservoirSize   int
	SampleEvery     int
	BucketPreset    metrics.BucketPreset
	TickEveryOps    int // emit a tick after this many ops; 0 disables op-count ticking
	TickInterval    time.Duration
	CompactInterval time.Duration
	Thresholds      metrics.Thresholds
	Seed            uint64
	DryRun          bool
}

// Summary is the final aggregate JSON summary emitted at the end of a run
// (spec §4.6).
type Summary struct {
	Ops          uint64               `json:"ops"`
	OpsByType    map[string]uint64    `json:"ops_by_type"`
	FinalBackend string               `json:"final_backend"`
	Migrations   uint64               `json:"migrations"`
	Compactions  uint64               `json:"compactions"`
	LatencyMs    metrics.LatencyStats `json:"latency_ms_overall"`
	ElapsedS     float64              `json:"elapsed_s"`
	OpsPerSecond float64              `json:"ops_per_second"`
	FinalSize    int                  `json:"final_size"`
}

// TickSink receives every tick produced during a run, in order, and any
// error it returns aborts the run as IO (spec §4.6: "ticks MUST NOT be
// dropped silently").
type TickSink func(metrics.Tick) error

// clock abstracts wall-clock reads so tests can supply a deterministic
// stand-in; the run-csv command passes a wall clock.
type clock func() float64

// Run replays rows against engine, calling sink for every tick boundary
// and returning the final summary. In dry-run mode, rows are assumed
// pre-validated by the caller (via ReadRows) and no mutation happens;
// Run returns a summary reflecting row counts only.
func Run(engine Engine, rows []Row, opts RunOptions, now clock, sink TickSink) (Summary, error) {
	agg := metrics.NewAggregator(opts.ReservoirSize, opts.SampleEvery, opts.BucketPreset, opts.Seed)
	opsByType := map[string]uint64{"put": 0, "get": 0, "del": 0}

	start := now()
	lastTickOp := 0
	lastTickTime := start
	lastCompactTime := start

	var lastTick metrics.Tick
	emit := func(t float64) error {
		telem := telemetry(engine)
		tick := agg.Snapshot(t-start, telem, opts.Thresholds)
		lastTick = tick
		if sink != nil {
			if err := sink(tick); err != nil {
				return engineerr.Wrap(engineerr.IO, err, "writing metric tick")
			}
		}
		return nil
	}

	var prevMigrations, prevCompactions uint64
	recordTransitions := func() {
		es, ok := engine.(eventSource)
		if !ok {
			return
		}
		for ; prevMigrations < es.Migrations(); prevMigrations++ {
			agg.RecordMigration()
		}
		for ; prevCompactions < es.Compactions(); prevCompactions++ {
			agg.RecordCompaction()
		}
	}

	if opts.DryRun {
		for _, row := range rows {
			opsByType[row.Op]++
		}
		elapsed := now() - start
		return Summary{
			Ops:          uint64(len(rows)),
			OpsByType:    opsByType,
			FinalBackend: "",
			ElapsedS:     elapsed,
			FinalSize:    0,
		}, nil
	}

	for i, row := range rows {
		opStart := now()
		switch row.Op {
		case "put":
			engine.Put(row.Key, row.Value)
		case "get":
			engine.Get(row.Key)
		case "del":
			engine.Delete(row.Key)
		}
		latencyMs := (now() - opStart) * 1000

		var kind metrics.OpKind
		switch row.Op {
		case "put":
			kind = metrics.OpPut
		case "get":
			kind = metrics.OpGet
		default:
			kind = metrics.OpDel
		}
		agg.RecordOp(kind, latencyMs)
		opsByType[row.Op]++

		if es, ok := engine.(eventSource); ok {
			for _, e := range es.DrainEvents() {
				agg.PushEvent(e)
			}
		}
		recordTransitions()

		t := now()
		if opts.CompactInterval > 0 && t-lastCompactTime >= opts.CompactInterval.Seconds() {
			if h, ok := engine.(*hybrid.Map); ok {
				if err := h.ForceCompact(); err != nil {
					return Summary{}, err
				}
			}
			lastCompactTime = t
		}
		tickDue := (opts.TickEveryOps > 0 && i+1-lastTickOp >= opts.TickEveryOps) ||
			(opts.TickInterval > 0 && t-lastTickTime >= opts.TickInterval.Seconds())
		if tickDue {
			if err := emit(t); err != nil {
				return Summary{}, err
			}
			lastTickOp = i + 1
			lastTickTime = t
		}
	}

	finalT := now()
	recordTransitions()
	agg.PushEvent(metrics.Event{Type: metrics.EventComplete})
	if err := emit(finalT); err != nil {
		return Summary{}, err
	}

	overall := lastTick.LatencyMs["overall"]
	migrations, compactions := prevMigrations, prevCompactions

	elapsed := finalT - start
	var opsPerSec float64
	if elapsed > 0 {
		opsPerSec = float64(len(rows)) / elapsed
	}

	return Summary{
		Ops:          uint64(len(rows)),
		OpsByType:    opsByType,
		FinalBackend: activeBackendName(engine),
		Migrations:   migrations,
		Compactions:  compactions,
		LatencyMs:    overall,
		ElapsedS:     elapsed,
		OpsPerSecond: opsPerSec,
		FinalSize:    engine.Size(),
	}, nil
}

type eventSource interface {
	DrainEvents() []metrics.Event
	Migrations() uint64
	Compactions() uint64
}

func telemetry(engine Engine) metrics.BackendTelemetry {
	switch v := engine.(type) {
	case *chaining.Map:
		return metrics.BackendTelemetry{
			Backend: string(config.BackendChaining), LoadFactor: v.LoadFactor(),
			MaxGroupLen: v.MaxGroupLen(), HasGroupLen: true,
		}
	case *robinhood.Map:
		return metrics.BackendTelemetry{
			Backend: string(config.BackendRobinHood), LoadFactor: v.LoadFactor(),
			AvgProbe: v.AvgProbe(), TombstoneRatio: v.TombstoneRatio(), ProbeHist: v.ProbeHistogram(),
		}
	case *hybrid.Map:
		return v.Telemetry()
	default:
		return metrics.BackendTelemetry{}
	}
}

func activeBackendName(engine Engine) string {
	if h, ok := engine.(*hybrid.Map); ok {
		return string(h.ActiveBackend())
	}
	if _, ok := engine.(*chaining.Map); ok {
		return string(config.BackendChaining)
	}
	if _, ok := engine.(*robinhood.Map); ok {
		return string(config.BackendRobinHood)
	}
	return ""
}
