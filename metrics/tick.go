package metrics

// Schema is the fixed schema tag for tick payloads, additive-only per
// spec §6; a semantic change requires bumping to "metrics.v2".
const Schema = "metrics.v1"

// OpKind is one of the three operation kinds tracked per tick.
type OpKind string

const (
	OpPut OpKind = "put"
	OpGet OpKind = "get"
	OpDel OpKind = "del"
)

// LatencyStats is p50/p90/p99 in milliseconds for one op kind or overall.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// Alert is an active watchdog breach at tick time.
type Alert struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"`
	Backend   string  `json:"backend"`
	Message   string  `json:"message"`
}

// EventType is one of the four kinds of structural event a tick can report.
type EventType string

const (
	EventSwitch     EventType = "switch"
	EventCompaction EventType = "compaction"
	EventResize     EventType = "resize"
	EventComplete   EventType = "complete"
)

// Event is one structural occurrence within a tick's window, ordered by
// occurrence (spec §5).
type Event struct {
	Type EventType `json:"type"`
	// From/To name backends for "switch", omitted otherwise.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// Detail is a free-form, human-readable note (e.g. new capacity for resize).
	Detail string `json:"detail,omitempty"`
}

// Tick is the immutable metric record emitted periodically during replay
// (spec §3). Field names match the metrics.v1 JSON schema exactly.
type Tick struct {
	Schema  string  `json:"schema"`
	T       float64 `json:"t"`
	Backend string  `json:"backend"`

	Ops       uint64            `json:"ops"`
	OpsByType map[OpKind]uint64 `json:"ops_by_type"`

	Migrations  uint64 `json:"migrations"`
	Compactions uint64 `json:"compactions"`

	LoadFactor       float64 `json:"load_factor"`
	MaxGroupLen      float64 `json:"max_group_len"` // +Inf when not applicable (robinhood active)
	AvgProbeEstimate float64 `json:"avg_probe_estimate"`
	TombstoneRatio   float64 `json:"tombstone_ratio"`

	ProbeHist [][2]float64 `json:"probe_hist,omitempty"`

	LatencyMs map[string]LatencyStats `json:"latency_ms"`

	LatencyHistMs map[string][]Bucket `json:"latency_hist_ms,omitempty"`

	Alerts []Alert `json:"alerts,omitempty"`
	Events []Event `json:"events,omitempty"`
}
