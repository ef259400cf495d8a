// Package telemetry implements the shell's structured logging and
// audit sink: one JSON-lines stream per concern, fanned out to
// multiple writers.
//
// Grounded on core/logger/*'s "one JSON-lines sink, line per event"
// shape. The teacher's concrete log entry type is protobuf-generated
// from log.proto, and neither the .proto nor the generated .pb.go is
// present in the retrieved pack — fabricating a stub generated file
// would violate the never-fabricate-dependencies rule, so that
// dependency is dropped in favor of log/slog (stdlib structured
// logging) fanned out via github.com/samber/slog-multi, restated from
// reusee-tai/logs/logger.go's Fanout(handlers...) pattern.
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"github.com/nexusshell/nexus/internal/capability"
)

// NewLogger builds a *slog.Logger that fans every record out to each
// of sinks, JSON-encoded, at the given minimum level. debug lowers the
// effective level to slog.LevelDebug regardless of level, matching
// spec.md section 6's NEXUS_DEBUG/enableDebug knob.
func NewLogger(level slog.Level, debug bool, sinks ...io.Writer) *slog.Logger {
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := make([]slog.Handler, 0, len(sinks))
	for _, w := range sinks {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// AuditSink writes one JSON line per capability check, matching
// spec.md section 6's audit log output: {ts, action, resource,
// granted, sandbox?}.
type AuditSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditSink wraps w for line-oriented JSON audit output.
func NewAuditSink(w io.Writer) *AuditSink {
	return &AuditSink{w: w}
}

type auditRecord struct {
	Timestamp int64  `json:"ts"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Granted   bool   `json:"granted"`
	Sandbox   string `json:"sandbox,omitempty"`
}

// WriteEntry appends one audit line for e.
func (a *AuditSink) WriteEntry(e capability.AuditEntry) error {
	rec := auditRecord{
		Timestamp: e.Timestamp.UnixMilli(),
		Action:    e.Action,
		Resource:  e.Resource,
		Granted:   e.Granted,
		Sandbox:   e.Sandbox,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.w.Write(data)
	return err
}

// Drain writes every entry currently in store's audit log to a, in
// order. It leaves the store's ring buffer as it is, so a later Drain
// writes those entries again.
func (a *AuditSink) Drain(store *capability.Store) error {
	for _, e := range store.AuditLog() {
		if err := a.WriteEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// MetricsSink implements engine.MetricsSink by logging one structured
// record per command to logger, per spec.md section 4.2's "(name,
// latency_us, ok)" metrics emission contract. It also keeps cumulative
// mutex-guarded counters for PerformanceMetrics-style reporting.
type MetricsSink struct {
	logger *slog.Logger

	mu           sync.Mutex
	totalCmds    int64
	failedCmds   int64
	totalLatency int64
}

// NewMetricsSink constructs a MetricsSink logging through logger.
func NewMetricsSink(logger *slog.Logger) *MetricsSink {
	return &MetricsSink{logger: logger}
}

// RecordCommand satisfies engine.MetricsSink.
func (m *MetricsSink) RecordCommand(name string, latencyUs int64, ok bool) {
	m.mu.Lock()
	m.totalCmds++
	m.totalLatency += latencyUs
	if !ok {
		m.failedCmds++
	}
	m.mu.Unlock()

	m.logger.LogAttrs(context.Background(), slog.LevelInfo, "command executed",
		slog.String("name", name),
		slog.Int64("latencyUs", latencyUs),
		slog.Bool("ok", ok),
		slog.Time("ts", time.Now()),
	)
}

// Snapshot returns the counters accumulated so far: total
// commands executed, how many failed, and the mean latency in
// microseconds.
func (m *MetricsSink) Snapshot() (total, failed int64, meanLatencyUs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalCmds == 0 {
		return 0, 0, 0
	}
	return m.totalCmds, m.failedCmds, float64(m.totalLatency) / float64(m.totalCmds)
}
