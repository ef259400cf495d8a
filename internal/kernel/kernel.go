// Package kernel wires the shell's components together into a single
// process-lifetime facade: one Kernel constructed per process, many
// Execute calls against it.
//
// Grounded on core/honeypot.go's NewHoneypot/HandleConnection split
// (shared OS constructed once at startup, per-connection state built
// per session), generalized here to "shared kernel constructed once,
// an engine.Context built per Execute call".
package kernel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/nexusshell/nexus/internal/bridge"
	"github.com/nexusshell/nexus/internal/builtins"
	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/config"
	"github.com/nexusshell/nexus/internal/engine"
	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/pool"
	"github.com/nexusshell/nexus/internal/recorder"
	"github.com/nexusshell/nexus/internal/telemetry"
	"github.com/nexusshell/nexus/internal/txn"
	"github.com/nexusshell/nexus/internal/value"
	"github.com/nexusshell/nexus/internal/vos"
)

// Metrics restores nexus_types.h's PerformanceMetrics, which spec.md's
// distillation folded into a single "Metrics" bullet: commands
// executed, total execution time, cache hits/misses, plus the derived
// mean latency Stats() reports alongside them.
type Metrics struct {
	CommandsExecuted   int64
	TotalExecutionTime int64 // microseconds
	MeanLatencyUs      float64
	CommandsFailed     int64
	CacheHits          int64
	CacheMisses        int64
}

// Kernel is the process-lifetime facade over the capability store,
// object bridge, execution engine, worker pool, transaction manager,
// and recorder.
type Kernel struct {
	cfg *config.Configuration

	logger *slog.Logger
	audit  *telemetry.AuditSink
	sink   *telemetry.MetricsSink

	caps  *capability.Store
	state *vos.State
	brg   *bridge.Bridge
	pool  *pool.Pool
	eng   *engine.Engine
	txns  *txn.Manager
	rec   *recorder.Recorder

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	initialized bool
}

// New constructs a Kernel from cfg, wiring Capability Store → Bridge →
// Pool → Recorder → Engine → Transaction Manager in that dependency
// order, per SPEC_FULL.md section 4.7. logSink receives structured
// logs and audit lines in addition to stderr; pass nil to log only to
// stderr.
func New(cfg *config.Configuration, logSink io.Writer) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sinks := []io.Writer{os.Stderr}
	if logSink != nil {
		sinks = append(sinks, logSink)
	}
	logger := telemetry.NewLogger(slog.LevelInfo, cfg.Shell.EnableDebug, sinks...)

	var auditWriters io.Writer = io.Discard
	if logSink != nil {
		auditWriters = logSink
	}
	audit := telemetry.NewAuditSink(auditWriters)
	metricsSink := telemetry.NewMetricsSink(logger)

	caps := capability.New(1024)
	if err := caps.ApplyPolicy(cfg.Security.DefaultPolicy); err != nil {
		return nil, err
	}
	for _, pattern := range cfg.Security.Capabilities {
		caps.Grant(pattern)
	}

	state := vos.New(vos.NewMemFS())
	brg := bridge.New(caps, state, int64(cfg.Shell.MaxMemory))
	p := pool.New(cfg.Shell.ThreadPoolSize)
	rec := recorder.New(recorder.Metadata{})

	eng := engine.New(state, caps, brg, p, metricsSink, rec)
	builtins.Register(eng)

	tm := txn.New(
		stateAccessor{state: state, eng: eng},
		executorAdapter{eng: eng},
		func(err error) { logger.Error("rollback closure failed", "error", err) },
	)

	return &Kernel{
		cfg:    cfg,
		logger: logger,
		audit:  audit,
		sink:   metricsSink,
		caps:   caps,
		state:  state,
		brg:    brg,
		pool:   p,
		eng:    eng,
		txns:   tm,
		rec:    rec,
	}, nil
}

// Init performs any startup work that can fail independently of
// construction: currently, draining any pre-existing audit log when
// audit logging is enabled. Grounded on core/honeypot.go's
// two-step NewHoneypot-then-HandleConnection lifecycle, generalized to
// New-then-Init since the Kernel has no per-connection step.
func (k *Kernel) Init(ctx context.Context) error {
	if k.initialized {
		return nil
	}
	if k.cfg.Security.AuditLogging {
		if err := k.audit.Drain(k.caps); err != nil {
			return nexuserr.Wrap(nexuserr.KindInternal, err, "failed to drain audit log")
		}
	}
	k.logger.Info("kernel initialized", "policy", k.cfg.Security.DefaultPolicy)
	k.initialized = true
	return nil
}

// Shutdown drains the worker pool and flushes the audit log. It is
// safe to call more than once.
func (k *Kernel) Shutdown(ctx context.Context) error {
	if err := k.pool.Shutdown(); err != nil {
		return nexuserr.Wrap(nexuserr.KindInternal, err, "failed to drain worker pool")
	}
	if k.cfg.Security.AuditLogging {
		if err := k.audit.Drain(k.caps); err != nil {
			return nexuserr.Wrap(nexuserr.KindInternal, err, "failed to drain audit log on shutdown")
		}
	}
	k.logger.Info("kernel shut down")
	return nil
}

// Execute runs line through the wired Execution Engine.
func (k *Kernel) Execute(ctx context.Context, line string) (value.Value, error) {
	return k.eng.Execute(ctx, line)
}

// Engine exposes the wired Execution Engine, e.g. to register
// additional built-ins or set aliases before the first Execute call.
func (k *Kernel) Engine() *engine.Engine {
	return k.eng
}

// Capabilities exposes the wired Capability Store.
func (k *Kernel) Capabilities() *capability.Store {
	return k.caps
}

// Transactions exposes the wired Transaction Manager.
func (k *Kernel) Transactions() *txn.Manager {
	return k.txns
}

// Recorder exposes the wired Execution Recorder.
func (k *Kernel) Recorder() *recorder.Recorder {
	return k.rec
}

// RecordCacheHit/RecordCacheMiss let bridge-level caches (e.g. a
// future alias or handle cache) report into Stats()'s restored
// PerformanceMetrics fields.
func (k *Kernel) RecordCacheHit()  { k.cacheHits.Add(1) }
func (k *Kernel) RecordCacheMiss() { k.cacheMisses.Add(1) }

// Stats returns the process's PerformanceMetrics snapshot, restored
// from nexus_types.h per SPEC_FULL.md section 3.4. Nothing renders
// this value; reporting UIs are out of scope.
func (k *Kernel) Stats() Metrics {
	total, failed, mean := k.sink.Snapshot()
	return Metrics{
		CommandsExecuted:   total,
		CommandsFailed:     failed,
		MeanLatencyUs:      mean,
		TotalExecutionTime: int64(mean * float64(total)),
		CacheHits:          k.cacheHits.Load(),
		CacheMisses:        k.cacheMisses.Load(),
	}
}

// stateAccessor adapts vos.State + engine.Engine to txn.StateAccess so
// the Transaction Manager can snapshot/restore cwd, env, and aliases
// without internal/txn importing internal/engine or internal/vos
// directly.
type stateAccessor struct {
	state *vos.State
	eng   *engine.Engine
}

func (s stateAccessor) CaptureSnapshot() txn.Snapshot {
	snap := s.state.Snapshot()
	return txn.Snapshot{Cwd: snap.Cwd, Env: snap.Env, Aliases: s.eng.AllAliases()}
}

func (s stateAccessor) Restore(snap txn.Snapshot) {
	_ = s.state.SetCwd(snap.Cwd)
	s.state.Env().Clearenv()
	for k, v := range snap.Env {
		_ = s.state.Env().Setenv(k, v)
	}
	s.eng.ReplaceAliases(snap.Aliases)
}

// PushOverlay/CommitOverlay/RollbackOverlay satisfy txn.Manager's
// optional fsOverlay interface, giving each transaction frame its own
// disposable copy-on-write filesystem layer per DESIGN.md's
// third_party/cowfs entry.
func (s stateAccessor) PushOverlay()     { s.state.PushOverlay() }
func (s stateAccessor) CommitOverlay()   { s.state.CommitOverlay() }
func (s stateAccessor) RollbackOverlay() { s.state.RollbackOverlay() }

// executorAdapter adapts engine.Engine to txn.Executor.
type executorAdapter struct {
	eng *engine.Engine
}

func (e executorAdapter) Execute(ctx context.Context, line string) (value.Value, error) {
	return e.eng.Execute(ctx, line)
}
