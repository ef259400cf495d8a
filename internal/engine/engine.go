package engine

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/bridge"
	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/parser"
	"github.com/nexusshell/nexus/internal/pool"
	"github.com/nexusshell/nexus/internal/value"
	"github.com/nexusshell/nexus/internal/vos"
)

// ErrAliasCycle is returned by ResolveAlias when a name aliases
// directly to itself. Spec.md section 8's alias-resolution invariant
// bounds resolution to at most one hop, so this is the only cycle
// shape that needs detecting.
var ErrAliasCycle = nexuserr.New(nexuserr.KindInvalidArgument, "alias resolves to itself")

// Engine dispatches parsed input to built-ins, external processes, or
// the scripted evaluator, chaining pipeline stages and emitting
// metrics along the way.
type Engine struct {
	state    *vos.State
	caps     *capability.Store
	brg      *bridge.Bridge
	pool     *pool.Pool
	metrics  MetricsSink
	recorder Recorder

	aliasMu sync.RWMutex
	aliases map[string]string

	builtinMu sync.RWMutex
	builtins  map[string]Builtin
}

// New constructs an Engine wired to the given state, capability
// store, bridge, and worker pool. metrics and recorder may be nil.
func New(state *vos.State, caps *capability.Store, brg *bridge.Bridge, p *pool.Pool, metrics MetricsSink, recorder Recorder) *Engine {
	return &Engine{
		state:    state,
		caps:     caps,
		brg:      brg,
		pool:     p,
		metrics:  metrics,
		recorder: recorder,
		aliases:  make(map[string]string),
		builtins: make(map[string]Builtin),
	}
}

// RegisterBuiltin adds or replaces the built-in registered under name.
func (e *Engine) RegisterBuiltin(name string, b Builtin) {
	e.builtinMu.Lock()
	defer e.builtinMu.Unlock()
	e.builtins[name] = b
}

// SetAlias registers name as an alias for target.
func (e *Engine) SetAlias(name, target string) {
	e.aliasMu.Lock()
	defer e.aliasMu.Unlock()
	e.aliases[name] = target
}

// ResolveAlias performs the single flat-map lookup spec.md section
// 8's alias invariant requires: at most one hop, with self-aliasing
// reported as ErrAliasCycle rather than followed.
func (e *Engine) ResolveAlias(name string) (string, error) {
	e.aliasMu.RLock()
	defer e.aliasMu.RUnlock()
	target, ok := e.aliases[name]
	if !ok {
		return name, nil
	}
	if target == name {
		return "", ErrAliasCycle
	}
	return target, nil
}

// AllAliases returns a snapshot copy of the alias table, used by the
// Transaction Manager to capture rollback state.
func (e *Engine) AllAliases() map[string]string {
	e.aliasMu.RLock()
	defer e.aliasMu.RUnlock()
	out := make(map[string]string, len(e.aliases))
	for k, v := range e.aliases {
		out[k] = v
	}
	return out
}

// ReplaceAliases swaps the alias table wholesale, used by the
// Transaction Manager to restore a rolled-back snapshot.
func (e *Engine) ReplaceAliases(aliases map[string]string) {
	e.aliasMu.Lock()
	defer e.aliasMu.Unlock()
	e.aliases = make(map[string]string, len(aliases))
	for k, v := range aliases {
		e.aliases[k] = v
	}
}

// Execute parses line and dispatches it: the primary entry point.
func (e *Engine) Execute(ctx context.Context, line string) (value.Value, error) {
	plan, err := parser.Parse(line)
	if err != nil {
		return value.Null(), err
	}

	if plan.Mode == parser.ModeScripted {
		return e.ExecuteScripted(ctx, plan.Script)
	}
	if len(plan.Commands) == 0 {
		return value.Null(), nil
	}
	if len(plan.Commands) == 1 {
		return e.executeSingle(ctx, plan.Commands[0], value.Null(), 0, 1)
	}
	return e.ExecutePipeline(ctx, plan.Commands)
}

// ExecutePipeline chains segments sequentially, passing each stage's
// result as the next stage's pipeline_input. Any stage failing aborts
// the pipeline and the error propagates; there is no partial-success
// reporting.
func (e *Engine) ExecutePipeline(ctx context.Context, segments []parser.Command) (value.Value, error) {
	var result value.Value = value.Null()
	var err error
	for i, cmd := range segments {
		result, err = e.executeSingle(ctx, cmd, result, i, len(segments))
		if err != nil {
			return value.Null(), err
		}
	}
	return result, nil
}

// ExecuteScripted hands script to the Object Bridge's Starlark
// evaluator, predeclaring the fs/proc/net/utils surfaces.
func (e *Engine) ExecuteScripted(ctx context.Context, script string) (value.Value, error) {
	thread := &starlark.Thread{Name: "nexus-script"}
	globals, err := starlark.ExecFile(thread, "<nexus>", script, e.brg.Surfaces())
	if err != nil {
		return value.Null(), nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "script evaluation failed")
	}

	result, ok := globals["result"]
	if !ok {
		return value.Null(), nil
	}
	return bridge.ToNative(e.brg.Handles(), result)
}

// ExecuteAsync submits line to the worker pool and returns a Future
// for its eventual result without waiting for line to run. Like
// pool.Pool.Submit, it blocks while every worker is busy.
func (e *Engine) ExecuteAsync(ctx context.Context, line string) *pool.Future {
	return e.pool.Submit(ctx, func(taskCtx context.Context) (value.Value, error) {
		return e.Execute(taskCtx, line)
	})
}

// executeSingle runs the state machine described by spec.md section
// 4.2: parsed → permission_check → (recording.record?) → execute →
// (record_result) → return.
func (e *Engine) executeSingle(ctx context.Context, cmd parser.Command, pipelineInput value.Value, index, length int) (value.Value, error) {
	start := time.Now()

	resolved, err := e.ResolveAlias(cmd.Name)
	if err != nil {
		e.emit(cmd.Name, start, false)
		return value.Null(), err
	}

	if !e.caps.Check("cmd:exec", resolved) {
		e.emit(resolved, start, false)
		return value.Null(), nexuserr.Newf(nexuserr.KindPermissionDenied, "cmd:exec:%s denied", resolved)
	}

	var recordToken string
	if e.recorder != nil {
		recordToken = e.recorder.RecordCommand(resolved, cmd.Args)
	}

	snap := e.state.Snapshot()
	cctx := snapshotContext(snap, resolved, cmd.Args, cmd.Flags)
	cctx.PipelineInput = pipelineInput
	cctx.PipelineIndex = index
	cctx.PipelineLength = length
	cctx.Capabilities = e.caps
	cctx.Bridge = e.brg
	cctx.CaptureStdio = true

	result, runErr := e.dispatch(ctx, resolved, cmd, cctx)

	if e.recorder != nil {
		e.recorder.RecordResult(recordToken, result, runErr)
	}

	e.emit(resolved, start, runErr == nil)
	return result, runErr
}

func (e *Engine) dispatch(ctx context.Context, resolved string, cmd parser.Command, cctx *Context) (value.Value, error) {
	e.builtinMu.RLock()
	b, ok := e.builtins[resolved]
	e.builtinMu.RUnlock()
	if ok {
		return b.Run(cctx)
	}
	return e.spawnExternal(ctx, resolved, cmd.Args, cctx)
}

func (e *Engine) emit(name string, start time.Time, ok bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordCommand(name, time.Since(start).Microseconds(), ok)
}

// spawnExternal is the "system command" path: the engine spawns the
// child with current cwd/env, captures stdio, and returns a map
// Value of {code, stdout, stderr, success}. A non-zero exit is
// reported as success=false, not a thrown error; a failed spawn
// (binary not found) is a thrown error.
func (e *Engine) spawnExternal(ctx context.Context, name string, args []string, cctx *Context) (value.Value, error) {
	path, err := vos.LookPath(e.state, name)
	if err != nil {
		return value.Null(), nexuserr.Wrap(nexuserr.KindNotFound, err, "command not found")
	}

	var stdout, stderr bytes.Buffer
	c := &vos.Cmd{
		Path:   path,
		Args:   append([]string{name}, args...),
		Dir:    cctx.Cwd,
		Env:    envSliceFrom(cctx.Env),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	if in := stdinBytesFrom(cctx.PipelineInput); in != nil {
		c.Stdin = bytes.NewReader(in)
	}

	result, runErr := vos.StartProcess(ctx, c)
	if runErr != nil && result.ExitCode == -1 {
		return value.Null(), nexuserr.Wrap(nexuserr.KindExecutionFailure, runErr, "failed to start process")
	}

	return value.Map(map[string]value.Value{
		"code":    value.Int(int64(result.ExitCode)),
		"stdout":  value.String(stdout.String()),
		"stderr":  value.String(stderr.String()),
		"success": value.Bool(result.ExitCode == 0),
	}), nil
}

// stdinBytesFrom extracts the bytes an external process's stdin should
// receive from the prior pipeline stage's result, per spec.md section
// 4.2's external-process pipeline contract. A string or bytes Value
// (a builtin's or a script's output) is piped verbatim; a map Value
// (spawnExternal's own {code, stdout, stderr, success} shape, when the
// prior stage was itself an external command) pipes its stdout field.
// Anything else — including a null Value when there is no prior stage
// — yields nil, leaving c.Stdin unset.
func stdinBytesFrom(v value.Value) []byte {
	switch v.Kind {
	case value.KindString:
		return []byte(v.AsString())
	case value.KindBytes:
		return v.AsBytes()
	case value.KindMap:
		if out, ok := v.AsMap()["stdout"]; ok && out.Kind == value.KindString {
			return []byte(out.AsString())
		}
	}
	return nil
}

func envSliceFrom(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
