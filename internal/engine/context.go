// Package engine implements the Execution Engine: the dispatch loop
// that turns a parsed Plan into a Value, resolving aliases, invoking
// built-ins or external processes, chaining pipeline stages, and
// handing scripted input to the Object Bridge's Starlark evaluator.
//
// Grounded on core/shell.go's Run() dispatch loop (builtin lookup →
// vos.LookPath → StartProcess) and core/exec.go, with alias
// resolution and pipeline chaining restated from
// orion_execution_engine.cpp.
package engine

import (
	"github.com/nexusshell/nexus/internal/bridge"
	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/value"
	"github.com/nexusshell/nexus/internal/vos"
)

// Context is the immutable-after-construction per-command invocation
// record described by spec.md section 3, except PipelineInput, which
// the engine sets between pipeline stages.
type Context struct {
	Cwd            string
	Env            map[string]string
	Args           []string
	Flags          map[string]any
	Capabilities   *capability.Store
	Bridge         *bridge.Bridge
	PipelineInput  value.Value
	PipelineIndex  int
	PipelineLength int
	CaptureStdio   bool
	InReplay       bool
}

// snapshotContext builds the immutable parts of a Context from a
// state snapshot and a parsed command, consistent with spec.md
// section 5's "reads use a consistent snapshot taken at command
// start" rule.
func snapshotContext(snap vos.Snapshot, name string, args []string, flags map[string]any) *Context {
	return &Context{
		Cwd:          snap.Cwd,
		Env:          snap.Env,
		Args:         args,
		Flags:        flags,
		PipelineInput: value.Null(),
	}
}

// Builtin is the contract every registered built-in command
// implements. Grounded on core/shell_builtins.go's ShellBuiltin
// adapter, generalized from "returns an int exit code" to "returns a
// Value", matching the engine's single return type across built-ins,
// external processes, and scripted evaluation.
type Builtin interface {
	Run(ctx *Context) (value.Value, error)
}

// MetricsSink receives one record per execute_single call, win or
// lose. Grounded on spec.md section 4.2's "(name, latency_us, ok)"
// metrics emission contract.
type MetricsSink interface {
	RecordCommand(name string, latencyUs int64, ok bool)
}

// Recorder is consulted by the state machine's
// "(recording.record?)"/"(record_result)" stages. A nil Recorder
// disables recording without changing any other behavior.
// RecordCommand returns an opaque token threading its entry through to
// the matching RecordResult call, so concurrent execute_async calls
// recording at once don't clobber each other's in-flight entries.
type Recorder interface {
	RecordCommand(name string, args []string) string
	RecordResult(token string, v value.Value, err error)
}
