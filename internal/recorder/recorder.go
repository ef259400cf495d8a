// Package recorder implements the Execution Recorder: an append-only
// log of (input, context, result) tuples plus state snapshots, JSON
// persistence, and replay with breakpoints and speed control.
//
// Grounded on core/recorder.go's Record/Replay/ReplayCallback
// three-function shape — record wraps the stdio path, replay drives a
// callback per logged event — reimplemented over plain JSON structs
// rather than the teacher's little-endian binary UML/kippo framing,
// since spec.md §6 mandates a JSON recording file. The
// breakpoint/speed-control replay loop is grounded on
// core/ttylog/common.go's NewRealTimePlayback sleep-between-events
// pattern, adapted from wall-clock sleep to a speed multiplier.
package recorder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/value"
)

// CommandEntry is one recorded (input, context, result) tuple.
type CommandEntry struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Input         string `json:"input"`
	Context       string `json:"context,omitempty"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ExecutionTime int64  `json:"executionTime"`
}

// SnapshotEntry is one recorded point-in-time state capture.
type SnapshotEntry struct {
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	SystemState any    `json:"systemState,omitempty"`
	ShellState  any    `json:"shellState,omitempty"`
}

// Metadata describes the environment a recording was captured in.
type Metadata struct {
	Shell    string `json:"shell"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

// Recording is the JSON document persisted to
// <cwd>/.nexus/recordings/<name>.json, matching spec.md §6 exactly.
type Recording struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartTime int64           `json:"startTime"`
	EndTime   int64           `json:"endTime"`
	Duration  int64           `json:"duration"`
	Metadata  Metadata        `json:"metadata"`
	Commands  []CommandEntry  `json:"commands"`
	Snapshots []SnapshotEntry `json:"snapshots"`
}

// Recorder accumulates one Recording while active, and persists it on
// Stop. The zero value is not usable; construct with New.
type Recorder struct {
	mu       sync.Mutex
	active   *Recording
	pending  map[string]int // command token -> index into active.Commands, awaiting RecordResult
	nextID   uint64
	metadata Metadata
}

// New constructs a Recorder stamping every Recording with metadata.
func New(metadata Metadata) *Recorder {
	return &Recorder{metadata: metadata}
}

func (r *Recorder) newID(prefix string) string {
	r.nextID++
	return prefix + "-" + itoa(r.nextID)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Start begins a new recording named name (or an id-derived default
// name if empty). It is an error to Start while already recording.
func (r *Recorder) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nexuserr.New(nexuserr.KindInvalidArgument, "a recording is already active")
	}
	id := r.newID("rec")
	if name == "" {
		name = id
	}
	r.active = &Recording{
		ID:        id,
		Name:      name,
		StartTime: nowMillis(),
		Metadata:  r.metadata,
	}
	r.pending = make(map[string]int)
	return nil
}

// Stop ends the active recording, stamping EndTime/Duration, and
// returns it. It is an error to Stop with no active recording.
func (r *Recorder) Stop() (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, nexuserr.New(nexuserr.KindInvalidArgument, "no active recording")
	}
	rec := r.active
	rec.EndTime = nowMillis()
	rec.Duration = rec.EndTime - rec.StartTime
	r.active, r.pending = nil, nil
	return rec, nil
}

// Active reports whether a recording is currently in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// RecordCommand satisfies engine.Recorder: it appends a new
// CommandEntry with Input populated and no Result yet, and returns a
// token the caller must pass back to RecordResult. Tokening (rather
// than assuming one in-flight command at a time) keeps concurrent
// execute_async recording correct — two commands racing through
// RecordCommand/RecordResult never clobber each other's entry. A nil
// active recording makes this and RecordResult no-ops, so the engine
// can call unconditionally when recording is disabled.
func (r *Recorder) RecordCommand(name string, args []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	id := r.newID("cmd")
	entry := CommandEntry{
		ID:        id,
		Timestamp: nowMillis(),
		Input:     joinArgs(name, args),
	}
	r.active.Commands = append(r.active.Commands, entry)
	r.pending[id] = len(r.active.Commands) - 1
	return id
}

func joinArgs(name string, args []string) string {
	out := name
	for _, a := range args {
		out += " " + a
	}
	return out
}

// RecordResult satisfies engine.Recorder: it fills in the
// token-identified CommandEntry's Result/Error/ExecutionTime.
func (r *Recorder) RecordResult(token string, v value.Value, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || token == "" {
		return
	}
	idx, ok := r.pending[token]
	if !ok || idx >= len(r.active.Commands) {
		return
	}
	entry := &r.active.Commands[idx]
	entry.ExecutionTime = nowMillis() - entry.Timestamp
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Result = nativeToPlain(v)
	}
	delete(r.pending, token)
}

// CreateSnapshot appends a SnapshotEntry to the active recording.
func (r *Recorder) CreateSnapshot(typ, description string, systemState, shellState any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nexuserr.New(nexuserr.KindInvalidArgument, "no active recording")
	}
	r.active.Snapshots = append(r.active.Snapshots, SnapshotEntry{
		ID:          r.newID("snap"),
		Timestamp:   nowMillis(),
		Type:        typ,
		Description: description,
		SystemState: systemState,
		ShellState:  shellState,
	})
	return nil
}

// Save persists rec as UTF-8 JSON with 2-space indent to
// <dir>/.nexus/recordings/<name>.json, per spec.md §6.
func Save(dir string, rec *Recording) (string, error) {
	recDir := filepath.Join(dir, ".nexus", "recordings")
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		return "", nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "failed to create recordings directory")
	}
	path := filepath.Join(recDir, rec.Name+".json")
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.KindInternal, err, "failed to marshal recording")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "failed to write recording file")
	}
	return path, nil
}

// Load reads a Recording back from path, tolerating unknown top-level
// and entry keys per spec.md §6.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindNotFound, err, "failed to read recording file")
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to parse recording file")
	}
	return &rec, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func nativeToPlain(v value.Value) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.AsBool()
	case value.KindInt:
		return v.AsInt()
	case value.KindFloat:
		return v.AsFloat()
	case value.KindString:
		return v.AsString()
	case value.KindBytes:
		return string(v.AsBytes())
	case value.KindList:
		items := v.AsList()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = nativeToPlain(item)
		}
		return out
	case value.KindMap:
		out := make(map[string]any, len(v.AsMap()))
		for k, mv := range v.AsMap() {
			out[k] = nativeToPlain(mv)
		}
		return out
	default:
		return nil
	}
}

// Executor re-issues one recorded command during replay. Defined here
// rather than depending on internal/engine to avoid a cycle.
type Executor interface {
	Execute(ctx context.Context, command string) (value.Value, error)
}

// ReplayOptions controls a Replay invocation.
type ReplayOptions struct {
	// Speed scales inter-command delay; < 1.0 slows playback down by
	// (1000/speed - 1000) ms between commands, per spec.md §4.6. Zero
	// means "as fast as possible" (no delay).
	Speed float64
	// Breakpoints holds zero-based command indices; Replay pauses
	// before running that index and blocks on onBreakpoint until it
	// returns.
	Breakpoints map[int]bool
	StepMode    bool
	StartFrom   int
}

// Divergence reports a command whose replayed result differs from its
// recorded one.
type Divergence struct {
	Index    int
	Input    string
	Recorded any
	Replayed any
}

// Replay re-issues rec's commands in order via exec, honoring
// breakpoints and speed control. onBreakpoint is invoked (and blocks)
// before running a breakpointed index; a nil onBreakpoint treats every
// breakpoint as an immediate resume. Divergences are collected and
// returned but never abort replay — spec.md §4.6 leaves that decision
// to the caller.
func Replay(ctx context.Context, rec *Recording, exec Executor, opts ReplayOptions, onBreakpoint func(index int)) ([]Divergence, error) {
	var divergences []Divergence
	for i := opts.StartFrom; i < len(rec.Commands); i++ {
		entry := rec.Commands[i]
		if opts.Breakpoints[i] && onBreakpoint != nil {
			onBreakpoint(i)
		}

		if i > opts.StartFrom {
			sleepBetween(opts.Speed)
		}

		result, err := exec.Execute(ctx, entry.Input)
		if err != nil {
			if entry.Error == "" {
				divergences = append(divergences, Divergence{Index: i, Input: entry.Input, Recorded: entry.Result, Replayed: err.Error()})
			}
			continue
		}
		replayed := nativeToPlain(result)
		if entry.Error != "" || !plainEqual(entry.Result, replayed) {
			divergences = append(divergences, Divergence{Index: i, Input: entry.Input, Recorded: entry.Result, Replayed: replayed})
		}
	}
	return divergences, nil
}

func sleepBetween(speed float64) {
	if speed <= 0 || speed >= 1.0 {
		return
	}
	delayMs := 1000/speed - 1000
	time.Sleep(time.Duration(delayMs) * time.Millisecond)
}

func plainEqual(a, b any) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
