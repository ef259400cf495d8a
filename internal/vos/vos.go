// Package vos implements the virtual OS layer backing the fs and proc
// bridge surfaces: a process-wide, lock-guarded cwd/env/filesystem
// state plus PATH lookup, consolidated from the teacher's
// core/vos/{fs,env,10_fs,21_env,23_proc}.go into single files per
// concern (the teacher itself carries near-duplicate host and
// embedded variants of each; this package keeps one).
package vos

import (
	"sync"

	"github.com/spf13/afero"
)

// VFS is the filesystem abstraction every fs.* bridge method and
// built-in operates against.
type VFS = afero.Fs

// State is the shell's shared mutable state: current working
// directory, environment, and backing filesystem. mu guards cwd and
// the filesystem pointer; the environment has its own lock inside
// MapEnv, and aliases live in engine.Engine under a lock of their own,
// so these are not mutated under one writer lock. Reads take a
// snapshot at command start.
type State struct {
	mu      sync.RWMutex
	cwd     string
	env     *MapEnv
	fs      VFS
	fsStack []VFS
}

// New constructs a State rooted at "/" with an empty environment over
// fs.
func New(fs VFS) *State {
	return &State{cwd: "/", env: NewMapEnv(), fs: fs}
}

// Snapshot is an immutable, point-in-time copy of cwd/env used to
// populate a CommandContext so concurrent mutation by another command
// cannot tear a command's observations mid-execution.
type Snapshot struct {
	Cwd string
	Env map[string]string
}

// Snapshot captures the current cwd and environment.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env := make(map[string]string)
	for _, kv := range s.env.Environ() {
		k, v := splitKV(kv)
		env[k] = v
	}
	return Snapshot{Cwd: s.cwd, Env: env}
}

// Cwd returns the current working directory.
func (s *State) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// SetCwd updates the current working directory after verifying it
// exists and is a directory.
func (s *State) SetCwd(path string) error {
	info, err := afero.ReadDir(s.fs, path)
	_ = info
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = path
	return nil
}

// FS returns the backing filesystem.
func (s *State) FS() VFS {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fs
}

// PushOverlay layers a fresh copy-on-write overlay (see NewOverlay)
// over the live filesystem and makes it the live filesystem, so writes
// made from this point on land in a disposable layer rather than the
// filesystem a rollback needs to restore. Called from
// txn.Manager.Begin through the optional fsOverlay interface.
func (s *State) PushOverlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fsStack = append(s.fsStack, s.fs)
	s.fs = NewOverlay(s.fs)
}

// CommitOverlay keeps the current overlay (and its writes) as the live
// filesystem, discarding only the saved pointer to what preceded it —
// mirroring txn.Manager.Commit's "keep the mutated state" semantics.
func (s *State) CommitOverlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.fsStack); n > 0 {
		s.fsStack = s.fsStack[:n-1]
	}
}

// RollbackOverlay restores the filesystem pointer saved by the
// matching PushOverlay, discarding every write the transaction made —
// mirroring txn.Manager.Rollback's snapshot restore, extended to cover
// filesystem state the cwd/env/alias Snapshot doesn't.
func (s *State) RollbackOverlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.fsStack); n > 0 {
		s.fs = s.fsStack[n-1]
		s.fsStack = s.fsStack[:n-1]
	}
}

// Env returns the environment store.
func (s *State) Env() *MapEnv {
	return s.env
}

func splitKV(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
