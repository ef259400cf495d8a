// Package txn implements the Transaction Manager: a stack of active
// transactions over the shell's mutable {cwd, env, aliases} state, with
// LIFO rollback closures and nested commit/rollback semantics.
//
// Grounded on TransactionState (nexus_types.h) and nexus_kernel.cpp's
// transaction-handling sections; the nested-frame stack shape echoes
// theRebelliousNerd-codenerd's internal/core/transaction_manager.go
// single-active-transaction guard, generalized here to a stack since
// spec.md's nesting rule requires child frames rather than a single
// slot.
package txn

import (
	"context"
	"sync"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/value"
)

// Snapshot is the mutable shell state a transaction can roll back to.
type Snapshot struct {
	Cwd     string
	Env     map[string]string
	Aliases map[string]string
}

func cloneSnapshot(s Snapshot) Snapshot {
	env := make(map[string]string, len(s.Env))
	for k, v := range s.Env {
		env[k] = v
	}
	aliases := make(map[string]string, len(s.Aliases))
	for k, v := range s.Aliases {
		aliases[k] = v
	}
	return Snapshot{Cwd: s.Cwd, Env: env, Aliases: aliases}
}

// StateAccess is the narrow surface the Transaction Manager needs on
// the live shell state: read a consistent Snapshot, and restore one
// wholesale on rollback. Defined here rather than depending on
// internal/vos directly, so txn stays usable against any state holder
// that can snapshot and restore itself.
type StateAccess interface {
	CaptureSnapshot() Snapshot
	Restore(Snapshot)
}

// fsOverlay is an optional capability a StateAccess may additionally
// implement: a per-transaction, copy-on-write filesystem layer, so
// Rollback undoes filesystem writes the same way it undoes cwd/env/
// alias mutations. A StateAccess that doesn't implement it (e.g. a
// test double tracking only cwd/env/aliases) still works unmodified —
// Begin/Commit/Rollback simply skip the filesystem step.
type fsOverlay interface {
	PushOverlay()
	CommitOverlay()
	RollbackOverlay()
}

// RollbackFunc is a closure an operation registers with the active
// frame; it runs, in LIFO order, only if the frame is rolled back.
type RollbackFunc func()

// Executor runs one command under the current frame, returning its
// Value. Defined as an interface to avoid a dependency on
// internal/engine.
type Executor interface {
	Execute(ctx context.Context, command string) (value.Value, error)
}

type frame struct {
	id        string
	snapshot  Snapshot
	rollbacks []RollbackFunc
}

// Manager owns the transaction stack.
type Manager struct {
	mu       sync.Mutex
	state    StateAccess
	exec     Executor
	stack    []*frame
	nextID   uint64
	onErrLog func(error)
}

// New constructs a Manager over state and exec. onErrLog, if non-nil,
// receives errors raised by rollback closures — spec.md §4.5 requires
// those to be logged and skipped, never propagated to the caller.
func New(state StateAccess, exec Executor, onErrLog func(error)) *Manager {
	return &Manager{state: state, exec: exec, onErrLog: onErrLog}
}

// Begin captures a Snapshot and pushes a new frame, returning its id.
func (m *Manager) Begin() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f := &frame{id: txnID(m.nextID), snapshot: cloneSnapshot(m.state.CaptureSnapshot())}
	m.stack = append(m.stack, f)
	if fo, ok := m.state.(fsOverlay); ok {
		fo.PushOverlay()
	}
	return f.id
}

// RegisterRollback adds fn to the innermost active frame's rollback
// stack. It is an error to call this with no active transaction.
func (m *Manager) RegisterRollback(fn RollbackFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return nexuserr.New(nexuserr.KindInvalidArgument, "no active transaction")
	}
	top := m.stack[len(m.stack)-1]
	top.rollbacks = append(top.rollbacks, fn)
	return nil
}

// Commit pops the frame named by id: discards its rollback closures
// and keeps the mutated state. A child commit merges its rollback
// closures into the parent's, so an outer rollback still unwinds work
// done by a committed child.
func (m *Manager) Commit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, idx, err := m.findLocked(id)
	if err != nil {
		return err
	}
	m.stack = append(m.stack[:idx], m.stack[idx+1:]...)
	if idx > 0 && idx-1 < len(m.stack) {
		parent := m.stack[idx-1]
		parent.rollbacks = append(parent.rollbacks, f.rollbacks...)
	}
	if fo, ok := m.state.(fsOverlay); ok {
		fo.CommitOverlay()
	}
	return nil
}

// Rollback pops the frame named by id, running its rollback closures
// LIFO, restoring its Snapshot, and invoking onRollback (which may be
// nil). A child's rollback never cascades to its parent.
func (m *Manager) Rollback(id string, onRollback func(error)) error {
	m.mu.Lock()
	f, idx, err := m.findLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.stack = append(m.stack[:idx], m.stack[idx+1:]...)
	if fo, ok := m.state.(fsOverlay); ok {
		fo.RollbackOverlay()
	}
	m.mu.Unlock()

	var rollErr error
	for i := len(f.rollbacks) - 1; i >= 0; i-- {
		rollErr = runRollback(f.rollbacks[i])
		if rollErr != nil && m.onErrLog != nil {
			m.onErrLog(rollErr)
		}
	}
	m.state.Restore(f.snapshot)
	if onRollback != nil {
		onRollback(rollErr)
	}
	return nil
}

func runRollback(fn RollbackFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nexuserr.Newf(nexuserr.KindInternal, "rollback closure panicked: %v", r)
		}
	}()
	fn()
	return nil
}

func (m *Manager) findLocked(id string) (*frame, int, error) {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].id == id {
			return m.stack[i], i, nil
		}
	}
	return nil, -1, nexuserr.Newf(nexuserr.KindNotFound, "unknown transaction %q", id)
}

// RunTransaction begins a frame, runs each command serially through
// exec, and commits on full success or rolls back (invoking
// onRollback) on the first error.
func (m *Manager) RunTransaction(ctx context.Context, commands []string, onRollback func(error)) ([]value.Value, error) {
	id := m.Begin()
	results := make([]value.Value, 0, len(commands))
	for _, cmd := range commands {
		v, err := m.exec.Execute(ctx, cmd)
		if err != nil {
			_ = m.Rollback(id, onRollback)
			return nil, nexuserr.Wrap(nexuserr.KindTransactionAbort, err, "transaction rolled back")
		}
		results = append(results, v)
	}
	if err := m.Commit(id); err != nil {
		return nil, err
	}
	return results, nil
}

// Depth returns the number of active (nested) transactions.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

func txnID(n uint64) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "tx-0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%uint64(len(alphabet))]
		n /= uint64(len(alphabet))
	}
	return "tx-" + string(buf[i:])
}
