package bridge

import (
	"sync"

	"github.com/nexusshell/nexus/internal/nexuserr"
)

// DefaultMemoryCapBytes matches spec.md section 5's default cap on the
// sum of live Value payload sizes (50 MiB), used when a Bridge is
// constructed with a cap <= 0.
const DefaultMemoryCapBytes = 50 * 1024 * 1024

// handleOverheadBytes is the fixed charge against the budget for
// pinning one native resource in the handle table (a watch, a
// monitor, a downloaded-file handle, or an opaque scripted object
// round-tripped through the marshaller). The resource itself usually
// lives on the Go heap independent of its declared Value payload size,
// so a flat per-handle charge stands in for "materialising a handle"
// rather than trying to size arbitrary native objects.
const handleOverheadBytes = 64

// MemoryBudget enforces spec.md section 5's configurable cap on the
// sum of live Value payload sizes: "checked at Value construction and
// at handle materialisation... does not track runtime embedded-language
// heap usage." Grounded on nexus_types.h's memory_limit_bytes field;
// no example repo implements a payload-size budget of its own, so this
// is hand-rolled mutex-guarded bookkeeping, same as internal/txn's stack.
type MemoryBudget struct {
	mu   sync.Mutex
	cap  int64
	used int64
}

// NewMemoryBudget constructs a budget with the given cap. A
// non-positive capBytes falls back to DefaultMemoryCapBytes.
func NewMemoryBudget(capBytes int64) *MemoryBudget {
	if capBytes <= 0 {
		capBytes = DefaultMemoryCapBytes
	}
	return &MemoryBudget{cap: capBytes}
}

// Reserve charges n bytes against the budget, failing with
// KindMemoryExceeded if that would push the live total past the cap.
func (m *MemoryBudget) Reserve(n int) error {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used+int64(n) > m.cap {
		return nexuserr.Newf(nexuserr.KindMemoryExceeded,
			"reserving %d bytes would reach %d, exceeding the %d byte cap", n, m.used+int64(n), m.cap)
	}
	m.used += int64(n)
	return nil
}

// Release gives back n bytes previously charged via Reserve.
func (m *MemoryBudget) Release(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= int64(n)
	if m.used < 0 {
		m.used = 0
	}
}

// Used reports the current live total.
func (m *MemoryBudget) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Cap reports the configured ceiling.
func (m *MemoryBudget) Cap() int64 {
	return m.cap
}

// chargeValue checks a single newly-constructed Value's payload of n
// bytes against the live total and immediately releases it: the Value
// itself is about to be handed to the Starlark runtime (which tracks
// its own heap per spec.md section 5) rather than held open-endedly by
// the bridge, so the cap's job here is to reject any one construction
// that alone would blow the budget, not to permanently debit transient
// return values. Long-lived native resources are charged instead
// through the handle table, which does not release until the handle
// does.
func (b *Bridge) chargeValue(n int) error {
	if err := b.mem.Reserve(n); err != nil {
		return err
	}
	b.mem.Release(n)
	return nil
}
