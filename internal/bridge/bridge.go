package bridge

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/vos"
)

// Bridge is the only code path that exposes the native filesystem,
// process, and network APIs to scripted code. It owns the native
// handle table and gates every surface method through a Capability
// Store before doing work.
type Bridge struct {
	caps    *capability.Store
	state   *vos.State
	handles *HandleTable
	mem     *MemoryBudget
}

// New constructs a Bridge over caps and state, enforcing spec.md
// section 5's live-payload memory cap. A non-positive maxMemoryBytes
// falls back to DefaultMemoryCapBytes; wire config.Configuration's
// Shell.MaxMemory through here.
func New(caps *capability.Store, state *vos.State, maxMemoryBytes int64) *Bridge {
	mem := NewMemoryBudget(maxMemoryBytes)
	return &Bridge{caps: caps, state: state, handles: NewHandleTable(mem), mem: mem}
}

// MemoryBudget exposes the bridge's live-payload accountant, e.g. for
// a performance-monitoring collaborator to report current usage
// against the configured cap.
func (b *Bridge) MemoryBudget() *MemoryBudget {
	return b.mem
}

// Handles returns the bridge's native handle table.
func (b *Bridge) Handles() *HandleTable {
	return b.handles
}

// gate issues a capability check naming action and resource before a
// surface method does work, per spec.md §4.3(c). Denial is raised as
// a PermissionDenied error identical in shape whether the caller is
// scripted or native.
func (b *Bridge) gate(action, resource string) error {
	if !b.caps.Check(action, resource) {
		return nexuserr.Newf(nexuserr.KindPermissionDenied, "%s:%s denied", action, resource)
	}
	return nil
}

// Surfaces returns the fs/proc/net/utils Starlark modules as a
// top-level predeclared environment, ready to pass to
// starlark.ExecFile or starlark.Thread execution.
func (b *Bridge) Surfaces() starlark.StringDict {
	return starlark.StringDict{
		"fs":    b.fsModule(),
		"proc":  b.procModule(),
		"net":   b.netModule(),
		"utils": b.utilsModule(),
	}
}

func module(name string, methods starlark.StringDict) *starlarkstruct.Module {
	return &starlarkstruct.Module{Name: name, Members: methods}
}
