package builtins

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/nexusshell/nexus/internal/bridge"
	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/engine"
	"github.com/nexusshell/nexus/internal/value"
	"github.com/nexusshell/nexus/internal/vos"
)

func newTestFS(t *testing.T) vos.VFS {
	t.Helper()
	fs := vos.NewMemFS()
	if err := fs.MkdirAll("/home/user", 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := afero.WriteFile(fs, "/home/user/greeting.txt", []byte("hi there\nsecond line\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return fs
}

func newTestContext(t *testing.T, args []string) (*engine.Context, *vos.State) {
	t.Helper()
	state := vos.New(newTestFS(t))
	if err := state.SetCwd("/home/user"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caps := capability.New(100)
	caps.Grant("fs:read:*")
	caps.Grant("fs:write:*")
	brg := bridge.New(caps, state, 0)

	snap := state.Snapshot()
	snap.Env["HOME"] = "/home/user"

	return &engine.Context{
		Cwd:           snap.Cwd,
		Env:           snap.Env,
		Args:          args,
		Bridge:        brg,
		PipelineInput: value.Null(),
	}, state
}

func TestPwdReturnsCwd(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	result, err := Pwd{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsString() != "/home/user" {
		t.Fatalf("expected /home/user, got %q", result.AsString())
	}
}

func TestCdWithNoArgsGoesHome(t *testing.T) {
	ctx, state := newTestContext(t, nil)
	if err := state.SetCwd("/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := (Cd{}).Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Cwd() != "/home/user" {
		t.Fatalf("expected cwd /home/user, got %q", state.Cwd())
	}
}

func TestCdWithMissingDirectoryErrors(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"/nope"})
	if _, err := (Cd{}).Run(ctx); err == nil {
		t.Fatal("expected error changing into a missing directory")
	}
}

func TestCdTooManyArgumentsErrors(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"/a", "/b"})
	if _, err := (Cd{}).Run(ctx); err == nil {
		t.Fatal("expected error for too many arguments")
	}
}

func TestEchoJoinsArgsWithSpaces(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"hello", "world"})
	result, err := Echo{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsString() != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", result.AsString())
	}
}

func TestEchoInterpretsEscapesWithFlag(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"-e", `a\tb`})
	result, err := Echo{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsString() != "a\tb" {
		t.Fatalf("expected escaped tab, got %q", result.AsString())
	}
}

func TestLsListsDirectoryEntriesSorted(t *testing.T) {
	ctx, state := newTestContext(t, nil)
	if err := afero.WriteFile(state.FS(), "/home/user/alpha.txt", []byte("a"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := (Ls{}).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := result.AsList()
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].AsMap()["name"].AsString() != "alpha.txt" || list[1].AsMap()["name"].AsString() != "greeting.txt" {
		t.Fatalf("unexpected entries or order: %v, %v", list[0].AsMap(), list[1].AsMap())
	}
}

func TestLsDeniedWithoutReadCapability(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	state := vos.New(newTestFS(t))
	if err := state.SetCwd("/home/user"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	caps := capability.New(100) // no grants
	ctx.Bridge = bridge.New(caps, state, 0)

	if _, err := (Ls{}).Run(ctx); err == nil {
		t.Fatal("expected permission error without fs:read grant")
	}
}

func TestEnvReturnsWholeMapWithoutArgs(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	result, err := Env{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsMap()["HOME"].AsString() != "/home/user" {
		t.Fatalf("expected HOME in env map, got %v", result.AsMap())
	}
}

func TestEnvLooksUpSingleVariable(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"HOME"})
	result, err := Env{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsString() != "/home/user" {
		t.Fatalf("expected /home/user, got %q", result.AsString())
	}
}

func TestEnvUnknownVariableReturnsNull(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"NOPE"})
	result, err := Env{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsNull() {
		t.Fatalf("expected null for unset variable, got %v", result)
	}
}

func TestWcCountsPipelineInputText(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	ctx.PipelineInput = value.String("one two\nthree\n")

	result, err := Wc{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := result.AsMap()
	if m["lines"].AsInt() != 2 {
		t.Fatalf("expected 2 lines, got %d", m["lines"].AsInt())
	}
	if m["words"].AsInt() != 3 {
		t.Fatalf("expected 3 words, got %d", m["words"].AsInt())
	}
}

func TestWcCountsNamedFile(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"/home/user/greeting.txt"})
	result, err := Wc{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := result.AsMap()
	if m["lines"].AsInt() != 2 {
		t.Fatalf("expected 2 lines, got %d", m["lines"].AsInt())
	}
}

func TestWcLinesOnlyFlagReturnsBareInt(t *testing.T) {
	ctx, _ := newTestContext(t, []string{"-l"})
	ctx.PipelineInput = value.String("a\nb\nc")

	result, err := Wc{}.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != value.KindInt || result.AsInt() != 2 {
		t.Fatalf("expected bare int 2, got %v", result)
	}
}
