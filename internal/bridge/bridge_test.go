package bridge

import (
	"testing"

	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/capability"
	"github.com/nexusshell/nexus/internal/value"
	"github.com/nexusshell/nexus/internal/vos"
)

func TestRoundTripScalars(t *testing.T) {
	h := NewHandleTable(nil)
	cases := []value.Value{
		value.Null(), value.Bool(true), value.Int(42), value.Float(3.5), value.String("hi"),
	}
	for _, v := range cases {
		sv, err := ToScripted(h, v)
		if err != nil {
			t.Fatalf("ToScripted(%v) error: %v", v, err)
		}
		back, err := ToNative(h, sv)
		if err != nil {
			t.Fatalf("ToNative error: %v", err)
		}
		if !value.Equal(v, back) {
			t.Fatalf("round trip mismatch: %v != %v", v, back)
		}
	}
}

func TestRoundTripListAndMap(t *testing.T) {
	h := NewHandleTable(nil)
	v := value.List([]value.Value{value.Int(1), value.String("x")})
	sv, err := ToScripted(h, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := ToNative(h, sv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(v, back) {
		t.Fatalf("round trip mismatch for list")
	}

	m := value.Map(map[string]value.Value{"k": value.Int(9)})
	sv2, err := ToScripted(h, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back2, err := ToNative(h, sv2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(m, back2) {
		t.Fatalf("round trip mismatch for map")
	}
}

func TestCyclicListIsRejected(t *testing.T) {
	h := NewHandleTable(nil)
	l := starlark.NewList([]starlark.Value{starlark.None})
	l.SetIndex(0, l)
	if _, err := ToNative(h, l); err == nil {
		t.Fatal("expected error marshalling a cyclic list")
	}
}

func TestSharedNonCyclicSublistIsNotRejected(t *testing.T) {
	h := NewHandleTable(nil)
	shared := starlark.NewList([]starlark.Value{starlark.MakeInt(1)})
	outer := starlark.NewList([]starlark.Value{shared, shared})
	nv, err := ToNative(h, outer)
	if err != nil {
		t.Fatalf("expected no error marshalling a shared (non-cyclic) sublist, got %v", err)
	}
	items := nv.AsList()
	if len(items) != 2 || !value.Equal(items[0], items[1]) {
		t.Fatalf("expected both elements to round trip identically, got %v", items)
	}
}

func TestSharedNonCyclicSubdictIsNotRejected(t *testing.T) {
	h := NewHandleTable(nil)
	shared := starlark.NewDict(1)
	shared.SetKey(starlark.String("x"), starlark.MakeInt(1))
	outer := starlark.NewDict(2)
	outer.SetKey(starlark.String("a"), shared)
	outer.SetKey(starlark.String("b"), shared)
	if _, err := ToNative(h, outer); err != nil {
		t.Fatalf("expected no error marshalling a shared (non-cyclic) subdict, got %v", err)
	}
}

func TestHandleRoundTripPreservesIdentity(t *testing.T) {
	h := NewHandleTable(nil)
	fn := starlark.NewBuiltin("noop", func(t *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return starlark.None, nil
	})
	nv, err := ToNative(h, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nv.Kind != value.KindHandle {
		t.Fatalf("expected handle kind, got %v", nv.Kind)
	}
	back, err := ToScripted(h, nv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != starlark.Value(fn) {
		t.Fatal("expected identity preserved through handle round trip")
	}
}

func newTestBridge() *Bridge {
	caps := capability.New(100)
	caps.Grant("fs:read:*")
	caps.Grant("fs:write:*")
	state := vos.New(vos.NewMemFS())
	return New(caps, state, 0)
}

func TestFsWriteThenReadFile(t *testing.T) {
	b := newTestBridge()
	thread := &starlark.Thread{Name: "test"}

	_, err := b.fsWriteFile(thread, starlark.NewBuiltin("fs.writeFile", b.fsWriteFile), starlark.Tuple{starlark.String("/a.txt"), starlark.String("hello")}, nil)
	if err != nil {
		t.Fatalf("unexpected error writing: %v", err)
	}

	result, err := b.fsReadFile(thread, starlark.NewBuiltin("fs.readFile", b.fsReadFile), starlark.Tuple{starlark.String("/a.txt")}, nil)
	if err != nil {
		t.Fatalf("unexpected error reading: %v", err)
	}
	s, ok := starlark.AsString(result)
	if !ok || s != "hello" {
		t.Fatalf("expected hello, got %v", result)
	}
}

func TestFsReadDeniedWithoutCapability(t *testing.T) {
	caps := capability.New(100)
	state := vos.New(vos.NewMemFS())
	b := New(caps, state, 0)
	thread := &starlark.Thread{Name: "test"}

	_, err := b.fsReadFile(thread, starlark.NewBuiltin("fs.readFile", b.fsReadFile), starlark.Tuple{starlark.String("/a.txt")}, nil)
	if err == nil {
		t.Fatal("expected permission denied without a grant")
	}
}

func TestUtilsUUIDReturnsDistinctValues(t *testing.T) {
	b := newTestBridge()
	thread := &starlark.Thread{Name: "test"}
	v1, err := b.utilsUUID(thread, starlark.NewBuiltin("utils.uuid", b.utilsUUID), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := b.utilsUUID(thread, starlark.NewBuiltin("utils.uuid", b.utilsUUID), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1.(starlark.String) == v2.(starlark.String) {
		t.Fatal("expected distinct uuids")
	}
}

func TestUtilsFormatBytes(t *testing.T) {
	b := newTestBridge()
	thread := &starlark.Thread{Name: "test"}
	result, err := b.utilsFormatBytes(thread, starlark.NewBuiltin("utils.formatBytes", b.utilsFormatBytes), starlark.Tuple{starlark.MakeInt(1024)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.(starlark.String); !ok {
		t.Fatalf("expected a string result, got %T", result)
	}
}

func TestSurfacesExposeAllFourModules(t *testing.T) {
	b := newTestBridge()
	surfaces := b.Surfaces()
	for _, name := range []string{"fs", "proc", "net", "utils"} {
		if _, ok := surfaces[name]; !ok {
			t.Fatalf("expected surface %q to be present", name)
		}
	}
}
