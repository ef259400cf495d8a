package value

import "testing"

func TestNextIDUnique(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := NextID()
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestEqualScalars(t *testing.T) {
	if !Equal(Int(5), Int(5)) {
		t.Fatal("expected Int(5) == Int(5)")
	}
	if Equal(Int(5), Int(6)) {
		t.Fatal("expected Int(5) != Int(6)")
	}
	if !Equal(String("a"), String("a")) {
		t.Fatal("expected String(a) == String(a)")
	}
	if Equal(Int(5), String("5")) {
		t.Fatal("expected different kinds to differ")
	}
}

func TestEqualList(t *testing.T) {
	a := List([]Value{Int(1), String("x")})
	b := List([]Value{Int(1), String("x")})
	c := List([]Value{Int(1), String("y")})
	if !Equal(a, b) {
		t.Fatal("expected equal lists to be equal")
	}
	if Equal(a, c) {
		t.Fatal("expected differing lists to differ")
	}
}

func TestEqualMap(t *testing.T) {
	a := Map(map[string]Value{"k": Int(1)})
	b := Map(map[string]Value{"k": Int(1)})
	c := Map(map[string]Value{"k": Int(2)})
	if !Equal(a, b) {
		t.Fatal("expected equal maps to be equal")
	}
	if Equal(a, c) {
		t.Fatal("expected differing maps to differ")
	}
}

func TestMetadataAssigned(t *testing.T) {
	v := String("hello")
	if v.Meta.ID == 0 {
		t.Fatal("expected non-zero id")
	}
	if v.Meta.Type != "string" {
		t.Fatalf("expected type string, got %q", v.Meta.Type)
	}
	if v.Meta.Size != len("hello") {
		t.Fatalf("expected size %d, got %d", len("hello"), v.Meta.Size)
	}
}
