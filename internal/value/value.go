// Package value implements NexusObject: the tagged, metadata-carrying
// datum that flows through the engine and across the object bridge.
package value

import (
	"sync/atomic"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindHandle
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Metadata accompanies every Value per spec: a monotonically assigned
// id, a declared type tag, creation/modification timestamps in
// monotonic nanoseconds, and a best-effort size in bytes.
type Metadata struct {
	ID         uint64
	Type       string
	CreatedAt  int64
	ModifiedAt int64
	Size       int
}

var idCounter uint64

// NextID returns a process-lifetime-unique id. Grounded on the
// monotonic identity scheme implied by the original bridge's use of a
// high-resolution clock for object ids, reimplemented as an atomic
// counter to avoid wall-clock nondeterminism.
func NextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Value is the tagged union described by spec.md section 3.
type Value struct {
	Kind Kind
	Meta Metadata

	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	list []Value
	m    map[string]Value
	h    uint64 // handle id, resolved against bridge.HandleTable
}

// processStart anchors now's monotonic readings.
var processStart = time.Now()

// now returns nanoseconds since processStart, read from the monotonic
// clock so wall-clock adjustments never move it backwards.
func now() int64 {
	return int64(time.Since(processStart))
}

func newMeta(typ string, size int) Metadata {
	n := now()
	return Metadata{ID: NextID(), Type: typ, CreatedAt: n, ModifiedAt: n, Size: size}
}

// Null returns the null Value.
func Null() Value {
	return Value{Kind: KindNull, Meta: newMeta("null", 0)}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Meta: newMeta("bool", 1), b: b}
}

// Int wraps a 64-bit signed integer.
func Int(i int64) Value {
	return Value{Kind: KindInt, Meta: newMeta("int", 8), i: i}
}

// Float wraps a 64-bit IEEE-754 float.
func Float(f float64) Value {
	return Value{Kind: KindFloat, Meta: newMeta("float", 8), f: f}
}

// String wraps a UTF-8 string.
func String(s string) Value {
	return Value{Kind: KindString, Meta: newMeta("string", len(s)), s: s}
}

// Bytes wraps an opaque binary buffer.
func Bytes(b []byte) Value {
	return Value{Kind: KindBytes, Meta: newMeta("bytes", len(b)), by: b}
}

// List wraps a slice of Values.
func List(items []Value) Value {
	size := 0
	for _, v := range items {
		size += v.Meta.Size
	}
	return Value{Kind: KindList, Meta: newMeta("list", size), list: items}
}

// Map wraps a string-keyed map of Values.
func Map(m map[string]Value) Value {
	size := 0
	for k, v := range m {
		size += len(k) + v.Meta.Size
	}
	return Value{Kind: KindMap, Meta: newMeta("map", size), m: m}
}

// Handle wraps an opaque native-resource id. The id must resolve
// against the bridge's HandleTable for the lifetime of the Value.
func Handle(id uint64) Value {
	return Value{Kind: KindHandle, Meta: newMeta("handle", 8), h: id}
}

// AsBool, AsInt, AsFloat, AsString, AsBytes, AsList, AsMap, AsHandle
// access the underlying payload. Callers are expected to check Kind
// first; these are not type-checked for speed, matching the teacher's
// own "check the mode field, then branch" style in core/shell.go.

func (v Value) AsBool() bool            { return v.b }
func (v Value) AsInt() int64            { return v.i }
func (v Value) AsFloat() float64        { return v.f }
func (v Value) AsString() string        { return v.s }
func (v Value) AsBytes() []byte         { return v.by }
func (v Value) AsList() []Value         { return v.list }
func (v Value) AsMap() map[string]Value { return v.m }
func (v Value) AsHandle() uint64        { return v.h }

// IsNull reports whether v holds the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal compares two Values by variant and payload, ignoring metadata
// (ids are never equal across two independently constructed Values, so
// equality has to be structural to be useful to callers and tests).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.by) == string(b.by)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindHandle:
		return a.h == b.h
	default:
		return false
	}
}
