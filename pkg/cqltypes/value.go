package cqltypes

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the shape of a dynamic Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	// KindList is an ordered sequence, used for lists and tuples.
	KindList
	KindSet
	KindMap
	// KindNamed is an ordered name to value mapping, used for user-defined
	// types and durations.
	KindNamed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindList:
		return "sequence"
	case KindSet:
		return "set"
	case KindMap:
		return "mapping"
	case KindNamed:
		return "named mapping"
	}
	return "unknown"
}

// Pair is one entry of a mapping.
type Pair struct {
	Key   Value
	Value Value
}

// NamedValue is one entry of a named mapping.
type NamedValue struct {
	Name  string
	Value Value
}

// Value is the host-side representation of any decoded column value. The
// zero Value is null. Values are immutable once built; the slices handed to
// constructors are copied.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	raw    []byte
	items  []Value
	pairs  []Pair
	fields []NamedValue
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Text(s string) Value    { return Value{kind: KindText, s: s} }
func Bytes(b []byte) Value   { return Value{kind: KindBytes, raw: append([]byte{}, b...)} }
func List(vs ...Value) Value { return Value{kind: KindList, items: append([]Value{}, vs...)} }
func Set(vs ...Value) Value  { return Value{kind: KindSet, items: append([]Value{}, vs...)} }
func Map(ps ...Pair) Value   { return Value{kind: KindMap, pairs: append([]Pair{}, ps...)} }
func KV(k, v Value) Pair     { return Pair{Key: k, Value: v} }
func NV(n string, v Value) NamedValue {
	return NamedValue{Name: n, Value: v}
}

func Named(fs ...NamedValue) Value {
	return Value{kind: KindNamed, fields: append([]NamedValue{}, fs...)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool           { return v.b }
func (v Value) Int() int64           { return v.i }
func (v Value) Float() float64       { return v.f }
func (v Value) Text() string         { return v.s }
func (v Value) Bytes() []byte        { return v.raw }
func (v Value) Items() []Value       { return v.items }
func (v Value) Pairs() []Pair        { return v.pairs }
func (v Value) Fields() []NamedValue { return v.fields }

// Len is the number of items, pairs or fields of a composite value.
func (v Value) Len() int {
	switch v.kind {
	case KindList, KindSet:
		return len(v.items)
	case KindMap:
		return len(v.pairs)
	case KindNamed:
		return len(v.fields)
	}
	return 0
}

// Field looks a member of a named mapping up by name.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Lookup finds the value stored under key in a mapping.
func (v Value) Lookup(key Value) (Value, bool) {
	for _, p := range v.pairs {
		if Equal(p.Key, key) {
			return p.Value, true
		}
	}
	return Value{}, false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	case KindList, KindSet:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.String()
		}
		if v.kind == KindSet {
			return "{" + strings.Join(parts, ", ") + "}"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.pairs))
		for i, p := range v.pairs {
			parts[i] = p.Key.String() + ": " + p.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNamed:
		parts := make([]string, len(v.fields))
		for i, f := range v.fields {
			parts[i] = f.Name + ": " + f.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

// Equal reports logical equality. Sets, mappings and named mappings compare
// without regard to order; a missing named field equals an explicit null.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return math.Float64bits(a.f) == math.Float64bits(b.f) || a.f == b.f
	case KindText:
		return a.s == b.s
	case KindBytes:
		return string(a.raw) == string(b.raw)
	case KindList:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindSet:
		return sameMembers(a.items, b.items)
	case KindMap:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for _, p := range a.pairs {
			other, ok := b.Lookup(p.Key)
			if !ok || !Equal(p.Value, other) {
				return false
			}
		}
		return true
	case KindNamed:
		names := map[string]struct{}{}
		for _, f := range a.fields {
			names[f.Name] = struct{}{}
		}
		for _, f := range b.fields {
			names[f.Name] = struct{}{}
		}
		for n := range names {
			av, _ := a.Field(n)
			bv, _ := b.Field(n)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func sameMembers(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && Equal(x, y) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// Native converts v into plain Go values suitable for JSON encoding:
// nil, bool, int64, float64, string, []byte, []interface{} and
// map[string]interface{}. Mappings whose keys are not all text become a
// list of [key, value] pairs.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		return v.raw
	case KindList, KindSet:
		out := make([]interface{}, len(v.items))
		for i, it := range v.items {
			out[i] = it.Native()
		}
		return out
	case KindMap:
		textKeys := true
		for _, p := range v.pairs {
			if p.Key.kind != KindText {
				textKeys = false
				break
			}
		}
		if textKeys {
			out := make(map[string]interface{}, len(v.pairs))
			for _, p := range v.pairs {
				out[p.Key.s] = p.Value.Native()
			}
			return out
		}
		out := make([]interface{}, len(v.pairs))
		for i, p := range v.pairs {
			out[i] = []interface{}{p.Key.Native(), p.Value.Native()}
		}
		return out
	case KindNamed:
		out := make(map[string]interface{}, len(v.fields))
		for _, f := range v.fields {
			out[f.Name] = f.Value.Native()
		}
		return out
	}
	return nil
}

// SortedNamed builds a named mapping from a Go map with fields ordered by
// name, so the result is deterministic.
func SortedNamed(m map[string]Value) Value {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	fs := make([]NamedValue, len(names))
	for i, n := range names {
		fs[i] = NamedValue{Name: n, Value: m[n]}
	}
	return Value{kind: KindNamed, fields: fs}
}
