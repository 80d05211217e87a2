package cqltypes

import (
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/inf.v0"
)

func TestParseType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want WireType
		str  string
	}{
		{"int", TypeInt, "int"},
		{"VARCHAR", TypeText, "text"},
		{"list<int>", ListOf(TypeInt), "list<int>"},
		{"set< text >", SetOf(TypeText), "set<text>"},
		{"map<text, frozen<list<bigint>>>", MapOf(TypeText, ListOf(TypeBigInt)), "map<text, list<bigint>>"},
		{"tuple<int, text, double>", TupleOf(TypeInt, TypeText, TypeDouble), "tuple<int, text, double>"},
		{"ks.address", UDTOf("ks", "address"), "ks.address"},
		{"frozen<address>", UDTOf("", "address"), "address"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseType(tc.in)
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "got %s", got)
			require.Equal(t, tc.str, got.String())
		})
	}

	for _, bad := range []string{"", "list<int, int>", "map<int>", "tuple<>", "int<text>", "list<", "ks.t<int>"} {
		_, err := ParseType(bad)
		assert.Error(t, err, bad)
	}
}

func TestWireTypeEqual(t *testing.T) {
	a := UDTOf("ks", "u", Field{Name: "a", Type: TypeInt})
	b := UDTOf("ks", "u", Field{Name: "a", Type: TypeInt})
	c := UDTOf("ks", "u", Field{Name: "a", Type: TypeInt}, Field{Name: "b", Type: TypeText})
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, ListOf(TypeInt).Equal(SetOf(TypeInt)))
	require.False(t, MapOf(TypeText, TypeInt).Equal(MapOf(TypeText, TypeBigInt)))

	cols := []ColumnSpec{{Name: "id", Type: TypeInt}, {Name: "name", Type: TypeText}}
	require.True(t, SameColumns(cols, []ColumnSpec{{Name: "id", Type: TypeInt}, {Name: "name", Type: TypeText}}))
	require.False(t, SameColumns(cols, append(cols, ColumnSpec{Name: "extra", Type: TypeInt})))
}

func TestNativeRejectsParameterised(t *testing.T) {
	_, err := Native(TagList)
	require.Error(t, err)
	_, err = Native(Tag(0x00ff))
	require.Error(t, err)
	typ, err := Native(TagUUID)
	require.NoError(t, err)
	require.Equal(t, TypeUUID, typ)
}

func TestValueEqual(t *testing.T) {
	for _, tc := range []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"null", Null(), Value{}, true},
		{"int vs float", Int(1), Float(1), false},
		{"list order matters", List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{"set order ignored", Set(Int(1), Int(2)), Set(Int(2), Int(1)), true},
		{"set multiplicity", Set(Int(1), Int(1)), Set(Int(1), Int(2)), false},
		{"map order ignored", Map(KV(Text("a"), Int(1)), KV(Text("b"), Int(2))), Map(KV(Text("b"), Int(2)), KV(Text("a"), Int(1))), true},
		{"map value differs", Map(KV(Text("a"), Int(1))), Map(KV(Text("a"), Int(2))), false},
		{"named missing equals null", Named(NV("a", Int(1))), Named(NV("a", Int(1)), NV("b", Null())), true},
		{"named differs", Named(NV("a", Int(1))), Named(NV("a", Int(1)), NV("b", Int(0))), false},
		{"bytes", Bytes([]byte("x")), Bytes([]byte("x")), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.equal, Equal(tc.a, tc.b))
			require.Equal(t, tc.equal, Equal(tc.b, tc.a))
		})
	}
}

func TestConstructorsCopy(t *testing.T) {
	raw := []byte{1, 2}
	v := Bytes(raw)
	raw[0] = 9
	require.Equal(t, []byte{1, 2}, v.Bytes())

	items := []Value{Int(1)}
	l := List(items...)
	items[0] = Int(2)
	require.Equal(t, int64(1), l.Items()[0].Int())
}

func TestFromNative(t *testing.T) {
	id := uuid.MustParse("123e4567-e89b-42d3-a456-426614174000")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC)

	for _, tc := range []struct {
		name string
		in   interface{}
		want Value
	}{
		{"nil", nil, Null()},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"uint8", uint8(7), Int(7)},
		{"float32", float32(0.5), Float(0.5)},
		{"string", "x", Text("x")},
		{"bytes", []byte{1}, Bytes([]byte{1})},
		{"nil bytes", []byte(nil), Null()},
		{"time", ts, Int(ts.UnixMilli())},
		{"duration", 90 * time.Second, DurationValue(0, 0, int64(90*time.Second))},
		{"uuid", id, Text(id.String())},
		{"addr", netip.MustParseAddr("10.0.0.1"), Text("10.0.0.1")},
		{"big", big.NewInt(-12), Text("-12")},
		{"decimal", inf.NewDec(1234, 2), Text("12.34")},
		{"slice", []int{1, 2}, List(Int(1), Int(2))},
		{"nil pointer", (*int)(nil), Null()},
		{"string map", map[string]int{"a": 1}, Map(KV(Text("a"), Int(1)))},
		{"yaml map", map[interface{}]interface{}{"a": []interface{}{1, "b"}}, Map(KV(Text("a"), List(Int(1), Text("b"))))},
		{"set", map[string]struct{}{"x": {}, "y": {}}, Set(Text("y"), Text("x"))},
		{"value", Named(NV("f", Int(1))), Named(NV("f", Int(1)))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromNative(tc.in)
			require.NoError(t, err)
			require.True(t, Equal(tc.want, got), "want %s, got %s", tc.want, got)
		})
	}

	_, err := FromNative(struct{}{})
	require.Error(t, err)
	_, err = FromNative(uint64(1 << 63))
	require.Error(t, err)
}

func TestNative(t *testing.T) {
	v := Named(
		NV("id", Int(1)),
		NV("tags", Set(Text("a"))),
		NV("scores", Map(KV(Int(1), Float(0.5)))),
		NV("attrs", Map(KV(Text("k"), Text("v")))),
		NV("missing", Null()),
	)
	require.Equal(t, map[string]interface{}{
		"id":      int64(1),
		"tags":    []interface{}{"a"},
		"scores":  []interface{}{[]interface{}{int64(1), 0.5}},
		"attrs":   map[string]interface{}{"k": "v"},
		"missing": nil,
	}, v.Native())
}

func TestDecimalText(t *testing.T) {
	for _, tc := range []struct {
		in    string
		scale inf.Scale
		out   string
	}{
		{"1.50", 2, "1.50"},
		{"-0.001", 3, "-0.001"},
		{"42", 0, "42"},
		{"4.2E+1", 0, "42"},
		{"42E+2", -2, "42E+2"},
		{"1e-3", 3, "0.001"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			d, err := ParseDecimal(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.scale, d.Scale())
			require.Equal(t, tc.out, FormatDecimal(d))
		})
	}

	for _, bad := range []string{"", "abc", "1.2.3", "1E", "1Ex"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}

	n, err := ParseVarint("+123456789012345678901234567890")
	require.NoError(t, err)
	require.Equal(t, "123456789012345678901234567890", n.String())
	_, err = ParseVarint("1.5")
	require.Error(t, err)
}
