package cqltypes

import (
	"fmt"
	"math"
	"math/big"
	"net"
	"net/netip"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"
)

// FromNative converts a plain Go value into a Value. Besides the basic
// kinds it understands time.Time (timestamp milliseconds), time.Duration,
// uuid.UUID, IP addresses, *big.Int and *inf.Dec (exact text), slices and
// arrays (sequences), maps (mappings, including the map[interface{}]interface{}
// produced by yaml) and map[T]struct{} (sets).
func FromNative(x interface{}) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Null(), nil
		}
		return *v, nil
	case []byte:
		if v == nil {
			return Null(), nil
		}
		return Bytes(v), nil
	case time.Time:
		return Int(v.UnixMilli()), nil
	case time.Duration:
		return DurationValue(0, 0, int64(v)), nil
	case uuid.UUID:
		return Text(v.String()), nil
	case net.IP:
		if v == nil {
			return Null(), nil
		}
		return Text(v.String()), nil
	case netip.Addr:
		return Text(v.String()), nil
	case *big.Int:
		if v == nil {
			return Null(), nil
		}
		return Text(v.String()), nil
	case *inf.Dec:
		if v == nil {
			return Null(), nil
		}
		return Text(FormatDecimal(v)), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromNative(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			it, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = it
		}
		return Value{kind: KindList, items: items}, nil
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromMap(rv)
	}
	return Value{}, fmt.Errorf("unsupported host type %s", rv.Type())
}

var emptyStruct = reflect.TypeOf(struct{}{})

func fromMap(rv reflect.Value) (Value, error) {
	keys := rv.MapKeys()
	if rv.Type().Elem() == emptyStruct {
		items := make([]Value, 0, len(keys))
		for _, k := range keys {
			it, err := FromNative(k.Interface())
			if err != nil {
				return Value{}, err
			}
			items = append(items, it)
		}
		sortValues(items)
		return Value{kind: KindSet, items: items}, nil
	}
	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		kv, err := FromNative(k.Interface())
		if err != nil {
			return Value{}, err
		}
		vv, err := FromNative(rv.MapIndex(k).Interface())
		if err != nil {
			return Value{}, err
		}
		pairs = append(pairs, Pair{Key: kv, Value: vv})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Key.String() < pairs[j].Key.String() })
	return Value{kind: KindMap, pairs: pairs}, nil
}

// Go map iteration is random; sorting keeps conversions deterministic.
func sortValues(vs []Value) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].String() < vs[j].String() })
}

// DurationValue builds the named mapping used for duration columns.
func DurationValue(months, days int32, nanoseconds int64) Value {
	return Named(
		NV("months", Int(int64(months))),
		NV("days", Int(int64(days))),
		NV("nanoseconds", Int(nanoseconds)),
	)
}
