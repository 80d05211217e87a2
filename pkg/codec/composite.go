package codec

import (
	"encoding/binary"
	"math"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

func appendInt32(buf []byte, n int) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(int32(n)))
}

// appendValue writes a length prefixed value; nil is written as length -1.
func appendValue(buf, b []byte) []byte {
	if b == nil {
		return appendInt32(buf, -1)
	}
	buf = appendInt32(buf, len(b))
	return append(buf, b...)
}

func collectionSize(n int) error {
	if n > math.MaxInt32 {
		return cqlerrors.Rangef("collection of %d elements is too large", n)
	}
	return nil
}

func encodeSequence(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	if v.Kind() != cqltypes.KindList && v.Kind() != cqltypes.KindSet {
		return nil, mismatch(v, t)
	}
	items := v.Items()
	if err := collectionSize(len(items)); err != nil {
		return nil, err
	}
	if t.Tag() == cqltypes.TagSet {
		for i := range items {
			for j := 0; j < i; j++ {
				if cqltypes.Equal(items[i], items[j]) {
					return nil, cqlerrors.TypeMismatchf("duplicate set element %s", items[i])
				}
			}
		}
	}

	buf := appendInt32(nil, len(items))
	for i, it := range items {
		if it.IsNull() {
			return nil, cqlerrors.TypeMismatchf("%s element %d is null", t.Tag(), i)
		}
		b, err := Encode(it, t.Elem())
		if err != nil {
			return nil, within(err, "%s element %d", t.Tag(), i)
		}
		buf = appendValue(buf, b)
	}
	return buf, nil
}

func encodeMap(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	var pairs []cqltypes.Pair
	switch v.Kind() {
	case cqltypes.KindMap:
		pairs = v.Pairs()
	case cqltypes.KindNamed:
		for _, f := range v.Fields() {
			pairs = append(pairs, cqltypes.KV(cqltypes.Text(f.Name), f.Value))
		}
	default:
		return nil, mismatch(v, t)
	}
	if err := collectionSize(len(pairs)); err != nil {
		return nil, err
	}
	for i := range pairs {
		for j := 0; j < i; j++ {
			if cqltypes.Equal(pairs[i].Key, pairs[j].Key) {
				return nil, cqlerrors.TypeMismatchf("duplicate map key %s", pairs[i].Key)
			}
		}
	}

	buf := appendInt32(nil, len(pairs))
	for _, p := range pairs {
		if p.Key.IsNull() || p.Value.IsNull() {
			return nil, cqlerrors.TypeMismatchf("map entry %s has a null key or value", p.Key)
		}
		kb, err := Encode(p.Key, t.Key())
		if err != nil {
			return nil, within(err, "map key %s", p.Key)
		}
		vb, err := Encode(p.Value, t.Elem())
		if err != nil {
			return nil, within(err, "map value for key %s", p.Key)
		}
		buf = appendValue(buf, kb)
		buf = appendValue(buf, vb)
	}
	return buf, nil
}

func encodeTuple(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	if v.Kind() != cqltypes.KindList {
		return nil, mismatch(v, t)
	}
	elems := t.Elems()
	items := v.Items()
	if len(items) != len(elems) {
		return nil, cqlerrors.TypeMismatchf("%s needs %d elements, got %d", t, len(elems), len(items))
	}
	var buf []byte
	for i, it := range items {
		b, err := Encode(it, elems[i])
		if err != nil {
			return nil, within(err, "tuple element %d", i)
		}
		buf = appendValue(buf, b)
	}
	if buf == nil {
		buf = []byte{}
	}
	return buf, nil
}

func encodeUDT(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	fields := t.Fields()
	if len(fields) == 0 {
		return nil, cqlerrors.UnsupportedOperationf("fields of user type %s are not known", t)
	}

	lookup := map[string]cqltypes.Value{}
	switch v.Kind() {
	case cqltypes.KindNamed:
		for _, f := range v.Fields() {
			lookup[f.Name] = f.Value
		}
	case cqltypes.KindMap:
		for _, p := range v.Pairs() {
			if p.Key.Kind() != cqltypes.KindText {
				return nil, cqlerrors.TypeMismatchf("user type %s field names must be text, got %s", t, p.Key.Kind())
			}
			lookup[p.Key.Text()] = p.Value
		}
	default:
		return nil, mismatch(v, t)
	}

	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}
	for name := range lookup {
		if _, ok := known[name]; !ok {
			return nil, cqlerrors.TypeMismatchf("user type %s has no field %q", t, name)
		}
	}

	var buf []byte
	for _, f := range fields {
		b, err := Encode(lookup[f.Name], f.Type)
		if err != nil {
			return nil, within(err, "field %s", f.Name)
		}
		buf = appendValue(buf, b)
	}
	return buf, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) done() bool { return r.pos >= len(r.data) }

func (r *reader) int32() (int, bool) {
	if len(r.data)-r.pos < 4 {
		return 0, false
	}
	n := int(int32(binary.BigEndian.Uint32(r.data[r.pos:])))
	r.pos += 4
	return n, true
}

// value reads a length prefixed value; a negative length is NULL.
func (r *reader) value() ([]byte, bool) {
	n, ok := r.int32()
	if !ok {
		return nil, false
	}
	if n < 0 {
		return nil, true
	}
	if len(r.data)-r.pos < n {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, true
}

func truncated(t cqltypes.WireType) error {
	return cqlerrors.TypeMismatchf("truncated %s payload", t)
}

func decodeCount(r *reader, t cqltypes.WireType) (int, error) {
	n, ok := r.int32()
	if !ok || n < 0 {
		return 0, truncated(t)
	}
	// Each element needs at least its 4 byte length.
	if n > (len(r.data)-r.pos)/4 {
		return 0, truncated(t)
	}
	return n, nil
}

func decodeSequence(b []byte, t cqltypes.WireType) (cqltypes.Value, error) {
	if len(b) == 0 {
		if t.Tag() == cqltypes.TagSet {
			return cqltypes.Set(), nil
		}
		return cqltypes.List(), nil
	}
	r := &reader{data: b}
	n, err := decodeCount(r, t)
	if err != nil {
		return cqltypes.Value{}, err
	}
	items := make([]cqltypes.Value, n)
	for i := range items {
		eb, ok := r.value()
		if !ok {
			return cqltypes.Value{}, truncated(t)
		}
		it, err := Decode(eb, t.Elem())
		if err != nil {
			return cqltypes.Value{}, within(err, "%s element %d", t.Tag(), i)
		}
		items[i] = it
	}
	if t.Tag() == cqltypes.TagSet {
		return cqltypes.Set(items...), nil
	}
	return cqltypes.List(items...), nil
}

func decodeMap(b []byte, t cqltypes.WireType) (cqltypes.Value, error) {
	if len(b) == 0 {
		return cqltypes.Map(), nil
	}
	r := &reader{data: b}
	n, err := decodeCount(r, t)
	if err != nil {
		return cqltypes.Value{}, err
	}
	pairs := make([]cqltypes.Pair, n)
	for i := range pairs {
		kb, ok := r.value()
		if !ok {
			return cqltypes.Value{}, truncated(t)
		}
		vb, ok := r.value()
		if !ok {
			return cqltypes.Value{}, truncated(t)
		}
		k, err := Decode(kb, t.Key())
		if err != nil {
			return cqltypes.Value{}, within(err, "map key %d", i)
		}
		v, err := Decode(vb, t.Elem())
		if err != nil {
			return cqltypes.Value{}, within(err, "map value %d", i)
		}
		pairs[i] = cqltypes.KV(k, v)
	}
	return cqltypes.Map(pairs...), nil
}

func decodeTuple(b []byte, t cqltypes.WireType) (cqltypes.Value, error) {
	r := &reader{data: b}
	elems := t.Elems()
	items := make([]cqltypes.Value, len(elems))
	for i, et := range elems {
		eb, ok := r.value()
		if !ok {
			return cqltypes.Value{}, truncated(t)
		}
		it, err := Decode(eb, et)
		if err != nil {
			return cqltypes.Value{}, within(err, "tuple element %d", i)
		}
		items[i] = it
	}
	return cqltypes.List(items...), nil
}

// decodeUDT tolerates payloads written before trailing fields were added to
// the type: fields past the end of the payload decode to null.
func decodeUDT(b []byte, t cqltypes.WireType) (cqltypes.Value, error) {
	fields := t.Fields()
	if len(fields) == 0 {
		return cqltypes.Value{}, cqlerrors.UnsupportedOperationf("fields of user type %s are not known", t)
	}
	r := &reader{data: b}
	out := make([]cqltypes.NamedValue, len(fields))
	for i, f := range fields {
		out[i] = cqltypes.NV(f.Name, cqltypes.Null())
		if r.done() {
			continue
		}
		fb, ok := r.value()
		if !ok {
			return cqltypes.Value{}, truncated(t)
		}
		fv, err := Decode(fb, f.Type)
		if err != nil {
			return cqltypes.Value{}, within(err, "field %s", f.Name)
		}
		out[i].Value = fv
	}
	return cqltypes.Named(out...), nil
}
