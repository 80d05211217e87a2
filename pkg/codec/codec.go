// Package codec converts between dynamic values and the binary form of the
// native protocol's column types.
//
// A nil []byte is the protocol's NULL marker. It is produced for a null
// Value of any type and decodes back to a null Value; an empty but non-nil
// payload is a zero-length value.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"net/netip"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/grafana/cqlexec/pkg/cqlerrors"
	"github.com/grafana/cqlexec/pkg/cqltypes"
)

const (
	maxTimeNanos = 86399999999999
	dateEpoch    = 1 << 31
)

// Encode converts v into the binary form of t.
func Encode(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	if t.Tag() == cqltypes.TagCounter {
		return nil, cqlerrors.UnsupportedOperationf("counter columns can only be changed by increments, not assigned")
	}
	if v.IsNull() {
		return nil, nil
	}

	switch t.Tag() {
	case cqltypes.TagBoolean:
		if v.Kind() != cqltypes.KindBool {
			return nil, mismatch(v, t)
		}
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case cqltypes.TagTinyInt:
		n, err := intIn(v, t, math.MinInt8, math.MaxInt8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(n)}, nil
	case cqltypes.TagSmallInt:
		n, err := intIn(v, t, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint16(nil, uint16(n)), nil
	case cqltypes.TagInt:
		n, err := intIn(v, t, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n)), nil
	case cqltypes.TagBigInt, cqltypes.TagTimestamp:
		n, err := intIn(v, t, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint64(nil, uint64(n)), nil
	case cqltypes.TagDate:
		n, err := intIn(v, t, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n+dateEpoch)), nil
	case cqltypes.TagTime:
		n, err := intIn(v, t, 0, maxTimeNanos)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint64(nil, uint64(n)), nil

	case cqltypes.TagFloat:
		f, err := floatOf(v, t)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, cqlerrors.Rangef("%g overflows %s", f, t)
		}
		return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(f))), nil
	case cqltypes.TagDouble:
		f, err := floatOf(v, t)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(f)), nil

	case cqltypes.TagText:
		if v.Kind() != cqltypes.KindText {
			return nil, mismatch(v, t)
		}
		if !utf8.ValidString(v.Text()) {
			return nil, cqlerrors.TypeMismatchf("text value is not valid UTF-8")
		}
		return append([]byte{}, v.Text()...), nil
	case cqltypes.TagAscii:
		if v.Kind() != cqltypes.KindText {
			return nil, mismatch(v, t)
		}
		s := v.Text()
		for i := 0; i < len(s); i++ {
			if s[i] >= utf8.RuneSelf {
				return nil, cqlerrors.TypeMismatchf("ascii value has non-ASCII byte 0x%02x at offset %d", s[i], i)
			}
		}
		return append([]byte{}, s...), nil
	case cqltypes.TagBlob:
		if v.Kind() != cqltypes.KindBytes {
			return nil, mismatch(v, t)
		}
		return append([]byte{}, v.Bytes()...), nil

	case cqltypes.TagDecimal:
		return encodeDecimal(v, t)
	case cqltypes.TagVarint:
		return encodeVarint(v, t)
	case cqltypes.TagUUID, cqltypes.TagTimeUUID:
		return encodeUUID(v, t)
	case cqltypes.TagInet:
		return encodeInet(v, t)
	case cqltypes.TagDuration:
		return encodeDuration(v, t)

	case cqltypes.TagList, cqltypes.TagSet:
		return encodeSequence(v, t)
	case cqltypes.TagMap:
		return encodeMap(v, t)
	case cqltypes.TagTuple:
		return encodeTuple(v, t)
	case cqltypes.TagUDT:
		return encodeUDT(v, t)
	}
	return nil, cqlerrors.UnsupportedOperationf("cannot encode type %s", t)
}

// EncodeCounterDelta encodes the signed amount a counter update adds.
func EncodeCounterDelta(v cqltypes.Value) ([]byte, error) {
	if v.IsNull() {
		return nil, cqlerrors.UnsupportedOperationf("counter increment cannot be null")
	}
	if v.Kind() != cqltypes.KindInt {
		return nil, mismatch(v, cqltypes.TypeCounter)
	}
	return binary.BigEndian.AppendUint64(nil, uint64(v.Int())), nil
}

// Decode converts the binary form of t back into a Value.
func Decode(b []byte, t cqltypes.WireType) (cqltypes.Value, error) {
	if b == nil {
		return cqltypes.Null(), nil
	}
	switch t.Tag() {
	case cqltypes.TagText, cqltypes.TagAscii:
		return cqltypes.Text(string(b)), nil
	case cqltypes.TagBlob:
		return cqltypes.Bytes(b), nil
	case cqltypes.TagList, cqltypes.TagSet:
		return decodeSequence(b, t)
	case cqltypes.TagMap:
		return decodeMap(b, t)
	case cqltypes.TagTuple:
		return decodeTuple(b, t)
	case cqltypes.TagUDT:
		return decodeUDT(b, t)
	}

	// A zero-length payload of a fixed size type is the protocol's empty value.
	if len(b) == 0 {
		return cqltypes.Null(), nil
	}

	switch t.Tag() {
	case cqltypes.TagBoolean:
		if err := size(b, 1, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Bool(b[0] != 0), nil
	case cqltypes.TagTinyInt:
		if err := size(b, 1, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Int(int64(int8(b[0]))), nil
	case cqltypes.TagSmallInt:
		if err := size(b, 2, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Int(int64(int16(binary.BigEndian.Uint16(b)))), nil
	case cqltypes.TagInt:
		if err := size(b, 4, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Int(int64(int32(binary.BigEndian.Uint32(b)))), nil
	case cqltypes.TagBigInt, cqltypes.TagCounter, cqltypes.TagTimestamp, cqltypes.TagTime:
		if err := size(b, 8, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Int(int64(binary.BigEndian.Uint64(b))), nil
	case cqltypes.TagDate:
		if err := size(b, 4, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Int(int64(binary.BigEndian.Uint32(b)) - dateEpoch), nil
	case cqltypes.TagFloat:
		if err := size(b, 4, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Float(float64(math.Float32frombits(binary.BigEndian.Uint32(b)))), nil
	case cqltypes.TagDouble:
		if err := size(b, 8, t); err != nil {
			return cqltypes.Value{}, err
		}
		return cqltypes.Float(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case cqltypes.TagDecimal:
		if len(b) < 5 {
			return cqltypes.Value{}, cqlerrors.TypeMismatchf("decimal payload of %d bytes is too short", len(b))
		}
		return cqltypes.Text(cqltypes.FormatDecimal(decDecimal(b))), nil
	case cqltypes.TagVarint:
		return cqltypes.Text(decBigInt2C(b).String()), nil
	case cqltypes.TagUUID, cqltypes.TagTimeUUID:
		u, err := uuid.FromBytes(b)
		if err != nil {
			return cqltypes.Value{}, cqlerrors.TypeMismatchf("%s payload: %v", t, err)
		}
		return cqltypes.Text(u.String()), nil
	case cqltypes.TagInet:
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return cqltypes.Value{}, cqlerrors.TypeMismatchf("inet payload must be 4 or 16 bytes, got %d", len(b))
		}
		return cqltypes.Text(addr.String()), nil
	case cqltypes.TagDuration:
		months, next, ok1 := decVint(b, 0)
		days, next, ok2 := decVint(b, next)
		nanos, next, ok3 := decVint(b, next)
		if !ok1 || !ok2 || !ok3 || next != len(b) {
			return cqltypes.Value{}, cqlerrors.TypeMismatchf("malformed duration payload")
		}
		if months > math.MaxInt32 || months < math.MinInt32 || days > math.MaxInt32 || days < math.MinInt32 {
			return cqltypes.Value{}, cqlerrors.Rangef("duration months/days overflow int32")
		}
		return cqltypes.DurationValue(int32(months), int32(days), nanos), nil
	}
	return cqltypes.Value{}, cqlerrors.UnsupportedOperationf("cannot decode type %s", t)
}

func mismatch(v cqltypes.Value, t cqltypes.WireType) error {
	return cqlerrors.TypeMismatchf("cannot use %s value as %s", v.Kind(), t)
}

func size(b []byte, n int, t cqltypes.WireType) error {
	if len(b) != n {
		return cqlerrors.TypeMismatchf("%s payload must be %d bytes, got %d", t, n, len(b))
	}
	return nil
}

func intIn(v cqltypes.Value, t cqltypes.WireType, lo, hi int64) (int64, error) {
	if v.Kind() != cqltypes.KindInt {
		return 0, mismatch(v, t)
	}
	n := v.Int()
	if n < lo || n > hi {
		return 0, cqlerrors.Rangef("%d out of range for %s [%d, %d]", n, t, lo, hi)
	}
	return n, nil
}

func floatOf(v cqltypes.Value, t cqltypes.WireType) (float64, error) {
	switch v.Kind() {
	case cqltypes.KindFloat:
		return v.Float(), nil
	case cqltypes.KindInt:
		return float64(v.Int()), nil
	}
	return 0, mismatch(v, t)
}

func encodeDecimal(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	var text string
	switch v.Kind() {
	case cqltypes.KindText:
		text = v.Text()
	case cqltypes.KindInt:
		text = strconv.FormatInt(v.Int(), 10)
	case cqltypes.KindFloat:
		if math.IsInf(v.Float(), 0) || math.IsNaN(v.Float()) {
			return nil, cqlerrors.Rangef("%g has no decimal representation", v.Float())
		}
		text = strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return nil, mismatch(v, t)
	}
	d, err := cqltypes.ParseDecimal(text)
	if err != nil {
		return nil, cqlerrors.TypeMismatchf("%v", err)
	}
	return encDecimal(d), nil
}

func encodeVarint(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	switch v.Kind() {
	case cqltypes.KindInt:
		return encBigInt2C(big.NewInt(v.Int())), nil
	case cqltypes.KindText:
		n, err := cqltypes.ParseVarint(v.Text())
		if err != nil {
			return nil, cqlerrors.TypeMismatchf("%v", err)
		}
		return encBigInt2C(n), nil
	}
	return nil, mismatch(v, t)
}

func encodeUUID(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	var u uuid.UUID
	switch v.Kind() {
	case cqltypes.KindText:
		parsed, err := uuid.Parse(v.Text())
		if err != nil {
			return nil, cqlerrors.TypeMismatchf("invalid %s %q: %v", t, v.Text(), err)
		}
		u = parsed
	case cqltypes.KindBytes:
		parsed, err := uuid.FromBytes(v.Bytes())
		if err != nil {
			return nil, cqlerrors.TypeMismatchf("invalid %s: %v", t, err)
		}
		u = parsed
	default:
		return nil, mismatch(v, t)
	}
	if t.Tag() == cqltypes.TagTimeUUID && u.Version() != 1 {
		return nil, cqlerrors.TypeMismatchf("timeuuid must be a version 1 uuid, got version %d", u.Version())
	}
	return u[:], nil
}

func encodeInet(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	switch v.Kind() {
	case cqltypes.KindText:
		addr, err := netip.ParseAddr(v.Text())
		if err != nil {
			return nil, cqlerrors.TypeMismatchf("invalid inet %q: %v", v.Text(), err)
		}
		if addr.Zone() != "" {
			return nil, cqlerrors.TypeMismatchf("inet %q cannot carry a zone", v.Text())
		}
		return addr.AsSlice(), nil
	case cqltypes.KindBytes:
		if n := len(v.Bytes()); n != 4 && n != 16 {
			return nil, cqlerrors.TypeMismatchf("inet must be 4 or 16 bytes, got %d", n)
		}
		return append([]byte{}, v.Bytes()...), nil
	}
	return nil, mismatch(v, t)
}

func encodeDuration(v cqltypes.Value, t cqltypes.WireType) ([]byte, error) {
	var months, days, nanos int64
	switch v.Kind() {
	case cqltypes.KindInt:
		nanos = v.Int()
	case cqltypes.KindNamed:
		for _, f := range v.Fields() {
			if f.Value.IsNull() {
				continue
			}
			if f.Value.Kind() != cqltypes.KindInt {
				return nil, cqlerrors.TypeMismatchf("duration %s must be an integer, got %s", f.Name, f.Value.Kind())
			}
			switch f.Name {
			case "months":
				months = f.Value.Int()
			case "days":
				days = f.Value.Int()
			case "nanoseconds":
				nanos = f.Value.Int()
			default:
				return nil, cqlerrors.TypeMismatchf("unknown duration field %q", f.Name)
			}
		}
	default:
		return nil, mismatch(v, t)
	}
	if months > math.MaxInt32 || months < math.MinInt32 {
		return nil, cqlerrors.Rangef("duration months %d overflows int32", months)
	}
	if days > math.MaxInt32 || days < math.MinInt32 {
		return nil, cqlerrors.Rangef("duration days %d overflows int32", days)
	}
	buf := encVint(months)
	buf = append(buf, encVint(days)...)
	return append(buf, encVint(nanos)...), nil
}

// within prefixes the message of a nested codec error with its location,
// keeping the error kind.
func within(err error, format string, args ...interface{}) error {
	e := cqlerrors.As(err)
	if e == nil {
		return err
	}
	cp := *e
	cp.Msg = fmt.Sprintf(format, args...) + ": " + e.Msg
	return &cp
}
