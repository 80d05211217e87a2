package cqltypes

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"gopkg.in/inf.v0"
)

// FormatDecimal renders d as exact base-10 text. A non-negative scale gives
// plain notation ("-12.340"); a negative scale is written with an exponent
// ("12E+3") so the scale survives a round trip through ParseDecimal.
func FormatDecimal(d *inf.Dec) string {
	if d.Scale() >= 0 {
		return d.String()
	}
	return d.UnscaledBig().String() + "E+" + strconv.Itoa(int(-d.Scale()))
}

// ParseDecimal parses plain or exponent notation. The scale is the number of
// fractional digits written, adjusted by the exponent.
func ParseDecimal(s string) (*inf.Dec, error) {
	mant, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant = s[:i]
		e, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal exponent in %q", s)
		}
		exp = int(e)
	}
	d, ok := new(inf.Dec).SetString(mant)
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	scale := int64(d.Scale()) - int64(exp)
	if scale > int64(^uint32(0)>>1) || scale < -int64(^uint32(0)>>1)-1 {
		return nil, fmt.Errorf("decimal scale out of range in %q", s)
	}
	return d.SetScale(inf.Scale(scale)), nil
}

// ParseVarint parses an optionally signed base-10 integer of any length.
func ParseVarint(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "+"), 10)
	if !ok {
		return nil, fmt.Errorf("invalid varint %q", s)
	}
	return n, nil
}
