package codec

import (
	"encoding/binary"
	"math/big"
	"math/bits"

	"gopkg.in/inf.v0"
)

var bigOne = big.NewInt(1)

// encBigInt2C returns the minimal big-endian two's complement form of n.
func encBigInt2C(n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return []byte{0}
	case 1:
		b := n.Bytes()
		if b[0]&0x80 > 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	length := uint(n.BitLen()/8+1) * 8
	b := new(big.Int).Add(n, new(big.Int).Lsh(bigOne, length)).Bytes()
	// A most significant bit on a byte boundary yields a redundant 0xff.
	if len(b) >= 2 && b[0] == 0xff && b[1]&0x80 != 0 {
		b = b[1:]
	}
	return b
}

func decBigInt2C(data []byte) *big.Int {
	n := new(big.Int).SetBytes(data)
	if len(data) > 0 && data[0]&0x80 > 0 {
		n.Sub(n, new(big.Int).Lsh(bigOne, uint(len(data))*8))
	}
	return n
}

func encDecimal(d *inf.Dec) []byte {
	unscaled := encBigInt2C(d.UnscaledBig())
	buf := make([]byte, 4, 4+len(unscaled))
	binary.BigEndian.PutUint32(buf, uint32(int32(d.Scale())))
	return append(buf, unscaled...)
}

func decDecimal(data []byte) *inf.Dec {
	scale := int32(binary.BigEndian.Uint32(data[:4]))
	return inf.NewDecBig(decBigInt2C(data[4:]), inf.Scale(scale))
}

func encIntZigZag(n int64) uint64 {
	return uint64((n >> 63) ^ (n << 1))
}

func decIntZigZag(n uint64) int64 {
	return int64((n >> 1) ^ -(n & 1))
}

// encVint writes the protocol's variable length integer: the count of
// leading one bits in the first byte is the number of extra bytes.
func encVint(v int64) []byte {
	enc := encIntZigZag(v)
	numBytes := (639 - bits.LeadingZeros64(enc)*9) >> 6
	if numBytes <= 1 {
		return []byte{byte(enc)}
	}
	extra := numBytes - 1
	buf := make([]byte, numBytes)
	for i := extra; i >= 0; i-- {
		buf[i] = byte(enc)
		enc >>= 8
	}
	buf[0] |= byte(^(0xff >> uint(extra)))
	return buf
}

func decVint(data []byte, start int) (int64, int, bool) {
	if start >= len(data) {
		return 0, 0, false
	}
	first := data[start]
	if first&0x80 == 0 {
		return decIntZigZag(uint64(first)), start + 1, true
	}
	numBytes := bits.LeadingZeros32(uint32(^first)) - 24
	ret := uint64(first & (0xff >> uint(numBytes)))
	if len(data) < start+numBytes+1 {
		return 0, 0, false
	}
	for i := start; i < start+numBytes; i++ {
		ret <<= 8
		ret |= uint64(data[i+1])
	}
	return decIntZigZag(ret), start + numBytes + 1, true
}
