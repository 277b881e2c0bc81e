// Package bitmap provides utilities for operating on densely-packed arrays of
// booleans.
package bitmap

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strings"
)

// TODO: this could be more efficient on many architectures if we used larger
//   blocks than 8-bit bytes.
const byteSize = 8

// Select selects a subset of bits from data, according to which bits are set in
// mask.
func Select(data, mask Dense) Dense {
	var d Dense
	for i := 0; i < data.Size(); i++ {
		if !mask.Get(i) {
			continue
		}
		d.AppendBit(data.Get(i))
	}
	return d
}

// Empty returns an empty, dense bit array.
func Empty() Dense {
	return Dense{}
}

// Random returns a bitmap of n uniformly random bits drawn from r.
func Random(r *rand.Rand, n int) Dense {
	buf := make([]byte, BytesFor(n))
	r.Read(buf)
	if off := n % byteSize; off != 0 {
		buf[len(buf)-1] &= 0xFF >> (byteSize - off)
	}
	return NewDense(buf, n)
}

// Cycle returns a bitmap of exactly n bits, built by repeating d from its
// start as often as needed. Cycling an empty bitmap yields n zeros.
func Cycle(d Dense, n int) Dense {
	if d.Size() == 0 {
		return NewDense(nil, n)
	}
	r := Dense{bits: make([]byte, 0, BytesFor(n))}
	for i := 0; i < n; i++ {
		r.AppendBit(d.Get(i % d.Size()))
	}
	return r
}

// FromString converts a string of '1's and '0's to a DenseBitArray.
func FromString(s string) (Dense, error) {
	d := Dense{}
	for _, c := range s {
		switch c {
		case '1':
			d.AppendBit(true)
		case '0':
			d.AppendBit(false)
		case ' ':
			continue
		default:
			return Dense{}, fmt.Errorf("invalid bitmap string rep: %s", s)
		}
	}
	return d, nil
}

// String renders d as a string of '1's and '0's, lowest index first. It is the
// inverse of FromString.
func (d Dense) String() string {
	var sb strings.Builder
	sb.Grow(d.len)
	for i := 0; i < d.len; i++ {
		if d.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Parity returns the overall parity of m, with true corresponding to 1 and
// false to 0.
func Parity(d Dense) bool {
	var sum byte
	for _, b := range d.bits {
		sum ^= b
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the total number of bits set in d.
func CountOnes(d Dense) int {
	var sum int
	for _, b := range d.bits {
		sum += bits.OnesCount8(b)
	}
	return sum
}

// Ones returns the indices of every bit set in d, in ascending order.
func Ones(d Dense) []int {
	var r []int
	for i := 0; i < d.len; i++ {
		if d.Get(i) {
			r = append(r, i)
		}
	}
	return r
}

// Equal returns true iff a and b have the same size and contain the same bits.
func Equal(a, b Dense) bool {
	return a.len == b.len && CountOnes(XOr(a, b)) == 0
}

// BytesFor returns the number of bytes necessary to hold the provided number of
// bits.
func BytesFor(bits int) int {
	return (bits + 8 - 1) / 8
}
