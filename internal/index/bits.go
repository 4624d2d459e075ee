package index

import "math/bits"

// Bits is a packed bit vector; bit p lives in byte p/8 at mask 1<<(p%8).
// This is the layout stored with precomputed links.
type Bits []byte

// NewBits returns a zeroed vector able to hold n bits.
func NewBits(n int) Bits {
	return make(Bits, (n+7)/8)
}

// Set sets bit p, growing the vector if needed.
func (b *Bits) Set(p int) {
	i := p / 8
	if i >= len(*b) {
		grown := make(Bits, i+1)
		copy(grown, *b)
		*b = grown
	}
	(*b)[i] |= 1 << (p % 8)
}

// Get reports whether bit p is set. Positions past the end read as unset.
func (b Bits) Get(p int) bool {
	i := p / 8
	if p < 0 || i >= len(b) {
		return false
	}
	return b[i]&(1<<(p%8)) != 0
}

// And returns the bitwise intersection of b and o.
func (b Bits) And(o Bits) Bits {
	n := min(len(b), len(o))
	out := make(Bits, n)
	for i := range n {
		out[i] = b[i] & o[i]
	}
	return out
}

// Count returns the number of set bits.
func (b Bits) Count() int {
	n := 0
	for _, x := range b {
		n += bits.OnesCount8(x)
	}
	return n
}
