package ops

import (
	"encoding/binary"
	"math/bits"
)

// Word-at-a-time helpers. Every function processes eight bytes per step and
// finishes the tail byte by byte, so results match the scalar loops exactly.

const (
	lo7   = 0x7f7f7f7f7f7f7f7f
	lanes = 0x0101010101010101
	fold  = 0x2020202020202020
)

// zeroBytes returns a word with the high bit set in exactly the lanes of x
// that are zero.
func zeroBytes(x uint64) uint64 {
	t := (x & lo7) + lo7
	return ^(t | x | lo7)
}

// countFold counts bytes equal to the lowercase letter c, ignoring case.
func countFold(b []byte, c byte) int {
	pattern := uint64(c) * lanes
	n := 0
	for len(b) >= 8 {
		w := binary.LittleEndian.Uint64(b) | fold
		n += bits.OnesCount64(zeroBytes(w ^ pattern))
		b = b[8:]
	}
	for _, x := range b {
		if x|0x20 == c {
			n++
		}
	}
	return n
}

// sumBytes adds every byte of b.
func sumBytes(b []byte) int64 {
	const (
		even = 0x00ff00ff00ff00ff
		// four 16-bit lanes hold at most 510 per word, so 128 words fit
		chunk = 128 * 8
	)
	var total int64
	for len(b) >= 8 {
		n := min(len(b), chunk) &^ 7
		var acc uint64
		for i := 0; i < n; i += 8 {
			w := binary.LittleEndian.Uint64(b[i:])
			acc += (w & even) + ((w >> 8) & even)
		}
		total += int64(acc&0xffff + acc>>16&0xffff + acc>>32&0xffff + acc>>48)
		b = b[n:]
	}
	for _, x := range b {
		total += int64(x)
	}
	return total
}

// byteSet marks every distinct byte value of b in a 256-bit set and returns
// how many were seen.
func byteSet(b []byte) int {
	var set [4]uint64
	for _, x := range b {
		set[x>>6] |= 1 << (x & 63)
	}
	return bits.OnesCount64(set[0]) + bits.OnesCount64(set[1]) +
		bits.OnesCount64(set[2]) + bits.OnesCount64(set[3])
}
