package dataset

import (
	"fmt"
	"math/rand/v2"
)

const (
	phredOffset = 33
	// roughly one base in a hundred is an N
	nRate = 0.01
)

var bases = [4]byte{'A', 'C', 'G', 'T'}

// Generate builds n reads of the given length. The output depends only on
// the arguments.
func Generate(n, length int, seed uint64) []Record {
	rng := rand.New(rand.NewPCG(seed, uint64(n)))
	out := make([]Record, n)
	for i := range out {
		seq := make([]byte, length)
		qual := make([]byte, length)
		// quality drifts down along the read like a real sequencer
		top := 30 + rng.IntN(11)
		for j := range seq {
			if rng.Float64() < nRate {
				seq[j] = 'N'
				qual[j] = phredOffset + 2
				continue
			}
			seq[j] = bases[rng.IntN(len(bases))]
			q := top - j*15/length - rng.IntN(6)
			qual[j] = byte(phredOffset + max(q, 2))
		}
		out[i] = Record{ID: fmt.Sprintf("read_%d", i), Seq: seq, Qual: qual}
	}
	return out
}
