package ops

import "github.com/ciricc/hwexplore/internal/dataset"

const phredOffset = 33

type baseCounting struct{}

func (baseCounting) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		for _, b := range r.Seq {
			switch b | 0x20 {
			case 'a':
				t.A++
			case 'c':
				t.C++
			case 'g':
				t.G++
			case 't':
				t.T++
			case 'n':
				t.N++
			}
		}
	}
	return t
}

func (baseCounting) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		t.A += int64(countFold(r.Seq, 'a'))
		t.C += int64(countFold(r.Seq, 'c'))
		t.G += int64(countFold(r.Seq, 'g'))
		t.T += int64(countFold(r.Seq, 't'))
		t.N += int64(countFold(r.Seq, 'n'))
	}
	return t
}

type gcContent struct{}

func (gcContent) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		for _, b := range r.Seq {
			switch b | 0x20 {
			case 'g':
				t.G++
			case 'c':
				t.C++
			}
		}
	}
	return t
}

func (gcContent) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		t.G += int64(countFold(r.Seq, 'g'))
		t.C += int64(countFold(r.Seq, 'c'))
	}
	return t
}

type atContent struct{}

func (atContent) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		for _, b := range r.Seq {
			switch b | 0x20 {
			case 'a':
				t.A++
			case 't':
				t.T++
			}
		}
	}
	return t
}

func (atContent) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		t.A += int64(countFold(r.Seq, 'a'))
		t.T += int64(countFold(r.Seq, 't'))
	}
	return t
}

type nContent struct{}

func (nContent) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		for _, b := range r.Seq {
			if b|0x20 == 'n' {
				t.N++
			}
		}
	}
	return t
}

func (nContent) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.Bases += int64(len(r.Seq))
		t.N += int64(countFold(r.Seq, 'n'))
	}
	return t
}

type sequenceLength struct{}

func (sequenceLength) Naive(records []dataset.Record) Tally {
	var t Tally
	for i, r := range records {
		n := int64(len(r.Seq))
		t.Sequences++
		t.Bases += n
		if i == 0 || n < t.MinLength {
			t.MinLength = n
		}
		t.MaxLength = max(t.MaxLength, n)
	}
	return t
}

// Length never looks at content, so there is nothing to vectorize.
func (k sequenceLength) Vector(records []dataset.Record) Tally { return k.Naive(records) }

type qualityAggregation struct{}

func (qualityAggregation) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		t.QualityBases += int64(len(r.Qual))
		for _, q := range r.Qual {
			t.QualitySum += int64(q) - phredOffset
		}
	}
	return t
}

func (qualityAggregation) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		n := int64(len(r.Qual))
		t.Sequences++
		t.QualityBases += n
		t.QualitySum += sumBytes(r.Qual) - phredOffset*n
	}
	return t
}

// qualityFilter keeps reads whose mean Phred score reaches minMean. Reads
// without qualities are counted but neither pass nor fail.
type qualityFilter struct {
	minMean int64
}

func (k qualityFilter) keep(sum, n int64) bool {
	return n > 0 && sum-phredOffset*n >= k.minMean*n
}

func (k qualityFilter) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		if r.Qual == nil {
			continue
		}
		var sum int64
		for _, q := range r.Qual {
			sum += int64(q)
		}
		if k.keep(sum, int64(len(r.Qual))) {
			t.Passed++
		} else {
			t.Filtered++
		}
	}
	return t
}

func (k qualityFilter) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		if r.Qual == nil {
			continue
		}
		if k.keep(sumBytes(r.Qual), int64(len(r.Qual))) {
			t.Passed++
		} else {
			t.Filtered++
		}
	}
	return t
}

type lengthFilter struct {
	minLength int
}

func (k lengthFilter) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		t.Sequences++
		if len(r.Seq) >= k.minLength {
			t.Passed++
		} else {
			t.Filtered++
		}
	}
	return t
}

// complexityScore rates each read by its distinct symbols over the
// maximum possible (four for nucleotides, fewer for very short reads).
type complexityScore struct{}

const (
	lowComplexity  = 0.4
	highComplexity = 0.7
)

func (complexityScore) add(t *Tally, unique, length int) {
	t.Sequences++
	if length == 0 {
		return
	}
	c := float64(unique) / float64(min(length, 4))
	t.ComplexitySum += c
	switch {
	case c < lowComplexity:
		t.LowComplexity++
	case c > highComplexity:
		t.HighComplexity++
	}
}

func (k complexityScore) Naive(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		var seen [256]bool
		unique := 0
		for _, b := range r.Seq {
			if !seen[b] {
				seen[b] = true
				unique++
			}
		}
		k.add(&t, unique, len(r.Seq))
	}
	return t
}

func (k complexityScore) Vector(records []dataset.Record) Tally {
	var t Tally
	for _, r := range records {
		k.add(&t, byteSet(r.Seq), len(r.Seq))
	}
	return t
}

var (
	_ VectorKernel = baseCounting{}
	_ VectorKernel = gcContent{}
	_ VectorKernel = atContent{}
	_ VectorKernel = nContent{}
	_ VectorKernel = sequenceLength{}
	_ VectorKernel = qualityAggregation{}
	_ VectorKernel = qualityFilter{}
	_ Kernel       = lengthFilter{}
	_ VectorKernel = complexityScore{}
)
