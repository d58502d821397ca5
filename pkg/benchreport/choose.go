package benchreport

import (
	"cmp"
	"slices"

	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/samber/lo"
)

// Choose picks the fastest measured row per (operation, scale). Equal
// throughputs prefer fewer threads, then the default affinity. The result
// is ordered by operation, then scale size.
func Choose(rows []Row) []Best {
	measured := lo.Filter(rows, func(r Row, _ int) bool { return r.Measured() })
	groups := lo.GroupBy(measured, func(r Row) [2]string { return [2]string{r.Operation, r.Scale} })

	out := make([]Best, 0, len(groups))
	sizes := make(map[[2]string]int, len(groups))
	for key, g := range groups {
		best := slices.MinFunc(g, rank)
		out = append(out, Best{
			Operation:  best.Operation,
			Scale:      best.Scale,
			ConfigName: best.ConfigName,
			Throughput: best.Throughput,
			Speedup:    best.Speedup,
		})
		sizes[key] = best.NumSequences
	}
	slices.SortFunc(out, func(a, b Best) int {
		return cmp.Or(
			cmp.Compare(a.Operation, b.Operation),
			cmp.Compare(sizes[[2]string{a.Operation, a.Scale}], sizes[[2]string{b.Operation, b.Scale}]),
			cmp.Compare(a.Scale, b.Scale),
		)
	})
	return out
}

// rank orders rows best first.
func rank(a, b Row) int {
	return cmp.Or(
		cmp.Compare(b.Throughput, a.Throughput),
		cmp.Compare(a.Threads, b.Threads),
		cmp.Compare(affinityRank(a), affinityRank(b)),
		cmp.Compare(a.ConfigName, b.ConfigName),
	)
}

func affinityRank(r Row) int {
	if r.Affinity == explore.DefaultAffinity.String() {
		return 0
	}
	return 1
}
