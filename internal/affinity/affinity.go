// Package affinity turns core-affinity hints into CPU masks. Hints are
// advisory: on hosts without distinct performance and efficiency cores, or
// where pinning is unsupported, they resolve to nothing and work runs
// wherever the scheduler puts it.
package affinity

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ciricc/hwexplore/internal/explore"
)

var ErrUnsupported = errors.New("affinity: pinning not supported on this platform")

// Topology lists logical CPUs per core class. Both lists are empty on
// homogeneous hosts.
type Topology struct {
	Performance []int
	Efficiency  []int
}

// Hybrid reports whether the host has two distinct core classes.
func (t Topology) Hybrid() bool {
	return len(t.Performance) > 0 && len(t.Efficiency) > 0
}

// CPUs returns the CPU set for a hint, or nil when the hint cannot be
// honored and should be ignored.
func (t Topology) CPUs(a explore.Affinity) []int {
	if !t.Hybrid() {
		return nil
	}
	switch a {
	case explore.PerformanceHint:
		return slices.Clone(t.Performance)
	case explore.EfficiencyHint:
		return slices.Clone(t.Efficiency)
	}
	return nil
}

// ParseCPUList parses the kernel's cpulist format, e.g. "0-3,8,10-11".
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(part), "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("cpu list %q: %w", s, err)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("cpu list %q: %w", s, err)
			}
		}
		if first < 0 || last < first {
			return nil, fmt.Errorf("cpu list %q: bad range %q", s, part)
		}
		for c := first; c <= last; c++ {
			cpus = append(cpus, c)
		}
	}
	slices.Sort(cpus)
	return slices.Compact(cpus), nil
}
