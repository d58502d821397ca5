//go:build !linux

package affinity

func Detect() Topology { return Topology{} }

func Pin(cpus []int) (func(), error) {
	if len(cpus) == 0 {
		return func() {}, nil
	}
	return nil, ErrUnsupported
}
