//go:build linux

package affinity

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"
)

// sysfs root for hybrid CPU PMUs; Intel exposes cpu_core and cpu_atom.
var sysDevices = "/sys/devices"

// Detect reads the core classes of a hybrid host from sysfs.
func Detect() Topology {
	read := func(name string) []int {
		b, err := os.ReadFile(filepath.Join(sysDevices, name, "cpus"))
		if err != nil {
			return nil
		}
		cpus, err := ParseCPUList(string(b))
		if err != nil {
			return nil
		}
		return cpus
	}
	return Topology{
		Performance: read("cpu_core"),
		Efficiency:  read("cpu_atom"),
	}
}

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to cpus. The returned function restores the previous mask and
// unlocks the thread; it must be called from the same goroutine.
func Pin(cpus []int) (func(), error) {
	if len(cpus) == 0 {
		return func() {}, nil
	}
	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("get affinity: %w", err)
	}
	var set unix.CPUSet
	for _, c := range cpus {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("set affinity %v: %w", cpus, err)
	}
	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
		runtime.UnlockOSThread()
	}, nil
}
