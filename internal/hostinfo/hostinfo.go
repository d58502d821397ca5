// Package hostinfo captures the host a batch runs on, so reports from
// different machines can be told apart.
package hostinfo

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/ciricc/hwexplore/internal/affinity"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type Env struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform,omitempty"`
	Kernel        string  `json:"kernel,omitempty"`
	Arch          string  `json:"arch"`
	CPUModel      string  `json:"cpu_model"`
	CPUNumLogical int     `json:"cpu_num_logical"`
	CPUNumCores   int     `json:"cpu_num_cores"`
	PCores        int     `json:"p_cores,omitempty"`
	ECores        int     `json:"e_cores,omitempty"`
	TotalRAMMB    float64 `json:"total_ram_mb"`
	GPUs          []GPU   `json:"gpus,omitempty"`
}

// HasGPU reports whether at least one usable GPU was found.
func (e Env) HasGPU() bool { return len(e.GPUs) > 0 }

// Collect gathers what it can. Each probe is best effort: failures are
// logged and leave the matching fields at their fallback values.
func Collect(ctx context.Context, log *slog.Logger) Env {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	env := Env{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUModel:      runtime.GOARCH + " CPU",
		CPUNumLogical: runtime.NumCPU(),
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		env.Hostname = hi.Hostname
		env.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
		env.Kernel = hi.KernelVersion
	} else {
		log.DebugContext(ctx, "host info unavailable", "error", err)
	}

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		log.DebugContext(ctx, "cpu info unavailable", "error", err)
	} else if len(infos) > 0 && strings.TrimSpace(infos[0].ModelName) != "" {
		env.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		env.CPUNumCores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		env.TotalRAMMB = float64(vm.Total) / (1 << 20)
	} else {
		log.DebugContext(ctx, "memory info unavailable", "error", err)
	}

	topo := affinity.Detect()
	env.PCores, env.ECores = len(topo.Performance), len(topo.Efficiency)

	gpus, err := sampleNvidiaSMI(ctx)
	if err != nil {
		log.WarnContext(ctx, "gpu discovery failed", "error", err)
	}
	env.GPUs = gpus

	return env
}
