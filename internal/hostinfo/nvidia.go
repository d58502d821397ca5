package hostinfo

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// GPU describes one device reported by nvidia-smi.
type GPU struct {
	Name        string  `json:"name"`
	Index       int     `json:"index"`
	Driver      string  `json:"driver,omitempty"`
	UtilPercent int     `json:"util_percent"`
	MemUsedMB   float64 `json:"mem_used_mb"`
	MemTotalMB  float64 `json:"mem_total_mb"`
	PowerWatt   float64 `json:"power_watt"`
	SMClockMHz  int     `json:"sm_clock_mhz"`
}

// subset of `nvidia-smi -x -q`
type smiLog struct {
	XMLName       xml.Name `xml:"nvidia_smi_log"`
	DriverVersion string   `xml:"driver_version"`
	GPUs          []smiGPU `xml:"gpu"`
}

type smiGPU struct {
	ProductName string `xml:"product_name"`
	MinorNumber string `xml:"minor_number"`
	Util        struct {
		GPU string `xml:"gpu_util"`
	} `xml:"utilization"`
	FBMem struct {
		Total string `xml:"total"`
		Used  string `xml:"used"`
	} `xml:"fb_memory_usage"`
	Power struct {
		Draw string `xml:"power_draw"`
	} `xml:"power_readings"`
	Clocks struct {
		SM string `xml:"sm_clock"`
	} `xml:"clocks"`
}

var nvidiaSMI = "nvidia-smi"

func hasNvidiaSMI() bool {
	_, err := exec.LookPath(nvidiaSMI)
	return err == nil
}

// leadingNumber reads the number at the start of values like "66 %",
// "1024 MiB" or "35.20 W". Unparseable values ("N/A") read as zero.
func leadingNumber(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	num := strings.TrimRight(fields[0], "%WMHziB")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseNvidiaSMIXML decodes every GPU in an nvidia-smi XML dump.
func parseNvidiaSMIXML(r io.Reader) ([]GPU, error) {
	var log smiLog
	if err := xml.NewDecoder(r).Decode(&log); err != nil {
		return nil, fmt.Errorf("decode nvidia-smi xml: %w", err)
	}
	out := make([]GPU, 0, len(log.GPUs))
	for i, g := range log.GPUs {
		idx := i
		if v, err := strconv.Atoi(strings.TrimSpace(g.MinorNumber)); err == nil {
			idx = v
		}
		out = append(out, GPU{
			Name:        strings.TrimSpace(g.ProductName),
			Index:       idx,
			Driver:      strings.TrimSpace(log.DriverVersion),
			UtilPercent: int(leadingNumber(g.Util.GPU)),
			MemUsedMB:   leadingNumber(g.FBMem.Used),
			MemTotalMB:  leadingNumber(g.FBMem.Total),
			PowerWatt:   leadingNumber(g.Power.Draw),
			SMClockMHz:  int(leadingNumber(g.Clocks.SM)),
		})
	}
	return out, nil
}

// sampleNvidiaSMI runs nvidia-smi once. A host without the tool has no
// GPUs and is not an error.
func sampleNvidiaSMI(ctx context.Context) ([]GPU, error) {
	if !hasNvidiaSMI() {
		return nil, nil
	}
	b, err := exec.CommandContext(ctx, nvidiaSMI, "-x", "-q").Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseNvidiaSMIXML(bytes.NewReader(b))
}
