//go:build gc

package platform

import "golang.org/x/sys/cpu"

// CpuFeatures exposes the capabilities for this CPU, queried via the Has, HasExtra methods.
var CpuFeatures = loadCpuFeatureFlags()

// cpuFeatureFlags implements CpuFeatureFlags interface.
type cpuFeatureFlags struct {
	flags      uint64
	extraFlags uint64
}

func loadCpuFeatureFlags() CpuFeatureFlags {
	var flags, extra uint64
	if cpu.X86.HasSSE3 {
		flags |= uint64(CpuFeatureAmd64SSE3)
	}
	if cpu.X86.HasSSE41 {
		flags |= uint64(CpuFeatureAmd64SSE4_1)
	}
	if cpu.X86.HasSSE42 {
		flags |= uint64(CpuFeatureAmd64SSE4_2)
	}
	if cpu.X86.HasBMI1 || cpu.X86.HasPOPCNT {
		extra |= uint64(CpuExtraFeatureAmd64ABM)
	}
	return &cpuFeatureFlags{flags: flags, extraFlags: extra}
}

// Has implements the same method on the CpuFeatureFlags interface.
func (f *cpuFeatureFlags) Has(cpuFeature CpuFeature) bool {
	return (f.flags & uint64(cpuFeature)) != 0
}

// HasExtra implements the same method on the CpuFeatureFlags interface.
func (f *cpuFeatureFlags) HasExtra(cpuFeature CpuFeature) bool {
	return (f.extraFlags & uint64(cpuFeature)) != 0
}
