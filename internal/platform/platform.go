// Package platform isolates system calls requiring access to libc even in cgo-less builds.
//
// Every file in this package is a Go program carefully written to isolate
// syscalls to this package. This set needs to be small for ABI-sensitive compilation,
// such as statically linked WebAssembly functions.
package platform

import "runtime"

// CompilerSupported returns whether a backend.Machine is implemented for this GOARCH.
func CompilerSupported() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// CpuFeature is a bit flag corresponding to a single CPU feature.
type CpuFeature uint64

// CpuFeatureFlags exposes the CPU features detected on the host, consulted by the
// instruction-selection backends to choose between functionally-equivalent encodings.
type CpuFeatureFlags interface {
	// Has returns true if the specified flag (represented as a single bit) is set.
	Has(cpuFeature CpuFeature) bool
	// HasExtra is the same as Has for the CPU feature flags stored in a secondary register.
	HasExtra(cpuFeature CpuFeature) bool
}

const (
	// CpuFeatureAmd64SSE3 is the flag to query CpuFeatureFlags.Has for SSEv3 capability on amd64.
	CpuFeatureAmd64SSE3 CpuFeature = 1 << iota
	// CpuFeatureAmd64SSE4_1 is the flag to query CpuFeatureFlags.Has for SSEv4.1 capability on amd64.
	CpuFeatureAmd64SSE4_1
	// CpuFeatureAmd64SSE4_2 is the flag to query CpuFeatureFlags.Has for SSEv4.2 capability on amd64.
	CpuFeatureAmd64SSE4_2

	// CpuExtraFeatureAmd64ABM is the flag to query CpuFeatureFlags.HasExtra for Advanced Bit Manipulation capability on amd64 (Leading/Trailing Zero Bit Counting).
	CpuExtraFeatureAmd64ABM CpuFeature = 1 << iota

	// CpuFeatureArm64Atomic is the flag to query CpuFeatureFlags.Has for large system extensions (LSE) capability on arm64 (atomic instructions).
	CpuFeatureArm64Atomic CpuFeature = 1 << iota
)
