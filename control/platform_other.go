//go:build !linux
// +build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "runtime"

// RegisterPlatformProbes adds the probes available on this platform.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
