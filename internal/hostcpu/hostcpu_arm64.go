//go:build arm64

package hostcpu

import "golang.org/x/sys/cpu"

func detect(f *Features) {
	// ASIMD is part of the ARMv8-A base and includes FMLA.
	f.NEON = cpu.ARM64.HasASIMD
	f.FMA = f.NEON
	f.SVE = cpu.ARM64.HasSVE
}
