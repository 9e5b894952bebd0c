//go:build amd64

package hostcpu

import "golang.org/x/sys/cpu"

func detect(f *Features) {
	f.FMA = cpu.X86.HasFMA
	// The hwy AVX2 level also requires FMA.
	f.AVX2 = cpu.X86.HasAVX2 && cpu.X86.HasFMA
	f.AVX512 = cpu.X86.HasAVX512F && cpu.X86.HasAVX512VL
}
