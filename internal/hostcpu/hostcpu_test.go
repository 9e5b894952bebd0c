package hostcpu

import (
	"runtime"
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	f := Detect()
	if f.Arch != runtime.GOARCH {
		t.Errorf("Arch = %q, want %q", f.Arch, runtime.GOARCH)
	}
	if runtime.GOARCH == "arm64" && !f.NEON {
		t.Error("arm64 host without NEON")
	}
	if !strings.HasPrefix(f.String(), runtime.GOARCH) {
		t.Errorf("String() = %q", f.String())
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		f    Features
		want string
	}{
		{Features{}, "scalar"},
		{Features{FMA: true, AVX2: true}, "avx2"},
		{Features{FMA: true, AVX2: true, AVX512: true}, "avx512"},
		{Features{NEON: true}, "neon"},
		{Features{NEON: true, SVE: true}, "sve"},
	}
	for _, tt := range tests {
		if got := tt.f.Level(); got != tt.want {
			t.Errorf("%+v.Level() = %q, want %q", tt.f, got, tt.want)
		}
	}
	if got := (Features{Arch: "amd64", FMA: true, AVX2: true}).String(); got != "amd64 fma avx2" {
		t.Errorf("String() = %q", got)
	}
}
