// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hostcpu reports the floating-point features of the machine
// running the generator. Generated code is portable; the report tells
// whether mul_add in emitted code is likely to be fused on this host and
// which hwy dispatch level vector output would run at.
package hostcpu

import (
	"runtime"
	"strings"
)

// Features is the host report.
type Features struct {
	Arch string
	// FMA is a fused multiply-add instruction.
	FMA    bool
	AVX2   bool
	AVX512 bool
	// NEON is always set on arm64.
	NEON bool
	SVE  bool
}

// Detect returns the features of the current CPU.
func Detect() Features {
	f := Features{Arch: runtime.GOARCH}
	detect(&f)
	return f
}

// Level names the widest hwy dispatch level the features allow.
func (f Features) Level() string {
	switch {
	case f.AVX512:
		return "avx512"
	case f.AVX2:
		return "avx2"
	case f.SVE:
		return "sve"
	case f.NEON:
		return "neon"
	}
	return "scalar"
}

// String lists the arch and the features present.
func (f Features) String() string {
	parts := []string{f.Arch}
	for _, p := range []struct {
		name string
		on   bool
	}{{"fma", f.FMA}, {"avx2", f.AVX2}, {"avx512", f.AVX512}, {"neon", f.NEON}, {"sve", f.SVE}} {
		if p.on {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, " ")
}
