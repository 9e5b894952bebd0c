// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestParallelFor(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			pool := New(workers)
			defer pool.Close()

			n := 101
			results := make([]int, n)
			pool.ParallelFor(n, func(start, end int) {
				for i := start; i < end; i++ {
					results[i] = i * 2
				}
			})
			for i := range n {
				if results[i] != i*2 {
					t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
				}
			}
		})
	}
}

func TestParallelForAtomic(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	var calls atomic.Int32
	results := make([]int, n)
	pool.ParallelForAtomic(n, func(i int) {
		calls.Add(1)
		results[i] = i * i
	})
	if calls.Load() != int32(n) {
		t.Errorf("fn called %d times, want %d", calls.Load(), n)
	}
	for i := range n {
		if results[i] != i*i {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*i)
		}
	}
}

func TestParallelForZeroN(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	var called bool
	pool.ParallelFor(0, func(start, end int) { called = true })
	pool.ParallelForAtomic(0, func(i int) { called = true })
	if called {
		t.Error("n=0 should not call fn")
	}
}

func TestNilAndClosedPool(t *testing.T) {
	closed := New(4)
	closed.Close()
	closed.Close()

	for name, pool := range map[string]*Pool{"nil": nil, "closed": closed} {
		t.Run(name, func(t *testing.T) {
			n := 50
			results := make([]int, n)
			pool.ParallelFor(n, func(start, end int) {
				for i := start; i < end; i++ {
					results[i] = i + 1
				}
			})
			for i := range n {
				if results[i] != i+1 {
					t.Errorf("results[%d] = %d, want %d", i, results[i], i+1)
				}
			}
		})
	}
	if got := (*Pool)(nil).NumWorkers(); got != 1 {
		t.Errorf("nil NumWorkers() = %d, want 1", got)
	}
}

func TestMap(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	got, err := Map(pool, 64, func(i int) (string, error) {
		return fmt.Sprint(i * 3), nil
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for i, s := range got {
		if want := fmt.Sprint(i * 3); s != want {
			t.Errorf("got[%d] = %q, want %q", i, s, want)
		}
	}
}

func TestMapLowestError(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	errAt := func(i int) error { return fmt.Errorf("point %d: %w", i, errBad) }
	got, err := Map(pool, 100, func(i int) (int, error) {
		if i == 17 || i == 80 {
			return 0, errAt(i)
		}
		return i, nil
	})
	if got != nil {
		t.Errorf("Map returned results alongside an error")
	}
	if !errors.Is(err, errBad) || err.Error() != errAt(17).Error() {
		t.Errorf("Map error = %v, want %v", err, errAt(17))
	}
}

var errBad = errors.New("bad point")

func BenchmarkParallelForAtomic(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	for b.Loop() {
		pool.ParallelForAtomic(1000, func(i int) {
			_ = i * i
		})
	}
}
