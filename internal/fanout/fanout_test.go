package fanout

import (
	"sync/atomic"
	"testing"

	"github.com/sourcegraph/conc/panics"
)

func TestMapKeepsOrderAndRecoversPanics(t *testing.T) {
	var panicked int64
	out := Map([]int{1, 2, 3, 4}, -1, func(item int, rec *panics.Recovered) {
		if rec == nil {
			t.Errorf("expected recovered panic for item %d", item)
		}
		atomic.AddInt64(&panicked, 1)
	}, func(item int) int {
		if item == 3 {
			panic("boom")
		}
		return item * 10
	})

	want := []int{10, 20, -1, 40}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
	if panicked != 1 {
		t.Fatalf("expected one panic, got %d", panicked)
	}
}

func TestAllRunsEveryFunction(t *testing.T) {
	var ran int64
	rec := All(
		func() { atomic.AddInt64(&ran, 1) },
		func() { panic("category failed") },
		func() { atomic.AddInt64(&ran, 1) },
	)
	if rec == nil {
		t.Fatal("expected recovered panic")
	}
	if ran != 2 {
		t.Fatalf("expected both healthy functions to run, got %d", ran)
	}
}

func TestGuardAndCount(t *testing.T) {
	if Guard(func() {}) != nil {
		t.Fatal("expected no panic")
	}
	if Guard(func() { panic("x") }) == nil {
		t.Fatal("expected panic to be recovered")
	}
	if got := Count([]bool{true, false, true}); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
