// Package fanout runs one call per item concurrently and joins them, turning
// panics into per-item results so one bad item cannot take down its siblings.
package fanout

import (
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
)

// Map calls fn for every item concurrently and returns the results in input
// order. An item whose fn panics yields fallback, and the recovered panic is
// passed to onPanic when it is non-nil.
func Map[T, R any](items []T, fallback R, onPanic func(T, *panics.Recovered), fn func(T) R) []R {
	return iter.Map(items, func(item *T) R {
		out := fallback
		if rec := Guard(func() { out = fn(*item) }); rec != nil {
			if onPanic != nil {
				onPanic(*item, rec)
			}
			return fallback
		}
		return out
	})
}

// All runs every fn concurrently and waits for them. It returns the first
// recovered panic, if any; the other functions still run to completion.
func All(fns ...func()) *panics.Recovered {
	var wg conc.WaitGroup
	for _, fn := range fns {
		wg.Go(fn)
	}
	return wg.WaitAndRecover()
}

// Guard runs fn and recovers a panic.
func Guard(fn func()) *panics.Recovered {
	var pc panics.Catcher
	pc.Try(fn)
	return pc.Recovered()
}

// Count returns how many results are true.
func Count(results []bool) int {
	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n
}
