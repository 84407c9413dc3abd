// Package pool runs per-file work across a bounded set of goroutines.
package pool

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Workers returns the worker count for n items: GOMAXPROCS capped at n.
func Workers(n int) int {
	w := runtime.GOMAXPROCS(0)
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Map applies fn to every item using up to workers goroutines and returns the
// results in item order. Each goroutine calls newState once and passes the
// value to every fn call it makes, so per-worker resources such as parsers are
// never shared. When fn reports ok=false the item is dropped from the output.
//
// Workers run in an errgroup and pull item indexes from a shared counter.
// Cancelling ctx stops handing out work; results of items already in flight
// are discarded and ctx.Err() is returned.
func Map[T, R, S any](
	ctx context.Context,
	items []T,
	workers int,
	newState func() S,
	closeState func(S),
	fn func(ctx context.Context, state S, item T) (R, bool),
) ([]R, error) {
	if len(items) == 0 {
		return nil, ctx.Err()
	}
	if workers <= 0 {
		workers = Workers(len(items))
	}

	indexed := make([]R, len(items))
	valid := make([]bool, len(items))
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			state := newState()
			if closeState != nil {
				defer closeState(state)
			}
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				idx := int(next.Add(1)) - 1
				if idx >= len(items) {
					return nil
				}
				indexed[idx], valid[idx] = fn(gctx, state, items[idx])
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]R, 0, len(items))
	for i, v := range valid {
		if v {
			out = append(out, indexed[i])
		}
	}
	return out, nil
}
