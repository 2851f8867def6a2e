// Package groutine starts named goroutines. The name is attached as a pprof
// label so long-lived workers like a session's read loop show up by name in
// goroutine profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go starts fn on a new goroutine labelled with name. A nil parentCtx is
// treated as context.Background().
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)
	go pprof.Do(parentCtx, labels, fn)
}
