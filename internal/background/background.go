// Package background runs tasks that outlive the call that registered them,
// such as the pipe filling a streamed response body.
package background

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group collects background tasks bound to one request.
// The zero value is not usable; create groups with New.
type Group struct {
	ctx context.Context
	eg  *errgroup.Group
}

// New returns a Group whose tasks receive a context derived from ctx. The
// context is cancelled once a task fails or Wait returns.
func New(ctx context.Context) *Group {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{ctx: gctx, eg: eg}
}

// WaitUntil starts task in its own goroutine.
func (g *Group) WaitUntil(task func(context.Context) error) {
	g.eg.Go(func() error { return task(g.ctx) })
}

// Wait blocks until every registered task has returned and reports the first
// error.
func (g *Group) Wait() error { return g.eg.Wait() }
