//go:build !windows

package exec

import (
	"context"
	"syscall"
)

// NoInterruptContext returns a context.Context which is never cancelled and
// which launches subprocesses in their own process group, so that they are
// not killed when the parent context is cancelled or this process receives
// an interrupt.
func NoInterruptContext(ctx context.Context) context.Context {
	parent := getCtx(ctx)
	detach := func(c *Command) *Command {
		cp := *c
		cp.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
		}
		return &cp
	}
	return context.WithValue(withoutCancel(ctx), contextKey, &execContext{
		runFn: func(ctx context.Context, c *Command) error {
			return parent.runFn(ctx, detach(c))
		},
		startFn: func(ctx context.Context, c *Command) (Process, error) {
			return parent.startFn(ctx, detach(c))
		},
	})
}
