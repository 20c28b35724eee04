package exec

import (
	"context"
)

// NoInterruptContext returns a context.Context which is never cancelled.
//
// On Windows subprocesses stay in the parent's process group.
func NoInterruptContext(ctx context.Context) context.Context {
	return withoutCancel(ctx)
}
