// Package now returns the current time, allowing tests to pin it through the
// context.
package now

import (
	"context"
	"fmt"
	"time"
)

type contextKeyType string

// ContextKey is the context key under which a time.Time or a NowProvider can
// be stored to override the value returned by Now.
const ContextKey contextKeyType = "overwriteNow"

// NowProvider is evaluated on every call to Now with a context that carries
// it. It must be goroutine safe if the context is shared.
type NowProvider func() time.Time

// Now returns the current time or the time from the context.
func Now(ctx context.Context) time.Time {
	if ts := ctx.Value(ContextKey); ts != nil {
		switch v := ts.(type) {
		case NowProvider:
			return v()
		case time.Time:
			return v
		default:
			panic(fmt.Sprintf("Unknown value for ContextKey: %v", v))
		}
	}
	return time.Now()
}

// WithTime returns a context where Now always returns ts.
func WithTime(ctx context.Context, ts time.Time) context.Context {
	return context.WithValue(ctx, ContextKey, ts)
}
