package now

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNow_ConstValue_Success(t *testing.T) {
	mockTime := time.Unix(12, 11).UTC()
	ctx := WithTime(context.Background(), mockTime)

	require.NotEqual(t, mockTime, Now(context.Background()))
	require.Equal(t, mockTime, Now(ctx))
}

func TestNow_NowProvider_Success(t *testing.T) {
	var monotonicTime int64 = 0
	provider := func() time.Time {
		monotonicTime += 1
		return time.Unix(monotonicTime, 0).UTC()
	}
	ctx := context.WithValue(context.Background(), ContextKey, NowProvider(provider))

	require.Equal(t, int64(1), Now(ctx).Unix())
	require.Equal(t, int64(2), Now(ctx).Unix())
}

func TestNow_InvalidValue_Panics(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextKey, "strings are not valid types for ContextKey")
	require.Panics(t, func() {
		Now(ctx)
	})
}
