//go:build !windows

package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoInterruptContext_IgnoresCancellationAndSetsProcessGroup(t *testing.T) {
	mock := CommandCollector{}
	parent, cancel := context.WithCancel(NewContext(context.Background(), mock.Run))
	ctx := NoInterruptContext(parent)
	cancel()
	require.NoError(t, ctx.Err())

	_, err := Start(ctx, &Command{Name: "true"})
	require.NoError(t, err)
	require.Len(t, mock.Commands(), 1)
	require.NotNil(t, mock.Commands()[0].SysProcAttr)
	assert.True(t, mock.Commands()[0].SysProcAttr.Setpgid)
}
