package skerr

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil_ReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(nil))
	require.NoError(t, Wrapf(nil, "never shown"))
}

func TestWrap_PreservesIs(t *testing.T) {
	err := Wrapf(io.EOF, "reading %s", "file")
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, io.EOF, Unwrap(err))
	assert.True(t, strings.HasPrefix(err.Error(), "reading file: EOF. At skerr/skerr_test.go:"), err.Error())
}

func TestWrapf_Twice_ContextOutermostFirst(t *testing.T) {
	inner := Wrapf(errors.New("boom"), "inner")
	outer := Wrapf(inner, "outer")
	assert.True(t, strings.HasPrefix(outer.Error(), "outer: inner: boom. At"), outer.Error())

	// The inner error is untouched.
	assert.True(t, strings.HasPrefix(inner.Error(), "inner: boom. At"), inner.Error())
}

func TestFmt_RecordsCallSite(t *testing.T) {
	err := Fmt("bad value %d", 3)
	var ewc *ErrorWithContext
	require.True(t, errors.As(err, &ewc))
	require.NotEmpty(t, ewc.CallStack)
	assert.Equal(t, "skerr/skerr_test.go", ewc.CallStack[0].File)
	assert.Equal(t, "bad value 3", ewc.Wrapped.Error())
}
