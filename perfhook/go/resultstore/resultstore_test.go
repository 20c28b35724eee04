package resultstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.perfhook.dev/infra/perfhook/go/types"
)

var path1 = types.ResultPath{
	Label:     "Master",
	Timestamp: "2018-06-01T10:00:00Z",
	Commit:    "abc123",
	Name:      "parse_json",
}

func paths(entries []Entry) []string {
	ret := []string{}
	for _, e := range entries {
		ret = append(ret, e.Path)
	}
	return ret
}

func TestNewFS_OnlyRegularFilesAtDepthThree(t *testing.T) {
	fsys := fstest.MapFS{
		"top":            {Data: []byte("1")},
		"Master/shallow": {Data: []byte("1")},
		"Master/2018-06-01T10:00:00Z-abc123/bench":       {Data: []byte("1.5")},
		"Master/2018-06-01T10:00:00Z-abc123/.bench.tmp1": {Data: []byte("1")},
		"Master/2018-06-01T10:00:00Z-abc123/dir/deep":    {Data: []byte("1")},
		"PR (#1)/2018-06-02T10:00:00Z-def456/bench":      {Data: []byte("2.5")},
	}
	entries, err := NewFS(fsys).ScanAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Master/2018-06-01T10:00:00Z-abc123/bench",
		"PR (#1)/2018-06-02T10:00:00Z-def456/bench",
	}, paths(entries))
	for _, e := range entries {
		if e.Path == "Master/2018-06-01T10:00:00Z-abc123/bench" {
			assert.Equal(t, []byte("1.5"), e.Content)
		}
	}
}

func TestNewFS_DotNamedBench_ReturnedTempFileSkipped(t *testing.T) {
	fsys := fstest.MapFS{
		"Master/2018-06-01T10:00:00Z-a/.bench":               {Data: []byte("1")},
		"Master/2018-06-01T10:00:00Z-a/.bench.tmp3829104756": {Data: []byte("1")},
		"Master/2018-06-01T10:00:00Z-a/.cache.tmpfile":       {Data: []byte("2")},
	}
	entries, err := NewFS(fsys).ScanAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Master/2018-06-01T10:00:00Z-a/.bench",
		"Master/2018-06-01T10:00:00Z-a/.cache.tmpfile",
	}, paths(entries))
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, isTempFile(".bench.tmp1"))
	assert.True(t, isTempFile(".parse_json.tmp3829104756"))
	assert.False(t, isTempFile(".bench"))
	assert.False(t, isTempFile("bench.tmp1"))
	assert.False(t, isTempFile(".bench.tmp"))
	assert.False(t, isTempFile(".bench.tmpx"))
}

func TestNewFS_Empty_ReturnsNoEntries(t *testing.T) {
	entries, err := NewFS(fstest.MapFS{}).ScanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewFS_Write_ReturnsErrReadOnly(t *testing.T) {
	err := NewFS(fstest.MapFS{}).Write(context.Background(), path1, []byte("1"))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestLocal_MissingRoot_ReturnsNoEntries(t *testing.T) {
	l := NewLocal(filepath.Join(t.TempDir(), "does-not-exist"))
	entries, err := l.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_WriteThenScan_Success(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "results")
	l := NewLocal(root)
	require.NoError(t, l.Write(ctx, path1, []byte("12.5")))

	b, err := os.ReadFile(filepath.Join(root, "Master", "2018-06-01T10:00:00Z-abc123", "parse_json"))
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(b))

	entries, err := l.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Path: path1.Rel(), Content: []byte("12.5")}, entries[0])
}

func TestLocal_WriteTwice_ReturnsErrAlreadyExistsAndKeepsFirst(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())
	require.NoError(t, l.Write(ctx, path1, []byte("1")))
	err := l.Write(ctx, path1, []byte("2"))
	require.ErrorIs(t, err, ErrAlreadyExists)

	entries, err := l.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("1"), entries[0].Content)
}

func TestLocal_WriteInvalidPath_ReturnsError(t *testing.T) {
	p := path1
	p.Label = "../escape"
	err := NewLocal(t.TempDir()).Write(context.Background(), p, []byte("1"))
	require.ErrorIs(t, err, types.ErrInvalidResultPath)
}

func TestLocal_ScanAll_IgnoresDirectoriesAtDepthThree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Master", "2018-06-01T10:00:00Z-abc123", "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Master", "2018-06-01T10:00:00Z-abc123", "subdir", "x"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Master", "loose"), []byte("1"), 0644))

	entries, err := NewLocal(root).ScanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_ScanAll_CancelledContext_ReturnsError(t *testing.T) {
	root := t.TempDir()
	l := NewLocal(root)
	require.NoError(t, l.Write(context.Background(), path1, []byte("1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.ScanAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMem_WriteThenScan_Success(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	p2 := path1
	p2.Name = "lex"
	require.NoError(t, m.Write(ctx, path1, []byte("1")))
	require.NoError(t, m.Write(ctx, p2, []byte("2")))
	require.ErrorIs(t, m.Write(ctx, path1, []byte("3")), ErrAlreadyExists)

	entries, err := m.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Path: p2.Rel(), Content: []byte("2")},
		{Path: path1.Rel(), Content: []byte("1")},
	}, entries)
}
