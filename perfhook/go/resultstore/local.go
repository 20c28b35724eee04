package resultstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/util"
	"go.perfhook.dev/infra/perfhook/go/types"
)

// Local is a Store backed by a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal returns a Store rooted at the directory root. The directory does
// not need to exist yet.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the results root directory.
func (l *Local) Root() string {
	return l.root
}

// Write implements Store. The file is written to a temporary file first and
// then linked into place, so readers see either nothing or the whole file.
func (l *Local) Write(ctx context.Context, p types.ResultPath, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	dir := filepath.Join(l.root, filepath.FromSlash(p.Dir()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return skerr.Wrapf(err, "creating %q", dir)
	}
	filename := filepath.Join(dir, p.Name)
	err := util.WithWriteNewFile(filename, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(content))
		return err
	})
	if errors.Is(err, os.ErrExist) {
		return skerr.Wrapf(ErrAlreadyExists, "%q", p.Rel())
	}
	return skerr.Wrapf(err, "writing %q", filename)
}

// ScanAll implements Store. A missing root directory holds no results.
func (l *Local) ScanAll(ctx context.Context) ([]Entry, error) {
	if _, err := os.Stat(l.root); errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	entries, err := scanFS(ctx, os.DirFS(l.root))
	if err != nil {
		return nil, skerr.Wrapf(err, "scanning %q", l.root)
	}
	return entries, nil
}

// Assert that Local implements the Store interface.
var _ Store = (*Local)(nil)
