// Package resultstore provides access to the tree of measurement files.
//
// The tree has a fixed depth of three below the results root:
//
//	<root>/<label>/<timestamp>-<commit>/<bench name>
//
// It is append-only: files are written once and never changed.
package resultstore

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/perfhook/go/types"
)

// Depth of measurement files below the results root.
const Depth = 3

// ErrAlreadyExists is returned by Write if a file already exists at the path.
var ErrAlreadyExists = errors.New("result already exists")

// ErrReadOnly is returned by Write on stores that can't be written to.
var ErrReadOnly = errors.New("result store is read-only")

// Entry is a single measurement file.
type Entry struct {
	// Path is slash separated and relative to the results root.
	Path string

	// Content of the file.
	Content []byte
}

// Store is the tree of measurement files.
type Store interface {
	// Write stores content at p. Returns an error wrapping ErrAlreadyExists if
	// a file already exists at p.
	Write(ctx context.Context, p types.ResultPath, content []byte) error

	// ScanAll returns every regular file found at exactly Depth below the
	// root. Files that can't be read are logged and left out.
	ScanAll(ctx context.Context) ([]Entry, error)
}

// isTempFile reports whether name is the temporary file of an in-progress
// write, i.e. "."+base+".tmp" followed by the random digits of os.CreateTemp.
func isTempFile(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	i := strings.LastIndex(name, ".tmp")
	if i <= 0 {
		return false
	}
	suffix := name[i+len(".tmp"):]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// scanFS walks fsys and returns the files at Depth. Temporary files of
// in-progress writes are left out.
func scanFS(ctx context.Context, fsys fs.FS) ([]Entry, error) {
	ret := []Entry{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == "." {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipAll
				}
				return err
			}
			sklog.Warningf("Skipping %q: %s", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == "." {
			return nil
		}
		depth := strings.Count(p, "/") + 1
		if d.IsDir() {
			if depth >= Depth {
				return fs.SkipDir
			}
			return nil
		}
		if depth != Depth || !d.Type().IsRegular() || isTempFile(d.Name()) {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			sklog.Warningf("Failed to read %q: %s", p, err)
			return nil
		}
		ret = append(ret, Entry{Path: p, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// fsStore is a read-only Store over an fs.FS.
type fsStore struct {
	fsys fs.FS
}

// NewFS returns a read-only Store that scans fsys.
func NewFS(fsys fs.FS) Store {
	return fsStore{fsys: fsys}
}

// Write implements Store.
func (s fsStore) Write(ctx context.Context, p types.ResultPath, content []byte) error {
	return ErrReadOnly
}

// ScanAll implements Store.
func (s fsStore) ScanAll(ctx context.Context) ([]Entry, error) {
	return scanFS(ctx, s.fsys)
}

// Assert that fsStore implements the Store interface.
var _ Store = fsStore{}
