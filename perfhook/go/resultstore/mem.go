package resultstore

import (
	"context"
	"sort"
	"sync"

	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/perfhook/go/types"
)

// Mem is an in-memory Store, used in tests.
type Mem struct {
	mutex sync.Mutex
	files map[string][]byte
}

// NewMem returns an empty Mem.
func NewMem() *Mem {
	return &Mem{
		files: map[string][]byte{},
	}
}

// Write implements Store.
func (m *Mem) Write(ctx context.Context, p types.ResultPath, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.files[p.Rel()]; ok {
		return skerr.Wrapf(ErrAlreadyExists, "%q", p.Rel())
	}
	m.files[p.Rel()] = append([]byte(nil), content...)
	return nil
}

// ScanAll implements Store. Entries are returned in path order.
func (m *Mem) ScanAll(ctx context.Context) ([]Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ret := make([]Entry, 0, len(m.files))
	for p, content := range m.files {
		ret = append(ret, Entry{Path: p, Content: append([]byte(nil), content...)})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Path < ret[j].Path
	})
	return ret, nil
}

// Assert that Mem implements the Store interface.
var _ Store = (*Mem)(nil)
