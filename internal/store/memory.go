package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
)

// MemoryStore keeps the collection in process memory. It is safe for
// concurrent use and loses everything on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records []record.Record
	version int64
	domains map[string]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make([]record.Record, 0),
		domains: make(map[string]struct{}),
	}
}

// GetAll returns a copy of the collection.
func (m *MemoryStore) GetAll(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewPersistence(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Snapshot{Records: cloneRecords(m.records), Version: m.version}, nil
}

// ReplaceAll swaps in a copy of snap.Records if snap.Version is current.
func (m *MemoryStore) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistence(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Version != m.version {
		return errors.NewConflict("record collection was modified concurrently")
	}
	m.records = cloneRecords(snap.Records)
	m.version++
	snap.Version = m.version
	return nil
}

func (m *MemoryStore) Domains(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewPersistence(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.domains))
	for d := range m.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) AddDomain(ctx context.Context, domain string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.NewPersistence(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.domains[domain]; ok {
		return false, nil
	}
	m.domains[domain] = struct{}{}
	return true, nil
}

func (m *MemoryStore) RemoveDomain(ctx context.Context, domain string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.NewPersistence(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.domains[domain]; !ok {
		return false, nil
	}
	delete(m.domains, domain)
	return true, nil
}
