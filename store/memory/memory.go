// Package memory provides an in-memory store.Store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/joint-cost-engine/store"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	profiles map[string]store.ProfileRecord
	runs     []store.RunRecord // ordered by CreatedAt, oldest first
	runIDs   map[string]int
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		profiles: make(map[string]store.ProfileRecord),
		runIDs:   make(map[string]int),
	}
}

// SaveProfile inserts or replaces a profile.
func (m *Memory) SaveProfile(_ context.Context, p store.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if old, ok := m.profiles[p.Name]; ok {
		p.Version = old.Version + 1
		p.CreatedAt = old.CreatedAt
	} else {
		p.Version = 1
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.Name] = p
	return nil
}

func (m *Memory) GetProfile(_ context.Context, name string) (*store.ProfileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProfiles(_ context.Context) ([]store.ProfileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]store.ProfileRecord, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteProfile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, name)
	return nil
}

// SaveRun appends a run. Append-only.
func (m *Memory) SaveRun(_ context.Context, r store.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.runIDs[r.ID]; dup {
		return store.ErrDuplicateRun
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	// Keep runs sorted by CreatedAt; equal timestamps keep insertion order.
	i := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].CreatedAt.After(r.CreatedAt)
	})
	m.runs = append(m.runs, store.RunRecord{})
	copy(m.runs[i+1:], m.runs[i:])
	m.runs[i] = r

	for j := i; j < len(m.runs); j++ {
		m.runIDs[m.runs[j].ID] = j
	}
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*store.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.runIDs[id]
	if !ok {
		return nil, nil
	}
	r := m.runs[i]
	return &r, nil
}

func (m *Memory) ListRuns(_ context.Context, f store.RunFilter) ([]store.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.RunRecord
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if f.BatchID != "" && r.BatchID != f.BatchID {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
