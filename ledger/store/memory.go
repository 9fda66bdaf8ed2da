// Package store provides in-memory ledger.Store and ledger.SourceReader
// implementations for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries []ledger.Entry
	nextID  int64

	// InsertHook, when set, runs before each insert and can inject a failure.
	// Test seam for conflict and partial-failure paths.
	InsertHook func(*ledger.Entry) error

	// BatchErr, when set, fails InsertEntries wholesale so callers exercise
	// their per-entry fallback.
	BatchErr error
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) InsertEntry(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(e)
}

func (m *Memory) InsertEntries(_ context.Context, es []*ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BatchErr != nil {
		return m.BatchErr
	}
	for _, e := range es {
		if err := m.insertLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) insertLocked(e *ledger.Entry) error {
	if m.InsertHook != nil {
		if err := m.InsertHook(e); err != nil {
			return err
		}
	}

	// Enforce the same unique keys a production store enforces.
	for _, existing := range m.entries {
		if existing.Number == e.Number {
			return ledger.ErrDuplicateNumber
		}
		if e.SourceKind.Synced() &&
			existing.SourceKind == e.SourceKind && existing.SourceID == e.SourceID {
			return ledger.ErrDuplicateSource
		}
	}

	e.ID = m.nextID
	m.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *e)
	return nil
}

// Seed appends an entry without any uniqueness checks, assigning an id.
// Fixture helper: reproduces states only a second process could create, such
// as duplicate (kind, source id) rows from overlapping syncs.
func (m *Memory) Seed(e ledger.Entry) ledger.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID
	m.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, e)
	return e
}

func (m *Memory) Entries(_ context.Context) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Entry, len(m.entries))
	copy(out, m.entries)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) EntriesByAccount(ctx context.Context, account ledger.AccountType) ([]ledger.Entry, error) {
	all, err := m.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []ledger.Entry
	for _, e := range all {
		if e.Account == account {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) LedgerSourceIDs(_ context.Context, kind ledger.SourceKind) (map[int64]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[int64]bool)
	for _, e := range m.entries {
		if e.SourceKind == kind {
			ids[e.SourceID] = true
		}
	}
	return ids, nil
}

func (m *Memory) NumberExists(_ context.Context, number string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) SetSourceID(_ context.Context, entryID, sourceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == entryID {
			m.entries[i].SourceID = sourceID
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (m *Memory) DeleteEntries(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doomed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !doomed[e.ID] {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// =============================================================================
// MEMORY SOURCES - In-memory source tables (for testing/dev)
// =============================================================================

// MemorySources holds the three source tables in memory. Records are added
// by tests or dev fixtures; the engine only reads them, matching the real
// ownership model.
type MemorySources struct {
	mu      sync.RWMutex
	records map[ledger.SourceKind]map[int64]ledger.SourceRecord

	// ReadErr, when set, fails every read. Test seam for fail-closed paths.
	ReadErr error
}

func NewMemorySources() *MemorySources {
	return &MemorySources{
		records: map[ledger.SourceKind]map[int64]ledger.SourceRecord{
			ledger.SourcePayment:  {},
			ledger.SourceExpense:  {},
			ledger.SourcePurchase: {},
		},
	}
}

// Add inserts or replaces a source record. Simulates the external CRUD.
func (s *MemorySources) Add(kind ledger.SourceKind, rec ledger.SourceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[kind][rec.ID] = rec
}

// Remove deletes a source record. Simulates the external CRUD.
func (s *MemorySources) Remove(kind ledger.SourceKind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[kind], id)
}

func (s *MemorySources) SourceIDs(_ context.Context, kind ledger.SourceKind) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	ids := make([]int64, 0, len(s.records[kind]))
	for id := range s.records[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemorySources) SourceRecords(_ context.Context, kind ledger.SourceKind, ids []int64) ([]ledger.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	var out []ledger.SourceRecord
	for _, id := range ids {
		if rec, ok := s.records[kind][id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
