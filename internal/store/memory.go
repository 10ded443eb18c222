// Package store holds donation records in process memory. Durability is
// explicitly out of scope; the method set is the seam a database-backed
// implementation would fill in.
package store

import (
	"errors"
	"sync"

	"github.com/doacao112-dotcom/Freefire/internal/domain"
)

var (
	ErrNotFound = errors.New("donation not found")
	ErrConflict = errors.New("donation id already exists")
)

// MemoryStore indexes donations two ways: a primary map by donation id and
// a secondary map from gateway transaction id to donation id, kept
// consistent at insert. The second index costs one map write per insert and
// makes webhook correlation O(1) instead of a scan over live donations.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Donation
	byTxID map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*domain.Donation),
		byTxID: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(d domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[d.ID]; ok {
		return ErrConflict
	}

	rec := d
	s.byID[d.ID] = &rec
	if d.GatewayTxID != "" {
		s.byTxID[d.GatewayTxID] = d.ID
	}
	return nil
}

// GetByID returns a copy of the record; callers never see live state.
func (s *MemoryStore) GetByID(id string) (domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return domain.Donation{}, ErrNotFound
	}
	return *rec, nil
}

func (s *MemoryStore) GetByGatewayTxID(txID string) (domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTxID[txID]
	if !ok {
		return domain.Donation{}, ErrNotFound
	}
	return *s.byID[id], nil
}

// TryMarkPaid is the sole mutation entry point. It transitions
// pending -> paid and reports alreadyPaid=false exactly once per donation,
// no matter how many callers race. The lock covers only the status
// read-modify-write; no I/O ever happens under it.
func (s *MemoryStore) TryMarkPaid(id string) (alreadyPaid bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Status == domain.StatusPaid {
		return true, nil
	}
	rec.Status = domain.StatusPaid
	return false, nil
}

// Snapshot returns copies of all records, for the debug listing.
func (s *MemoryStore) Snapshot() []domain.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Donation, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, *rec)
	}
	return out
}
