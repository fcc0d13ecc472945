package versionstore

import (
	"context"
	"sort"
	"sync"

	"github.com/soundprediction/tempograph/pkg/types"
)

// MemoryStore keeps version chains in process memory. Appends are serialized
// by a single lock; reads return fresh slice headers over the immutable
// records so callers can iterate without holding it.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[types.Kind]map[string][]*types.VersionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chains: map[types.Kind]map[string][]*types.VersionRecord{
			types.KindEntity:       {},
			types.KindRelationship: {},
		},
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, record *types.VersionRecord) error {
	if err := validateAppend(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[record.Kind][record.StableID()]
	for _, existing := range chain {
		if existing.VersionID() == record.VersionID() {
			return ErrDuplicateVersion
		}
	}
	s.chains[record.Kind][record.StableID()] = append(chain, record)
	return nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context, kind types.Kind, stableID string) ([]*types.VersionRecord, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}

	s.mu.RLock()
	chain := s.chains[kind][stableID]
	out := make([]*types.VersionRecord, len(chain))
	copy(out, chain)
	s.mu.RUnlock()

	sortChain(out)
	return out, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context, kind types.Kind, stableID string) (*types.VersionRecord, error) {
	history, err := s.History(ctx, kind, stableID)
	if err != nil {
		return nil, err
	}
	return latestOf(history), nil
}

// StableIDs implements Store.
func (s *MemoryStore) StableIDs(ctx context.Context, kind types.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.chains[kind]))
	for id := range s.chains[kind] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// LoadAll implements Store. The memory backend has nothing to load.
func (s *MemoryStore) LoadAll(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
