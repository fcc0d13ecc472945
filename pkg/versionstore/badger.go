package versionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/tempograph/pkg/types"
)

// BadgerStore persists version records in an embedded Badger database under
// keys of the form <kind>/<stable_id>/<version_id>. It shares the file
// backend's stable ID constraints so keys parse unambiguously.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

func versionKey(kind types.Kind, stableID, versionID string) []byte {
	return []byte(string(kind) + "/" + stableID + "/" + versionID)
}

func chainPrefix(kind types.Kind, stableID string) []byte {
	return []byte(string(kind) + "/" + stableID + "/")
}

// Append implements Store.
func (s *BadgerStore) Append(ctx context.Context, record *types.VersionRecord) error {
	if err := validateAppend(record); err != nil {
		return err
	}
	if err := validateStableID(record.StableID()); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal version record: %w", err)
	}

	key := versionKey(record.Kind, record.StableID(), record.VersionID())
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateVersion
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// History implements Store. The chain is read by prefix scan and sorted
// defensively by version timestamp.
func (s *BadgerStore) History(ctx context.Context, kind types.Kind, stableID string) ([]*types.VersionRecord, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}
	if err := validateStableID(stableID); err != nil {
		return nil, err
	}

	var chain []*types.VersionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := chainPrefix(kind, stableID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record types.VersionRecord
				if err := json.Unmarshal(val, &record); err != nil {
					s.logger.Warn("skipping unreadable version record",
						"kind", kind, "stable_id", stableID, "key", string(it.Item().Key()), "error", err)
					return nil
				}
				chain = append(chain, &record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read version chain: %w", err)
	}

	sortChain(chain)
	return chain, nil
}

// Latest implements Store.
func (s *BadgerStore) Latest(ctx context.Context, kind types.Kind, stableID string) (*types.VersionRecord, error) {
	history, err := s.History(ctx, kind, stableID)
	if err != nil {
		return nil, err
	}
	return latestOf(history), nil
}

// StableIDs implements Store.
func (s *BadgerStore) StableIDs(ctx context.Context, kind types.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}

	seen := map[string]bool{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(string(kind) + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			if idx := strings.IndexByte(rest, '/'); idx > 0 {
				seen[rest[:idx]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate stable IDs: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll implements Store. Badger serves reads directly from the database,
// so there is no separate cache to warm.
func (s *BadgerStore) LoadAll(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
