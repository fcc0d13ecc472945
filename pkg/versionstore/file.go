package versionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/soundprediction/tempograph/pkg/types"
)

// ErrInvalidStableID is returned when a stable ID contains path traversal or
// other characters unsafe for use in file paths.
var ErrInvalidStableID = errors.New("invalid stable ID: contains path traversal or invalid characters")

// FileStore persists one JSON file per version under
// <root>/<kind>/<stable_id>/<version_id>.json. Histories are cached in
// memory after the first read; LoadAll warms the whole cache at startup.
type FileStore struct {
	root   string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[types.Kind]map[string][]*types.VersionRecord
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// per-kind directories if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tempograph-versions")
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, kind := range []types.Kind{types.KindEntity, types.KindRelationship} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create version directory: %w", err)
		}
	}

	return &FileStore{
		root:   dir,
		logger: logger,
		cache: map[types.Kind]map[string][]*types.VersionRecord{
			types.KindEntity:       {},
			types.KindRelationship: {},
		},
	}, nil
}

// validateStableID rejects IDs that could escape the storage root.
func validateStableID(stableID string) error {
	if stableID == "" || strings.Contains(stableID, "..") ||
		strings.ContainsAny(stableID, `/\`) || strings.ContainsRune(stableID, '\x00') {
		return ErrInvalidStableID
	}
	return nil
}

func (s *FileStore) chainDir(kind types.Kind, stableID string) string {
	return filepath.Join(s.root, string(kind), stableID)
}

// Append implements Store. The record is written to a temporary file and
// renamed into place; an existing version file is never overwritten.
func (s *FileStore) Append(ctx context.Context, record *types.VersionRecord) error {
	if err := validateAppend(record); err != nil {
		return err
	}
	if err := validateStableID(record.StableID()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.chainDir(record.Kind, record.StableID())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chain directory: %w", err)
	}

	path := filepath.Join(dir, record.VersionID()+".json")
	if _, err := os.Stat(path); err == nil {
		return ErrDuplicateVersion
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version record: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename version file: %w", err)
	}

	if chain, ok := s.cache[record.Kind][record.StableID()]; ok {
		s.cache[record.Kind][record.StableID()] = append(chain, record)
	}
	return nil
}

// History implements Store. A missing chain directory yields an empty
// history; malformed files are repaired when possible, otherwise logged and
// skipped.
func (s *FileStore) History(ctx context.Context, kind types.Kind, stableID string) ([]*types.VersionRecord, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}
	if err := validateStableID(stableID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if chain, ok := s.cache[kind][stableID]; ok {
		out := make([]*types.VersionRecord, len(chain))
		copy(out, chain)
		s.mu.RUnlock()
		sortChain(out)
		return out, nil
	}
	s.mu.RUnlock()

	chain := s.scanChain(kind, stableID)

	s.mu.Lock()
	s.cache[kind][stableID] = chain
	s.mu.Unlock()

	out := make([]*types.VersionRecord, len(chain))
	copy(out, chain)
	return out, nil
}

// scanChain reads every version file for a stable ID and returns the chain
// in ascending timestamp order.
func (s *FileStore) scanChain(kind types.Kind, stableID string) []*types.VersionRecord {
	dir := s.chainDir(kind, stableID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read chain directory", "kind", kind, "stable_id", stableID, "error", err)
		}
		return []*types.VersionRecord{}
	}

	chain := make([]*types.VersionRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		record, err := s.readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable version file",
				"kind", kind, "stable_id", stableID, "file", entry.Name(), "error", err)
			continue
		}
		chain = append(chain, record)
	}

	sortChain(chain)
	return chain
}

// readRecord parses one version file, attempting a JSON repair before giving
// up on malformed content.
func (s *FileStore) readRecord(path string) (*types.VersionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var record types.VersionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(repaired), &record); err != nil {
			return nil, err
		}
		s.logger.Warn("repaired malformed version file", "file", filepath.Base(path))
	}

	if record.StableID() == "" || record.VersionID() == "" {
		return nil, fmt.Errorf("version file %s missing identifiers", filepath.Base(path))
	}
	return &record, nil
}

// Latest implements Store.
func (s *FileStore) Latest(ctx context.Context, kind types.Kind, stableID string) (*types.VersionRecord, error) {
	history, err := s.History(ctx, kind, stableID)
	if err != nil {
		return nil, err
	}
	return latestOf(history), nil
}

// StableIDs implements Store. Enumeration merges cached IDs with the
// directories on disk so it is accurate before and after LoadAll.
func (s *FileStore) StableIDs(ctx context.Context, kind types.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, types.ErrUnknownKind
	}

	seen := map[string]bool{}

	s.mu.RLock()
	for id := range s.cache[kind] {
		seen[id] = true
	}
	s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.root, string(kind)))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to enumerate stable IDs: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			seen[entry.Name()] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll implements Store. Walks the storage root once and populates the
// cache for every stable ID found.
func (s *FileStore) LoadAll(ctx context.Context) error {
	for _, kind := range []types.Kind{types.KindEntity, types.KindRelationship} {
		entries, err := os.ReadDir(filepath.Join(s.root, string(kind)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read storage root: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			chain := s.scanChain(kind, entry.Name())
			s.mu.Lock()
			s.cache[kind][entry.Name()] = chain
			s.mu.Unlock()
		}
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
