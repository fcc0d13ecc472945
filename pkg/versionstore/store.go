package versionstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/soundprediction/tempograph/pkg/types"
)

var (
	// ErrDuplicateVersion is returned when appending a version ID that the
	// chain already contains. Version records are immutable; an append that
	// would overwrite one is a caller bug.
	ErrDuplicateVersion = errors.New("version already exists")
	// ErrMissingVersionID is returned when a record arrives without a
	// version ID stamped by the tracker.
	ErrMissingVersionID = errors.New("record has no version_id")
)

// Store is durable, ordered storage of version chains.
type Store interface {
	// Append adds a version record to the chain for its stable ID.
	// Existing versions are never overwritten.
	Append(ctx context.Context, record *types.VersionRecord) error

	// History returns the full version chain for a stable ID, ascending by
	// version timestamp. An unknown stable ID yields an empty history, not
	// an error; an unknown kind is a contract violation and does error.
	History(ctx context.Context, kind types.Kind, stableID string) ([]*types.VersionRecord, error)

	// Latest returns the most recent version for a stable ID, or nil when
	// no history exists.
	Latest(ctx context.Context, kind types.Kind, stableID string) (*types.VersionRecord, error)

	// StableIDs enumerates every stable ID with at least one version of the
	// given kind.
	StableIDs(ctx context.Context, kind types.Kind) ([]string, error)

	// LoadAll warms the in-memory cache from persistent storage. Backends
	// without persistence treat it as a no-op. Individual unreadable
	// records are logged and skipped, never aborting the load.
	LoadAll(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendBadger Backend = "badger"
)

// Options configures store construction.
type Options struct {
	// Backend selects the implementation. Empty defaults to memory.
	Backend Backend
	// Path is the storage root for the file and badger backends.
	Path string
}

// New creates a Store for the configured backend.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.Path, nil)
	case BackendBadger:
		return NewBadgerStore(opts.Path, nil)
	default:
		return nil, fmt.Errorf("unsupported version store backend: %s", opts.Backend)
	}
}

// sortChain orders records ascending by version timestamp. Backends sort on
// read defensively so out-of-order arrival from upstream extraction never
// surfaces to readers.
func sortChain(records []*types.VersionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp().Before(records[j].Timestamp())
	})
}

// validateAppend checks the shared append contract.
func validateAppend(record *types.VersionRecord) error {
	if record == nil {
		return types.ErrUnknownKind
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.VersionID() == "" {
		return ErrMissingVersionID
	}
	return nil
}

// latestOf returns the last element of an ascending chain, or nil.
func latestOf(records []*types.VersionRecord) *types.VersionRecord {
	if len(records) == 0 {
		return nil
	}
	return records[len(records)-1]
}
