package tempograph

import (
	"context"
	"time"

	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/evolution"
	"github.com/soundprediction/tempograph/pkg/temporal"
	"github.com/soundprediction/tempograph/pkg/types"
)

// This file defines focused interfaces that follow the Interface Segregation Principle.
// Consumers should depend on the smallest interface that meets their needs.

// ChangeTracker records entity and relationship state changes as immutable
// versions. Use this interface when you only feed new states in.
type ChangeTracker interface {
	// TrackEntityChange records a new entity state as a version.
	TrackEntityChange(ctx context.Context, entity *types.Entity, opts *evolution.TrackOptions) (*evolution.TrackResult, error)

	// TrackRelationshipChange records a new relationship state as a version.
	TrackRelationshipChange(ctx context.Context, rel *types.Relationship, opts *evolution.TrackOptions) (*evolution.TrackResult, error)
}

// HistoryReader provides read access to raw version chains.
type HistoryReader interface {
	// EntityHistory returns every version of an entity, ascending.
	EntityHistory(ctx context.Context, entityID string) ([]*types.VersionRecord, error)

	// RelationshipHistory returns every version of a relationship, ascending.
	RelationshipHistory(ctx context.Context, relationshipID string) ([]*types.VersionRecord, error)
}

// TemporalQuerier answers point-in-time and evolution queries over the
// version history. Use this interface for read-only analysis.
type TemporalQuerier interface {
	// EntitiesAtTime returns the entity states active at an instant.
	EntitiesAtTime(ctx context.Context, entityType string, at time.Time, limit int) ([]*types.Entity, error)

	// Snapshot reconstructs the full graph state at an instant.
	Snapshot(ctx context.Context, at time.Time, opts *temporal.SnapshotOptions) (*temporal.Snapshot, error)

	// CompareSnapshots reconstructs the graph at two instants and diffs them.
	CompareSnapshots(ctx context.Context, t1, t2 time.Time, opts *temporal.SnapshotOptions) (*temporal.SnapshotDiff, error)

	// FindTemporalPath finds relationship paths between two identifiers.
	FindTemporalPath(ctx context.Context, startID, endID string, maxHops int, includeIndirect bool) ([]temporal.TemporalPath, error)

	// TraceConceptEvolution traces how a named concept changed over a range.
	TraceConceptEvolution(ctx context.Context, name string, from, to time.Time, includeRelated bool) (*temporal.ConceptEvolution, error)

	// Timeline counts entity creation events per period per label.
	Timeline(ctx context.Context, entityType string, from, to time.Time, granularity temporal.Granularity) (*temporal.Timeline, error)
}

// ConflictManager runs the contradiction pipeline end to end.
type ConflictManager interface {
	// DetectContradictions runs conflict detection over a batch of entities.
	DetectContradictions(ctx context.Context, entities []*types.Entity) ([]*types.Contradiction, error)

	// ResolveContradictions resolves conflicts with a strategy, or each
	// conflict's default strategy when strategy is empty.
	ResolveContradictions(ctx context.Context, conflicts []*types.Contradiction, strategy types.ResolutionStrategy) ([]*types.Resolution, error)

	// ApplyResolutions writes resolution outcomes back to the graph store.
	ApplyResolutions(ctx context.Context, resolutions []*types.Resolution) (*contradiction.ApplyResult, error)

	// ConflictLog exposes the contradiction audit log.
	ConflictLog() contradiction.Log
}

// TempoGraph is the full client surface composed from the focused
// interfaces.
type TempoGraph interface {
	ChangeTracker
	HistoryReader
	TemporalQuerier
	ConflictManager

	// Close closes all connections and cleans up resources.
	Close(ctx context.Context) error
}

// Ensure Client implements the composed interface.
var _ TempoGraph = (*Client)(nil)
