// Package temporal implements the read side of the version store:
// point-in-time queries, snapshot reconstruction and diffing, temporal
// path-finding, concept evolution tracing, and timeline aggregation.
//
// Every operation is a pure read over version chains; nothing in this
// package writes history.
package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/soundprediction/tempograph/pkg/changedetect"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// Engine answers temporal queries from version store history. The graph
// store collaborator is only consulted for path traversal; it may be nil
// when path queries are not needed.
type Engine struct {
	store    versionstore.Store
	graph    driver.GraphStore
	detector *changedetect.Detector
	logger   *slog.Logger
}

// NewEngine creates a query engine over store.
func NewEngine(store versionstore.Store, graph driver.GraphStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		graph:    graph,
		detector: changedetect.New(),
		logger:   logger,
	}
}

// EntitiesAtTime returns, for every stable entity, the version active at the
// given instant, optionally restricted to entities carrying the entityType
// label. Entities with no active version at that time are omitted. A
// positive limit truncates the result after the full filter.
func (e *Engine) EntitiesAtTime(ctx context.Context, entityType string, at time.Time, limit int) ([]*types.Entity, error) {
	ids, err := e.store.StableIDs(ctx, types.KindEntity)
	if err != nil {
		return nil, err
	}

	var out []*types.Entity
	for _, id := range ids {
		entity, err := e.entityAt(ctx, id, at)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		if entityType != "" && !entity.HasLabel(entityType) {
			continue
		}
		out = append(out, entity)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// entityAt resolves the version of one stable entity active at the instant:
// the latest version with ValidFrom <= at and (ValidTo nil or ValidTo > at).
func (e *Engine) entityAt(ctx context.Context, stableID string, at time.Time) (*types.Entity, error) {
	history, err := e.store.History(ctx, types.KindEntity, stableID)
	if err != nil {
		return nil, err
	}
	var active *types.Entity
	for _, record := range history {
		if record.Entity != nil && record.Entity.ActiveAt(at) {
			active = record.Entity
		}
	}
	return active, nil
}

// relationshipAt resolves the version of one relationship active at the instant.
func (e *Engine) relationshipAt(ctx context.Context, stableID string, at time.Time) (*types.Relationship, error) {
	history, err := e.store.History(ctx, types.KindRelationship, stableID)
	if err != nil {
		return nil, err
	}
	var active *types.Relationship
	for _, record := range history {
		if record.Relationship != nil && record.Relationship.ActiveAt(at) {
			active = record.Relationship
		}
	}
	return active, nil
}

// SnapshotOptions restricts what a snapshot contains.
type SnapshotOptions struct {
	// EntityTypes restricts entities to those carrying any listed label.
	EntityTypes []string
	// RelationshipTypes restricts relationships to the listed types.
	RelationshipTypes []string
	// IncludeInactive includes every version regardless of the time
	// filter, for full-history audits.
	IncludeInactive bool
}

// Snapshot is the graph state whose validity intervals contain an instant.
type Snapshot struct {
	At            time.Time             `json:"at"`
	Entities      []*types.Entity       `json:"entities"`
	Relationships []*types.Relationship `json:"relationships"`
}

// Snapshot reconstructs the full graph state at an instant.
func (e *Engine) Snapshot(ctx context.Context, at time.Time, opts *SnapshotOptions) (*Snapshot, error) {
	if opts == nil {
		opts = &SnapshotOptions{}
	}

	snapshot := &Snapshot{At: at}

	entityIDs, err := e.store.StableIDs(ctx, types.KindEntity)
	if err != nil {
		return nil, err
	}
	for _, id := range entityIDs {
		if opts.IncludeInactive {
			history, err := e.store.History(ctx, types.KindEntity, id)
			if err != nil {
				return nil, err
			}
			for _, record := range history {
				if record.Entity != nil && matchesAnyLabel(record.Entity, opts.EntityTypes) {
					snapshot.Entities = append(snapshot.Entities, record.Entity)
				}
			}
			continue
		}
		entity, err := e.entityAt(ctx, id, at)
		if err != nil {
			return nil, err
		}
		if entity != nil && matchesAnyLabel(entity, opts.EntityTypes) {
			snapshot.Entities = append(snapshot.Entities, entity)
		}
	}

	relIDs, err := e.store.StableIDs(ctx, types.KindRelationship)
	if err != nil {
		return nil, err
	}
	for _, id := range relIDs {
		if opts.IncludeInactive {
			history, err := e.store.History(ctx, types.KindRelationship, id)
			if err != nil {
				return nil, err
			}
			for _, record := range history {
				if record.Relationship != nil && matchesRelType(record.Relationship, opts.RelationshipTypes) {
					snapshot.Relationships = append(snapshot.Relationships, record.Relationship)
				}
			}
			continue
		}
		rel, err := e.relationshipAt(ctx, id, at)
		if err != nil {
			return nil, err
		}
		if rel != nil && matchesRelType(rel, opts.RelationshipTypes) {
			snapshot.Relationships = append(snapshot.Relationships, rel)
		}
	}

	sort.Slice(snapshot.Entities, func(i, j int) bool {
		return snapshot.Entities[i].EntityID < snapshot.Entities[j].EntityID
	})
	sort.Slice(snapshot.Relationships, func(i, j int) bool {
		return snapshot.Relationships[i].ID < snapshot.Relationships[j].ID
	})
	return snapshot, nil
}

func matchesAnyLabel(entity *types.Entity, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, label := range labels {
		if entity.HasLabel(label) {
			return true
		}
	}
	return false
}

func matchesRelType(rel *types.Relationship, relTypes []string) bool {
	if len(relTypes) == 0 {
		return true
	}
	for _, t := range relTypes {
		if rel.Type == t {
			return true
		}
	}
	return false
}

// RelationshipKey identifies a relationship across snapshots. At most one
// relationship of a given type between two nodes is meaningful for diffing;
// parallel same-type relationships between the same endpoints collapse
// under this key.
type RelationshipKey struct {
	SourceID string `json:"source_id"`
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

func (k RelationshipKey) String() string {
	return fmt.Sprintf("%s-[%s]->%s", k.SourceID, k.Type, k.TargetID)
}

// EntityDiff pairs the two versions of an entity that changed between
// snapshots with their property-level change set.
type EntityDiff struct {
	EntityID string           `json:"entity_id"`
	Before   *types.Entity    `json:"before"`
	After    *types.Entity    `json:"after"`
	Changes  *types.ChangeSet `json:"changes"`
}

// RelationshipDiff pairs the two versions of a relationship that changed.
type RelationshipDiff struct {
	Key     RelationshipKey     `json:"key"`
	Before  *types.Relationship `json:"before"`
	After   *types.Relationship `json:"after"`
	Changes *types.ChangeSet    `json:"changes"`
}

// SnapshotDiff partitions two snapshots into added, removed, and changed
// entities and relationships, with scalar counts alongside the full lists.
type SnapshotDiff struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	AddedEntities   []*types.Entity `json:"added_entities"`
	RemovedEntities []*types.Entity `json:"removed_entities"`
	ChangedEntities []EntityDiff    `json:"changed_entities"`

	AddedRelationships   []*types.Relationship `json:"added_relationships"`
	RemovedRelationships []*types.Relationship `json:"removed_relationships"`
	ChangedRelationships []RelationshipDiff    `json:"changed_relationships"`

	AddedEntitiesCount        int `json:"added_entities_count"`
	RemovedEntitiesCount      int `json:"removed_entities_count"`
	ChangedEntitiesCount      int `json:"changed_entities_count"`
	AddedRelationshipsCount   int `json:"added_relationships_count"`
	RemovedRelationshipsCount int `json:"removed_relationships_count"`
	ChangedRelationshipsCount int `json:"changed_relationships_count"`
}

// CompareSnapshots computes snapshot(t1) and snapshot(t2) independently and
// diffs them. It is a pure function of the two snapshots.
func (e *Engine) CompareSnapshots(ctx context.Context, t1, t2 time.Time, opts *SnapshotOptions) (*SnapshotDiff, error) {
	before, err := e.Snapshot(ctx, t1, opts)
	if err != nil {
		return nil, err
	}
	after, err := e.Snapshot(ctx, t2, opts)
	if err != nil {
		return nil, err
	}
	return e.diffSnapshots(before, after), nil
}

func (e *Engine) diffSnapshots(before, after *Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{From: before.At, To: after.At}

	beforeEntities := map[string]*types.Entity{}
	for _, entity := range before.Entities {
		beforeEntities[entity.EntityID] = entity
	}
	afterEntities := map[string]*types.Entity{}
	for _, entity := range after.Entities {
		afterEntities[entity.EntityID] = entity
	}

	for _, entity := range after.Entities {
		prev, existed := beforeEntities[entity.EntityID]
		if !existed {
			diff.AddedEntities = append(diff.AddedEntities, entity)
			continue
		}
		if changes := e.detector.CompareEntities(entity, prev); changes != nil {
			diff.ChangedEntities = append(diff.ChangedEntities, EntityDiff{
				EntityID: entity.EntityID,
				Before:   prev,
				After:    entity,
				Changes:  changes,
			})
		}
	}
	for _, entity := range before.Entities {
		if _, still := afterEntities[entity.EntityID]; !still {
			diff.RemovedEntities = append(diff.RemovedEntities, entity)
		}
	}

	beforeRels := map[RelationshipKey]*types.Relationship{}
	for _, rel := range before.Relationships {
		beforeRels[relKey(rel)] = rel
	}
	afterRels := map[RelationshipKey]*types.Relationship{}
	for _, rel := range after.Relationships {
		afterRels[relKey(rel)] = rel
	}

	for _, rel := range after.Relationships {
		key := relKey(rel)
		prev, existed := beforeRels[key]
		if !existed {
			diff.AddedRelationships = append(diff.AddedRelationships, rel)
			continue
		}
		if changes := e.detector.CompareRelationships(rel, prev); changes != nil {
			diff.ChangedRelationships = append(diff.ChangedRelationships, RelationshipDiff{
				Key:     key,
				Before:  prev,
				After:   rel,
				Changes: changes,
			})
		}
	}
	for _, rel := range before.Relationships {
		if _, still := afterRels[relKey(rel)]; !still {
			diff.RemovedRelationships = append(diff.RemovedRelationships, rel)
		}
	}

	diff.AddedEntitiesCount = len(diff.AddedEntities)
	diff.RemovedEntitiesCount = len(diff.RemovedEntities)
	diff.ChangedEntitiesCount = len(diff.ChangedEntities)
	diff.AddedRelationshipsCount = len(diff.AddedRelationships)
	diff.RemovedRelationshipsCount = len(diff.RemovedRelationships)
	diff.ChangedRelationshipsCount = len(diff.ChangedRelationships)
	return diff
}

func relKey(rel *types.Relationship) RelationshipKey {
	return RelationshipKey{SourceID: rel.SourceID, Type: rel.Type, TargetID: rel.TargetID}
}
