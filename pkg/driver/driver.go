// Package driver defines the narrow graph-store interface the temporal core
// consumes, plus its implementations: an in-memory store for tests and
// tooling, a Neo4j-backed store, and a circuit-breaking wrapper.
//
// The temporal core never mutates the graph store except through
// UpdateEntity / AddEntityMetadata / AddRelationshipMetadata during
// resolution application.
package driver

import (
	"context"
	"errors"

	"github.com/soundprediction/tempograph/pkg/types"
)

var (
	// ErrEntityNotFound is returned when an entity is not in the store.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrRelationshipNotFound is returned when a relationship is not in the store.
	ErrRelationshipNotFound = errors.New("relationship not found")
)

// PathElement is one step of a graph path: either a node or the
// relationship connecting it to the next node.
type PathElement struct {
	Entity       *types.Entity       `json:"entity,omitempty"`
	Relationship *types.Relationship `json:"relationship,omitempty"`
}

// Path is a flat alternating node/relationship sequence.
type Path []PathElement

// EntityReader provides read access to current entities.
type EntityReader interface {
	// GetEntity retrieves a single entity by ID.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// GetEntitiesByType retrieves entities carrying the given label.
	GetEntitiesByType(ctx context.Context, entityType string) ([]*types.Entity, error)

	// GetEntities retrieves up to limit entities.
	GetEntities(ctx context.Context, limit int) ([]*types.Entity, error)

	// GetEntitiesByProperty retrieves entities whose property key equals value.
	GetEntitiesByProperty(ctx context.Context, key string, value interface{}) ([]*types.Entity, error)
}

// EntityWriter provides the write operations resolution application uses.
type EntityWriter interface {
	// UpdateEntity applies a property patch to an entity.
	UpdateEntity(ctx context.Context, id string, patch map[string]interface{}) error

	// AddEntityMetadata merges metadata into an entity without replacing
	// existing properties.
	AddEntityMetadata(ctx context.Context, id string, meta map[string]interface{}) error
}

// RelationshipReader provides read access to current relationships.
type RelationshipReader interface {
	// GetRelationships retrieves all relationships touching an entity.
	GetRelationships(ctx context.Context, entityID string) ([]*types.Relationship, error)

	// GetOutgoingRelationships retrieves relationships from an entity,
	// optionally filtered by type ("" = all).
	GetOutgoingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error)

	// GetIncomingRelationships retrieves relationships into an entity,
	// optionally filtered by type ("" = all).
	GetIncomingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error)
}

// RelationshipWriter mutates relationship metadata during resolution.
type RelationshipWriter interface {
	// AddRelationshipMetadata merges metadata into a relationship.
	AddRelationshipMetadata(ctx context.Context, id string, meta map[string]interface{}) error
}

// PathFinder provides bounded graph traversal.
type PathFinder interface {
	// CheckDirectConnection reports whether any relationship directly
	// connects the two entities, in either direction.
	CheckDirectConnection(ctx context.Context, id1, id2 string) (bool, error)

	// FindPaths returns every simple path between two entities of at most
	// maxLength relationships. No path is an empty slice, not an error.
	FindPaths(ctx context.Context, id1, id2 string, maxLength int) ([]Path, error)
}

// GraphStore composes the full collaborator surface the temporal core
// consumes. Implementations live elsewhere; the core treats the store as an
// external system.
type GraphStore interface {
	EntityReader
	EntityWriter
	RelationshipReader
	RelationshipWriter
	PathFinder

	// Close releases store resources.
	Close(ctx context.Context) error
}
