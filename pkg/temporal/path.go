package temporal

import (
	"context"
	"errors"

	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/types"
)

// ErrNoGraphStore is returned when a path query runs without a graph store
// collaborator configured.
var ErrNoGraphStore = errors.New("temporal path queries require a graph store")

// TemporalPath is one path between two specific entity versions. Elements is
// a flat alternating node/relationship sequence.
type TemporalPath struct {
	StartEntityID  string      `json:"start_entity_id"`
	EndEntityID    string      `json:"end_entity_id"`
	StartVersionID string      `json:"start_version_id"`
	EndVersionID   string      `json:"end_version_id"`
	Hops           int         `json:"hops"`
	Elements       driver.Path `json:"elements"`
}

// resolvedID is the outcome of disambiguating a caller-supplied identifier:
// a version ID resolves to exactly one stable entity and version; a stable
// ID resolves to the entity and all of its versions.
type resolvedID struct {
	stableID   string
	versionIDs []string
	isVersion  bool
}

// FindTemporalPath finds relationship paths of at most maxHops edges between
// two identifiers, each of which may be a version ID or a stable entity ID.
// Stable IDs expand over all their version IDs, producing one path record
// per version pair per graph path. When includeIndirect is false only
// direct (single-hop) connections are considered. No path found yields an
// empty slice, not an error.
func (e *Engine) FindTemporalPath(ctx context.Context, startID, endID string, maxHops int, includeIndirect bool) ([]TemporalPath, error) {
	if e.graph == nil {
		return nil, ErrNoGraphStore
	}
	if maxHops <= 0 {
		return []TemporalPath{}, nil
	}
	if !includeIndirect {
		maxHops = 1
	}

	start, err := e.resolveID(ctx, startID)
	if err != nil {
		return nil, err
	}
	end, err := e.resolveID(ctx, endID)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return []TemporalPath{}, nil
	}

	paths, err := e.graph.FindPaths(ctx, start.stableID, end.stableID, maxHops)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return []TemporalPath{}, nil
	}

	// Four cases from the version-vs-stable cross product collapse into one
	// expansion: a version ID contributes a single version, a stable ID
	// contributes all of its versions.
	out := make([]TemporalPath, 0, len(paths)*len(start.versionIDs)*len(end.versionIDs))
	for _, startVersion := range start.versionIDs {
		for _, endVersion := range end.versionIDs {
			for _, path := range paths {
				out = append(out, TemporalPath{
					StartEntityID:  start.stableID,
					EndEntityID:    end.stableID,
					StartVersionID: startVersion,
					EndVersionID:   endVersion,
					Hops:           len(path) / 2,
					Elements:       path,
				})
			}
		}
	}
	return out, nil
}

// resolveID distinguishes version IDs from stable IDs. A version ID matches
// exactly one record across all entity histories; otherwise the ID is
// treated as stable when it has any history. Unknown IDs resolve to nil.
func (e *Engine) resolveID(ctx context.Context, id string) (*resolvedID, error) {
	history, err := e.store.History(ctx, types.KindEntity, id)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		versionIDs := make([]string, 0, len(history))
		for _, record := range history {
			versionIDs = append(versionIDs, record.VersionID())
		}
		return &resolvedID{stableID: id, versionIDs: versionIDs}, nil
	}

	stableIDs, err := e.store.StableIDs(ctx, types.KindEntity)
	if err != nil {
		return nil, err
	}
	for _, stableID := range stableIDs {
		chain, err := e.store.History(ctx, types.KindEntity, stableID)
		if err != nil {
			return nil, err
		}
		for _, record := range chain {
			if record.VersionID() == id {
				return &resolvedID{stableID: stableID, versionIDs: []string{id}, isVersion: true}, nil
			}
		}
	}
	return nil, nil
}
