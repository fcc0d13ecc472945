package driver

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/soundprediction/tempograph/pkg/types"
)

// MemoryStore is an in-process GraphStore used by tests and the CLI demo
// commands. It holds the current state of each entity and relationship, not
// version history; history belongs to the version store.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]*types.Entity
	relationships map[string]*types.Relationship
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      map[string]*types.Entity{},
		relationships: map[string]*types.Relationship{},
	}
}

// PutEntity inserts or replaces an entity's current state.
func (s *MemoryStore) PutEntity(entity *types.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.EntityID] = entity.Clone()
}

// PutRelationship inserts or replaces a relationship's current state.
func (s *MemoryStore) PutRelationship(rel *types.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.ID] = rel.Clone()
}

// GetEntity implements EntityReader.
func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return entity.Clone(), nil
}

// GetEntitiesByType implements EntityReader.
func (s *MemoryStore) GetEntitiesByType(ctx context.Context, entityType string) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Entity
	for _, entity := range s.entities {
		if entity.HasLabel(entityType) {
			out = append(out, entity.Clone())
		}
	}
	sortEntities(out)
	return out, nil
}

// GetEntities implements EntityReader. Limit truncates after the full scan.
func (s *MemoryStore) GetEntities(ctx context.Context, limit int) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Entity, 0, len(s.entities))
	for _, entity := range s.entities {
		out = append(out, entity.Clone())
	}
	sortEntities(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetEntitiesByProperty implements EntityReader.
func (s *MemoryStore) GetEntitiesByProperty(ctx context.Context, key string, value interface{}) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Entity
	for _, entity := range s.entities {
		if entity.Properties == nil {
			continue
		}
		if stored, ok := entity.Properties[key]; ok && reflect.DeepEqual(stored, value) {
			out = append(out, entity.Clone())
		}
	}
	sortEntities(out)
	return out, nil
}

// UpdateEntity implements EntityWriter.
func (s *MemoryStore) UpdateEntity(ctx context.Context, id string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return ErrEntityNotFound
	}
	if entity.Properties == nil {
		entity.Properties = map[string]interface{}{}
	}
	for k, v := range patch {
		entity.Properties[k] = v
	}
	return nil
}

// AddEntityMetadata implements EntityWriter. Metadata lives under a
// "metadata" property map so it never collides with extracted properties.
func (s *MemoryStore) AddEntityMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return ErrEntityNotFound
	}
	if entity.Properties == nil {
		entity.Properties = map[string]interface{}{}
	}
	existing, _ := entity.Properties["metadata"].(map[string]interface{})
	if existing == nil {
		existing = map[string]interface{}{}
	}
	for k, v := range meta {
		existing[k] = v
	}
	entity.Properties["metadata"] = existing
	return nil
}

// GetRelationships implements RelationshipReader.
func (s *MemoryStore) GetRelationships(ctx context.Context, entityID string) ([]*types.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Relationship
	for _, rel := range s.relationships {
		if rel.SourceID == entityID || rel.TargetID == entityID {
			out = append(out, rel.Clone())
		}
	}
	sortRelationships(out)
	return out, nil
}

// GetOutgoingRelationships implements RelationshipReader.
func (s *MemoryStore) GetOutgoingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Relationship
	for _, rel := range s.relationships {
		if rel.SourceID != entityID {
			continue
		}
		if relType != "" && rel.Type != relType {
			continue
		}
		out = append(out, rel.Clone())
	}
	sortRelationships(out)
	return out, nil
}

// GetIncomingRelationships implements RelationshipReader.
func (s *MemoryStore) GetIncomingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Relationship
	for _, rel := range s.relationships {
		if rel.TargetID != entityID {
			continue
		}
		if relType != "" && rel.Type != relType {
			continue
		}
		out = append(out, rel.Clone())
	}
	sortRelationships(out)
	return out, nil
}

// AddRelationshipMetadata implements RelationshipWriter.
func (s *MemoryStore) AddRelationshipMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[id]
	if !ok {
		return ErrRelationshipNotFound
	}
	if rel.Properties == nil {
		rel.Properties = map[string]interface{}{}
	}
	existing, _ := rel.Properties["metadata"].(map[string]interface{})
	if existing == nil {
		existing = map[string]interface{}{}
	}
	for k, v := range meta {
		existing[k] = v
	}
	rel.Properties["metadata"] = existing
	return nil
}

// CheckDirectConnection implements PathFinder.
func (s *MemoryStore) CheckDirectConnection(ctx context.Context, id1, id2 string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.relationships {
		if (rel.SourceID == id1 && rel.TargetID == id2) || (rel.SourceID == id2 && rel.TargetID == id1) {
			return true, nil
		}
	}
	return false, nil
}

// FindPaths implements PathFinder with a depth-bounded DFS over simple
// paths. Traversal follows relationships in both directions.
func (s *MemoryStore) FindPaths(ctx context.Context, id1, id2 string, maxLength int) ([]Path, error) {
	if maxLength <= 0 {
		return []Path{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start, ok := s.entities[id1]
	if !ok {
		return []Path{}, nil
	}
	if _, ok := s.entities[id2]; !ok {
		return []Path{}, nil
	}

	var paths []Path
	visited := map[string]bool{id1: true}
	current := Path{{Entity: start.Clone()}}
	s.dfs(id1, id2, maxLength, visited, current, &paths)
	return paths, nil
}

func (s *MemoryStore) dfs(at, goal string, remaining int, visited map[string]bool, current Path, paths *[]Path) {
	if at == goal && len(current) > 1 {
		path := make(Path, len(current))
		copy(path, current)
		*paths = append(*paths, path)
		return
	}
	if remaining == 0 {
		return
	}

	for _, rel := range s.sortedRelationships() {
		var next string
		switch at {
		case rel.SourceID:
			next = rel.TargetID
		case rel.TargetID:
			next = rel.SourceID
		default:
			continue
		}
		if visited[next] && next != goal {
			continue
		}
		nextEntity, ok := s.entities[next]
		if !ok {
			continue
		}

		visited[next] = true
		step := make(Path, len(current), len(current)+2)
		copy(step, current)
		step = append(step,
			PathElement{Relationship: rel.Clone()},
			PathElement{Entity: nextEntity.Clone()})
		s.dfs(next, goal, remaining-1, visited, step, paths)
		visited[next] = false
	}
}

func (s *MemoryStore) sortedRelationships() []*types.Relationship {
	out := make([]*types.Relationship, 0, len(s.relationships))
	for _, rel := range s.relationships {
		out = append(out, rel)
	}
	sortRelationships(out)
	return out
}

// Close implements GraphStore.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func sortEntities(entities []*types.Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })
}

func sortRelationships(rels []*types.Relationship) {
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
}
