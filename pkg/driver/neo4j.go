package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/soundprediction/tempograph/pkg/types"
)

// Neo4jStore implements GraphStore against a Neo4j database. Entities are
// :Entity nodes keyed by entity_id; relationships are :RELATES edges keyed
// by id with their domain type in a rel_type property, so arbitrary type
// strings never require dynamic Cypher.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a Neo4j-backed graph store.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: client, database: database}, nil
}

func (n *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// GetEntity implements EntityReader.
func (n *Neo4jStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity {entity_id: $id})
			RETURN e
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, ErrEntityNotFound
	}
	return entityFromRecord(records[0], "e")
}

// GetEntitiesByType implements EntityReader.
func (n *Neo4jStore) GetEntitiesByType(ctx context.Context, entityType string) ([]*types.Entity, error) {
	return n.queryEntities(ctx, `
		MATCH (e:Entity)
		WHERE $label IN e.labels
		RETURN e
		ORDER BY e.entity_id
	`, map[string]any{"label": entityType})
}

// GetEntities implements EntityReader.
func (n *Neo4jStore) GetEntities(ctx context.Context, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		return nil, types.ErrInvalidLimit
	}
	return n.queryEntities(ctx, `
		MATCH (e:Entity)
		RETURN e
		ORDER BY e.entity_id
		LIMIT $limit
	`, map[string]any{"limit": limit})
}

// GetEntitiesByProperty implements EntityReader.
func (n *Neo4jStore) GetEntitiesByProperty(ctx context.Context, key string, value interface{}) ([]*types.Entity, error) {
	return n.queryEntities(ctx, `
		MATCH (e:Entity)
		WHERE e[$key] = $value
		RETURN e
		ORDER BY e.entity_id
	`, map[string]any{"key": key, "value": value})
}

func (n *Neo4jStore) queryEntities(ctx context.Context, query string, params map[string]any) ([]*types.Entity, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	entities := make([]*types.Entity, 0, len(records))
	for _, record := range records {
		entity, err := entityFromRecord(record, "e")
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// UpdateEntity implements EntityWriter.
func (n *Neo4jStore) UpdateEntity(ctx context.Context, id string, patch map[string]interface{}) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity {entity_id: $id})
			SET e += $patch
			RETURN e.entity_id
		`, map[string]any{"id": id, "patch": patch})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", id, err)
	}
	return nil
}

// AddEntityMetadata implements EntityWriter. Metadata keys are stored on the
// node under a meta_ prefix so they never collide with extracted properties.
func (n *Neo4jStore) AddEntityMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	prefixed := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		prefixed["meta_"+k] = v
	}
	return n.UpdateEntity(ctx, id, prefixed)
}

// GetRelationships implements RelationshipReader.
func (n *Neo4jStore) GetRelationships(ctx context.Context, entityID string) ([]*types.Relationship, error) {
	return n.queryRelationships(ctx, `
		MATCH (a:Entity {entity_id: $id})-[r:RELATES]-(b:Entity)
		RETURN r
		ORDER BY r.id
	`, map[string]any{"id": entityID})
}

// GetOutgoingRelationships implements RelationshipReader.
func (n *Neo4jStore) GetOutgoingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	return n.queryRelationships(ctx, `
		MATCH (a:Entity {entity_id: $id})-[r:RELATES]->(b:Entity)
		WHERE $rel_type = '' OR r.rel_type = $rel_type
		RETURN r
		ORDER BY r.id
	`, map[string]any{"id": entityID, "rel_type": relType})
}

// GetIncomingRelationships implements RelationshipReader.
func (n *Neo4jStore) GetIncomingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	return n.queryRelationships(ctx, `
		MATCH (a:Entity)-[r:RELATES]->(b:Entity {entity_id: $id})
		WHERE $rel_type = '' OR r.rel_type = $rel_type
		RETURN r
		ORDER BY r.id
	`, map[string]any{"id": entityID, "rel_type": relType})
}

func (n *Neo4jStore) queryRelationships(ctx context.Context, query string, params map[string]any) ([]*types.Relationship, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	rels := make([]*types.Relationship, 0, len(records))
	for _, record := range records {
		value, found := record.Get("r")
		if !found {
			continue
		}
		dbRel, ok := value.(dbtype.Relationship)
		if !ok {
			return nil, fmt.Errorf("unexpected type for relationship: got %T", value)
		}
		rels = append(rels, relationshipFromProps(dbRel.Props))
	}
	return rels, nil
}

// AddRelationshipMetadata implements RelationshipWriter.
func (n *Neo4jStore) AddRelationshipMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	prefixed := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		prefixed["meta_"+k] = v
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH ()-[r:RELATES {id: $id}]->()
			SET r += $patch
			RETURN r.id
		`, map[string]any{"id": id, "patch": prefixed})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to update relationship %s: %w", id, err)
	}
	return nil
}

// CheckDirectConnection implements PathFinder.
func (n *Neo4jStore) CheckDirectConnection(ctx context.Context, id1, id2 string) (bool, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Entity {entity_id: $id1})-[r:RELATES]-(b:Entity {entity_id: $id2})
			RETURN count(r) AS c
		`, map[string]any{"id1": id1, "id2": id2})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return false, err
	}

	record := result.(*db.Record)
	count, _ := record.Get("c")
	c, ok := count.(int64)
	return ok && c > 0, nil
}

// FindPaths implements PathFinder. Cypher variable-length bounds cannot be
// parameterized, so maxLength is formatted into the pattern after clamping.
func (n *Neo4jStore) FindPaths(ctx context.Context, id1, id2 string, maxLength int) ([]Path, error) {
	if maxLength <= 0 {
		return []Path{}, nil
	}
	if maxLength > 10 {
		maxLength = 10
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH p = (a:Entity {entity_id: $id1})-[:RELATES*1..%d]-(b:Entity {entity_id: $id2})
		RETURN p
		LIMIT 100
	`, maxLength)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id1": id1, "id2": id2})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	paths := make([]Path, 0, len(records))
	for _, record := range records {
		value, found := record.Get("p")
		if !found {
			continue
		}
		dbPath, ok := value.(dbtype.Path)
		if !ok {
			return nil, fmt.Errorf("unexpected type for path: got %T", value)
		}
		paths = append(paths, pathFromDBPath(dbPath))
	}
	return paths, nil
}

// Close implements GraphStore.
func (n *Neo4jStore) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// entityFromRecord extracts an Entity from a node column.
func entityFromRecord(record *db.Record, key string) (*types.Entity, error) {
	value, found := record.Get(key)
	if !found {
		return nil, ErrEntityNotFound
	}
	node, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected type for node: got %T, expected dbtype.Node", value)
	}
	return entityFromProps(node.Props), nil
}

// entityFromProps maps node properties back into an Entity. Reserved keys
// carry identity and temporal fields; everything else is a domain property.
func entityFromProps(props map[string]any) *types.Entity {
	entity := &types.Entity{Properties: map[string]interface{}{}}
	for k, v := range props {
		switch k {
		case "entity_id":
			entity.EntityID, _ = v.(string)
		case "labels":
			entity.Labels = toStringSlice(v)
		case "valid_from":
			if t, ok := asTime(v); ok {
				entity.ValidFrom = t
			}
		case "valid_to":
			if t, ok := asTime(v); ok {
				entity.ValidTo = &t
			}
		default:
			entity.Properties[k] = v
		}
	}
	return entity
}

// relationshipFromProps maps edge properties back into a Relationship.
func relationshipFromProps(props map[string]any) *types.Relationship {
	rel := &types.Relationship{Properties: map[string]interface{}{}}
	for k, v := range props {
		switch k {
		case "id":
			rel.ID, _ = v.(string)
		case "source_id":
			rel.SourceID, _ = v.(string)
		case "target_id":
			rel.TargetID, _ = v.(string)
		case "rel_type":
			rel.Type, _ = v.(string)
		case "valid_from":
			if t, ok := asTime(v); ok {
				rel.ValidFrom = t
			}
		case "valid_to":
			if t, ok := asTime(v); ok {
				rel.ValidTo = &t
			}
		default:
			rel.Properties[k] = v
		}
	}
	return rel
}

func pathFromDBPath(dbPath dbtype.Path) Path {
	path := make(Path, 0, len(dbPath.Nodes)+len(dbPath.Relationships))
	for i, node := range dbPath.Nodes {
		path = append(path, PathElement{Entity: entityFromProps(node.Props)})
		if i < len(dbPath.Relationships) {
			path = append(path, PathElement{
				Relationship: relationshipFromProps(dbPath.Relationships[i].Props),
			})
		}
	}
	return path
}

func toStringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case dbtype.Time:
		return t.Time(), true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
