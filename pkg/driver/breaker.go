package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/tempograph/pkg/types"
)

// BreakerConfig holds circuit breaker settings for a wrapped graph store.
type BreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// BreakerStore wraps a GraphStore with circuit breaking so a failing
// external store cannot stall resolution application indefinitely.
type BreakerStore struct {
	store GraphStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore creates a circuit-breaking wrapper around store.
func NewBreakerStore(store GraphStore, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        "graph-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("graph store circuit breaker state change",
				"name", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerStore{
		store: store,
		cb:    gobreaker.NewCircuitBreaker(st),
	}
}

func (b *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// GetEntity implements EntityReader.
func (b *BreakerStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetEntity(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.Entity), nil
}

// GetEntitiesByType implements EntityReader.
func (b *BreakerStore) GetEntitiesByType(ctx context.Context, entityType string) ([]*types.Entity, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetEntitiesByType(ctx, entityType)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Entity), nil
}

// GetEntities implements EntityReader.
func (b *BreakerStore) GetEntities(ctx context.Context, limit int) ([]*types.Entity, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetEntities(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Entity), nil
}

// GetEntitiesByProperty implements EntityReader.
func (b *BreakerStore) GetEntitiesByProperty(ctx context.Context, key string, value interface{}) ([]*types.Entity, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetEntitiesByProperty(ctx, key, value)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Entity), nil
}

// UpdateEntity implements EntityWriter.
func (b *BreakerStore) UpdateEntity(ctx context.Context, id string, patch map[string]interface{}) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.store.UpdateEntity(ctx, id, patch)
	})
	return err
}

// AddEntityMetadata implements EntityWriter.
func (b *BreakerStore) AddEntityMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.store.AddEntityMetadata(ctx, id, meta)
	})
	return err
}

// GetRelationships implements RelationshipReader.
func (b *BreakerStore) GetRelationships(ctx context.Context, entityID string) ([]*types.Relationship, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetRelationships(ctx, entityID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Relationship), nil
}

// GetOutgoingRelationships implements RelationshipReader.
func (b *BreakerStore) GetOutgoingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetOutgoingRelationships(ctx, entityID, relType)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Relationship), nil
}

// GetIncomingRelationships implements RelationshipReader.
func (b *BreakerStore) GetIncomingRelationships(ctx context.Context, entityID, relType string) ([]*types.Relationship, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.GetIncomingRelationships(ctx, entityID, relType)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.Relationship), nil
}

// AddRelationshipMetadata implements RelationshipWriter.
func (b *BreakerStore) AddRelationshipMetadata(ctx context.Context, id string, meta map[string]interface{}) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.store.AddRelationshipMetadata(ctx, id, meta)
	})
	return err
}

// CheckDirectConnection implements PathFinder.
func (b *BreakerStore) CheckDirectConnection(ctx context.Context, id1, id2 string) (bool, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.CheckDirectConnection(ctx, id1, id2)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// FindPaths implements PathFinder.
func (b *BreakerStore) FindPaths(ctx context.Context, id1, id2 string, maxLength int) ([]Path, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.store.FindPaths(ctx, id1, id2, maxLength)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Path), nil
}

// Close implements GraphStore.
func (b *BreakerStore) Close(ctx context.Context) error {
	return b.store.Close(ctx)
}

// compile-time interface checks
var (
	_ GraphStore = (*MemoryStore)(nil)
	_ GraphStore = (*Neo4jStore)(nil)
	_ GraphStore = (*BreakerStore)(nil)
)
