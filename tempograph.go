package tempograph

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/tempograph/pkg/alert"
	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/evolution"
	"github.com/soundprediction/tempograph/pkg/temporal"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// Config holds configuration for the tempograph client.
type Config struct {
	// Tracking gates what the evolution tracker records.
	Tracking evolution.Config
	// Contradiction tunes conflict detection and resolution.
	Contradiction contradiction.Config
}

// DefaultConfig enables all tracking with default thresholds.
func DefaultConfig() *Config {
	return &Config{
		Tracking:      evolution.DefaultConfig(),
		Contradiction: contradiction.DefaultConfig(),
	}
}

// Client is the main entry point. It composes the evolution tracker, the
// temporal query engine, and the contradiction system over a shared version
// store and an optional current-state graph store.
type Client struct {
	store   versionstore.Store
	graph   driver.GraphStore
	tracker *evolution.Tracker
	engine  *temporal.Engine
	system  *contradiction.System
	config  *Config
	logger  *slog.Logger
}

// NewClient creates a new tempograph client. The graph store may be nil;
// path queries and resolution write-back then return errors while version
// tracking and history queries work unaffected.
func NewClient(store versionstore.Store, graph driver.GraphStore, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	tracker := evolution.NewTracker(store, config.Tracking, logger)
	engine := temporal.NewEngine(store, graph, logger)
	system := contradiction.NewSystem(config.Contradiction, graph, tracker, nil, logger)

	return &Client{
		store:   store,
		graph:   graph,
		tracker: tracker,
		engine:  engine,
		system:  system,
		config:  config,
		logger:  logger,
	}, nil
}

// TrackEntityChange records a new entity state as a version.
func (c *Client) TrackEntityChange(ctx context.Context, entity *types.Entity, opts *evolution.TrackOptions) (*evolution.TrackResult, error) {
	return c.tracker.TrackEntityChange(ctx, entity, opts)
}

// TrackRelationshipChange records a new relationship state as a version.
func (c *Client) TrackRelationshipChange(ctx context.Context, rel *types.Relationship, opts *evolution.TrackOptions) (*evolution.TrackResult, error) {
	return c.tracker.TrackRelationshipChange(ctx, rel, opts)
}

// EntityHistory returns every version of an entity, ascending by version
// timestamp.
func (c *Client) EntityHistory(ctx context.Context, entityID string) ([]*types.VersionRecord, error) {
	return c.store.History(ctx, types.KindEntity, entityID)
}

// RelationshipHistory returns every version of a relationship, ascending by
// version timestamp.
func (c *Client) RelationshipHistory(ctx context.Context, relationshipID string) ([]*types.VersionRecord, error) {
	return c.store.History(ctx, types.KindRelationship, relationshipID)
}

// EntitiesAtTime returns the entity states active at an instant, optionally
// filtered by label.
func (c *Client) EntitiesAtTime(ctx context.Context, entityType string, at time.Time, limit int) ([]*types.Entity, error) {
	return c.engine.EntitiesAtTime(ctx, entityType, at, limit)
}

// Snapshot reconstructs the full graph state at an instant.
func (c *Client) Snapshot(ctx context.Context, at time.Time, opts *temporal.SnapshotOptions) (*temporal.Snapshot, error) {
	return c.engine.Snapshot(ctx, at, opts)
}

// CompareSnapshots reconstructs the graph at two instants and diffs them.
func (c *Client) CompareSnapshots(ctx context.Context, t1, t2 time.Time, opts *temporal.SnapshotOptions) (*temporal.SnapshotDiff, error) {
	return c.engine.CompareSnapshots(ctx, t1, t2, opts)
}

// FindTemporalPath finds relationship paths between two identifiers, each a
// version ID or a stable entity ID.
func (c *Client) FindTemporalPath(ctx context.Context, startID, endID string, maxHops int, includeIndirect bool) ([]temporal.TemporalPath, error) {
	return c.engine.FindTemporalPath(ctx, startID, endID, maxHops, includeIndirect)
}

// TraceConceptEvolution traces how a named concept changed over a date range.
func (c *Client) TraceConceptEvolution(ctx context.Context, name string, from, to time.Time, includeRelated bool) (*temporal.ConceptEvolution, error) {
	return c.engine.TraceConceptEvolution(ctx, name, from, to, includeRelated)
}

// Timeline counts entity creation events per period per label.
func (c *Client) Timeline(ctx context.Context, entityType string, from, to time.Time, granularity temporal.Granularity) (*temporal.Timeline, error) {
	return c.engine.Timeline(ctx, entityType, from, to, granularity)
}

// DetectContradictions runs conflict detection over a batch of entities and
// records every conflict in the audit log.
func (c *Client) DetectContradictions(ctx context.Context, entities []*types.Entity) ([]*types.Contradiction, error) {
	return c.system.DetectContradictions(ctx, entities)
}

// ResolveContradictions resolves conflicts with the given strategy, or each
// conflict's default strategy when strategy is empty.
func (c *Client) ResolveContradictions(ctx context.Context, conflicts []*types.Contradiction, strategy types.ResolutionStrategy) ([]*types.Resolution, error) {
	return c.system.ResolveContradictions(ctx, conflicts, strategy)
}

// ApplyResolutions writes resolution outcomes back to the graph store and
// re-records updated entities as new versions.
func (c *Client) ApplyResolutions(ctx context.Context, resolutions []*types.Resolution) (*contradiction.ApplyResult, error) {
	return c.system.ApplyResolutions(ctx, resolutions)
}

// ConflictLog exposes the contradiction audit log.
func (c *Client) ConflictLog() contradiction.Log {
	return c.system.Log()
}

// SetAlerter installs the notifier for conflicts queued for human review.
func (c *Client) SetAlerter(alerter alert.Alerter) {
	c.system.SetAlerter(alerter)
}

// Store returns the underlying version store.
func (c *Client) Store() versionstore.Store {
	return c.store
}

// Graph returns the underlying graph store, nil when none is configured.
func (c *Client) Graph() driver.GraphStore {
	return c.graph
}

// Close releases the version store and, when configured, the graph store.
func (c *Client) Close(ctx context.Context) error {
	err := c.store.Close()
	if c.graph != nil {
		if graphErr := c.graph.Close(ctx); err == nil {
			err = graphErr
		}
	}
	return err
}
