// Package evolution implements the single write path for entity and
// relationship version history. The tracker resolves the previous version,
// runs change detection, and appends a new immutable version only when a
// significant change exists.
package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/tempograph/pkg/changedetect"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// Config gates what the tracker records.
type Config struct {
	// TrackEntityChanges enables entity version tracking.
	TrackEntityChanges bool `mapstructure:"track_entity_changes"`
	// TrackRelationshipChanges enables relationship version tracking.
	TrackRelationshipChanges bool `mapstructure:"track_relationship_changes"`
	// TrackPropertyChanges includes property diffs in change detection.
	TrackPropertyChanges bool `mapstructure:"track_property_changes"`
	// TrackConfidenceChanges includes confidence moves in change detection.
	TrackConfidenceChanges bool `mapstructure:"track_confidence_changes"`
	// MinConfidenceDifference is the smallest confidence delta considered
	// significant.
	MinConfidenceDifference float64 `mapstructure:"min_confidence_difference"`
}

// DefaultConfig enables all tracking with the default confidence threshold.
func DefaultConfig() Config {
	return Config{
		TrackEntityChanges:       true,
		TrackRelationshipChanges: true,
		TrackPropertyChanges:     true,
		TrackConfidenceChanges:   true,
		MinConfidenceDifference:  changedetect.DefaultMinConfidenceDifference,
	}
}

// TrackResult describes the outcome of one tracking call. Expected
// data-quality failures (missing IDs, tracking disabled, no significant
// change) are reported inline rather than as errors.
type TrackResult struct {
	Tracked           bool             `json:"tracked"`
	Reason            string           `json:"reason,omitempty"`
	IsNew             bool             `json:"is_new,omitempty"`
	VersionID         string           `json:"version_id,omitempty"`
	PreviousVersionID string           `json:"previous_version_id,omitempty"`
	Timestamp         time.Time        `json:"timestamp,omitempty"`
	ChangeSource      string           `json:"change_source,omitempty"`
	ChangeType        string           `json:"change_type,omitempty"`
	Changes           *types.ChangeSet `json:"changes,omitempty"`
}

// TrackOptions carries optional per-call parameters.
type TrackOptions struct {
	// PreviousVersion overrides previous-version resolution from the store.
	PreviousVersion *types.VersionRecord
	// ChangeSource names where the new state came from (paper ID, extractor).
	ChangeSource string
	// ChangeType is "create" or "update"; defaults to "update" and is
	// forced to "create" when no previous version exists.
	ChangeType string
}

// Tracker orchestrates the version store and change detector.
type Tracker struct {
	store    versionstore.Store
	detector *changedetect.Detector
	config   Config
	logger   *slog.Logger
}

// NewTracker creates a Tracker writing to store.
func NewTracker(store versionstore.Store, config Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	detector := changedetect.New()
	if config.MinConfidenceDifference > 0 {
		detector.MinConfidenceDifference = config.MinConfidenceDifference
	}
	if !config.TrackConfidenceChanges {
		// Treat every confidence move as noise when the gate is off.
		detector.MinConfidenceDifference = 2.0
	}
	return &Tracker{
		store:    store,
		detector: detector,
		config:   config,
		logger:   logger,
	}
}

// TrackEntityChange records a new entity state as a version, diffing against
// the prior version. It returns {Tracked:false} with a reason for disabled
// tracking, missing IDs, and insignificant changes.
func (t *Tracker) TrackEntityChange(ctx context.Context, entity *types.Entity, opts *TrackOptions) (*TrackResult, error) {
	if !t.config.TrackEntityChanges {
		return &TrackResult{Tracked: false, Reason: "entity tracking disabled"}, nil
	}
	if entity == nil || entity.EntityID == "" {
		return &TrackResult{Tracked: false, Reason: "entity missing ID"}, nil
	}
	if opts == nil {
		opts = &TrackOptions{}
	}

	previous, err := t.resolvePrevious(ctx, types.KindEntity, entity.EntityID, opts)
	if err != nil {
		return nil, err
	}

	record := &types.VersionRecord{Kind: types.KindEntity, Entity: entity.Clone()}
	result, err := t.track(ctx, record, previous, opts)
	if err != nil {
		return nil, err
	}
	if result.Tracked {
		t.logger.Debug("tracked entity change",
			"entity_id", entity.EntityID, "version_id", result.VersionID, "is_new", result.IsNew)
	}
	return result, nil
}

// TrackRelationshipChange records a new relationship state as a version. It
// is structurally identical to TrackEntityChange with relationship-specific
// diffing (type and endpoints instead of labels).
func (t *Tracker) TrackRelationshipChange(ctx context.Context, rel *types.Relationship, opts *TrackOptions) (*TrackResult, error) {
	if !t.config.TrackRelationshipChanges {
		return &TrackResult{Tracked: false, Reason: "relationship tracking disabled"}, nil
	}
	if rel == nil || rel.ID == "" {
		return &TrackResult{Tracked: false, Reason: "relationship missing ID"}, nil
	}
	if opts == nil {
		opts = &TrackOptions{}
	}

	previous, err := t.resolvePrevious(ctx, types.KindRelationship, rel.ID, opts)
	if err != nil {
		return nil, err
	}

	record := &types.VersionRecord{Kind: types.KindRelationship, Relationship: rel.Clone()}
	result, err := t.track(ctx, record, previous, opts)
	if err != nil {
		return nil, err
	}
	if result.Tracked {
		t.logger.Debug("tracked relationship change",
			"relationship_id", rel.ID, "version_id", result.VersionID, "is_new", result.IsNew)
	}
	return result, nil
}

// resolvePrevious picks the explicit previous version when given, otherwise
// the latest entry in the store.
func (t *Tracker) resolvePrevious(ctx context.Context, kind types.Kind, stableID string, opts *TrackOptions) (*types.VersionRecord, error) {
	if opts.PreviousVersion != nil {
		return opts.PreviousVersion, nil
	}
	previous, err := t.store.Latest(ctx, kind, stableID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve previous version: %w", err)
	}
	return previous, nil
}

// track runs change detection, stamps temporal metadata, and appends.
// The record passed in is already a deep copy owned by the tracker.
func (t *Tracker) track(ctx context.Context, record, previous *types.VersionRecord, opts *TrackOptions) (*TrackResult, error) {
	isNew := previous == nil

	var changes *types.ChangeSet
	if !isNew {
		changes = t.detect(record, previous)
		if changes.Empty() {
			return &TrackResult{Tracked: false, Reason: "No significant changes detected"}, nil
		}
	}

	changeType := opts.ChangeType
	if changeType == "" {
		changeType = "update"
	}
	if isNew {
		changeType = "create"
	}

	meta := types.TemporalMetadata{
		VersionID:        uuid.New().String(),
		VersionTimestamp: time.Now().UTC(),
		ChangeSource:     opts.ChangeSource,
		ChangeType:       changeType,
	}
	if !isNew {
		meta.PreviousVersionID = previous.VersionID()
	}
	t.stamp(record, meta)
	record.Changes = changes

	if err := t.store.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append version: %w", err)
	}

	return &TrackResult{
		Tracked:           true,
		IsNew:             isNew,
		VersionID:         meta.VersionID,
		PreviousVersionID: meta.PreviousVersionID,
		Timestamp:         meta.VersionTimestamp,
		ChangeSource:      meta.ChangeSource,
		ChangeType:        meta.ChangeType,
		Changes:           changes,
	}, nil
}

// detect diffs the new record against the previous version of the same kind.
func (t *Tracker) detect(record, previous *types.VersionRecord) *types.ChangeSet {
	switch record.Kind {
	case types.KindEntity:
		changes := t.detector.CompareEntities(record.Entity, previous.Entity)
		return t.filterProperties(changes)
	case types.KindRelationship:
		changes := t.detector.CompareRelationships(record.Relationship, previous.Relationship)
		return t.filterProperties(changes)
	default:
		return nil
	}
}

// filterProperties drops property diffs when property tracking is disabled,
// keeping label/type/endpoint changes.
func (t *Tracker) filterProperties(changes *types.ChangeSet) *types.ChangeSet {
	if changes == nil || t.config.TrackPropertyChanges {
		return changes
	}
	changes.Properties = nil
	if changes.Empty() {
		return nil
	}
	return changes
}

// stamp writes temporal metadata into the owned record. ValidFrom defaults
// to the version timestamp when the caller left it zero.
func (t *Tracker) stamp(record *types.VersionRecord, meta types.TemporalMetadata) {
	switch record.Kind {
	case types.KindEntity:
		record.Entity.Temporal = meta
		if record.Entity.ValidFrom.IsZero() {
			record.Entity.ValidFrom = meta.VersionTimestamp
		}
	case types.KindRelationship:
		record.Relationship.Temporal = meta
		if record.Relationship.ValidFrom.IsZero() {
			record.Relationship.ValidFrom = meta.VersionTimestamp
		}
	}
}
