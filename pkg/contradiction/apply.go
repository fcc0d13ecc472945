package contradiction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/evolution"
	"github.com/soundprediction/tempograph/pkg/types"
)

// ErrNoGraphStore is returned when ApplyResolutions runs without a graph
// store configured.
var ErrNoGraphStore = errors.New("resolution application requires a graph store")

// ApplyResult summarizes one ApplyResolutions pass. Failures on individual
// resolutions are collected rather than aborting the batch.
type ApplyResult struct {
	Applied   int      `json:"applied"`
	Annotated int      `json:"annotated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// ApplyResolutions writes resolution outcomes back to the graph store.
// Resolved values overwrite the contested attribute; marked and
// context-dependent conflicts annotate the affected records without touching
// their values. Pending-review resolutions are skipped. When a tracker is
// configured, each value write is re-read and recorded as a new version.
func (s *System) ApplyResolutions(ctx context.Context, resolutions []*types.Resolution) (*ApplyResult, error) {
	if s.graph == nil {
		return nil, ErrNoGraphStore
	}

	conflicts := map[string]*types.Contradiction{}
	for _, entry := range s.log.Entries() {
		conflicts[entry.Contradiction.ID] = entry.Contradiction
	}

	result := &ApplyResult{}
	for _, resolution := range resolutions {
		if resolution == nil || !resolution.RequiresUpdate {
			result.Skipped++
			continue
		}
		conflict, ok := conflicts[resolution.ContradictionID]
		if !ok {
			result.Skipped++
			continue
		}

		var err error
		switch resolution.Status {
		case types.StatusResolved:
			err = s.applyResolved(ctx, conflict, resolution)
			if err == nil {
				result.Applied++
			}
		case types.StatusMarkedAsConflict, types.StatusContextDependent:
			err = s.annotate(ctx, conflict, resolution)
			if err == nil {
				result.Annotated++
			}
		default:
			result.Skipped++
		}
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %v", resolution.ContradictionID, err))
			s.logger.Warn("failed to apply resolution",
				"contradiction_id", resolution.ContradictionID, "error", err)
		}
	}
	return result, nil
}

// applyResolved writes the selected value onto the contested attribute and
// stamps provenance metadata alongside it.
func (s *System) applyResolved(ctx context.Context, conflict *types.Contradiction, resolution *types.Resolution) error {
	if conflict.EntityID == "" || conflict.Attribute == "" {
		return fmt.Errorf("resolution has no writable target")
	}

	patch := map[string]interface{}{conflict.Attribute: resolution.SelectedValue}
	if err := s.graph.UpdateEntity(ctx, conflict.EntityID, patch); err != nil {
		return fmt.Errorf("failed to update entity %s: %w", conflict.EntityID, err)
	}

	meta := map[string]interface{}{
		"resolved_attribute":  conflict.Attribute,
		"resolution_strategy": string(resolution.Strategy),
		"resolved_at":         resolution.ResolvedAt.Format(time.RFC3339),
	}
	if resolution.SelectedSource != "" {
		meta["resolution_source"] = resolution.SelectedSource
	}
	if err := s.graph.AddEntityMetadata(ctx, conflict.EntityID, meta); err != nil {
		return fmt.Errorf("failed to annotate entity %s: %w", conflict.EntityID, err)
	}

	return s.retrack(ctx, conflict.EntityID, resolution)
}

// annotate marks the affected records as contested without changing values.
// Relationship conflicts annotate both endpoint entities.
func (s *System) annotate(ctx context.Context, conflict *types.Contradiction, resolution *types.Resolution) error {
	meta := map[string]interface{}{
		"conflict_id":     conflict.ID,
		"conflict_type":   string(conflict.Type),
		"conflict_status": string(resolution.Status),
	}
	if conflict.Attribute != "" {
		meta["conflict_attribute"] = conflict.Attribute
	}
	if contexts, ok := resolution.Details["contexts"]; ok {
		meta["conflict_contexts"] = contexts
	}

	targets := []string{}
	if conflict.EntityID != "" {
		targets = append(targets, conflict.EntityID)
	}
	if conflict.SourceID != "" {
		targets = append(targets, conflict.SourceID)
	}
	if conflict.TargetID != "" {
		targets = append(targets, conflict.TargetID)
	}
	if len(targets) == 0 {
		return fmt.Errorf("conflict names no records to annotate")
	}

	for _, id := range targets {
		if err := s.graph.AddEntityMetadata(ctx, id, meta); err != nil {
			if errors.Is(err, driver.ErrEntityNotFound) {
				continue
			}
			return fmt.Errorf("failed to annotate entity %s: %w", id, err)
		}
	}
	return nil
}

// retrack records the post-resolution entity state as a new version so the
// history reflects the write-back.
func (s *System) retrack(ctx context.Context, entityID string, resolution *types.Resolution) error {
	if s.tracker == nil {
		return nil
	}
	entity, err := s.graph.GetEntity(ctx, entityID)
	if err != nil {
		if errors.Is(err, driver.ErrEntityNotFound) {
			return nil
		}
		return fmt.Errorf("failed to reload entity %s: %w", entityID, err)
	}

	_, err = s.tracker.TrackEntityChange(ctx, entity, &evolution.TrackOptions{
		ChangeSource: "contradiction_resolution",
		ChangeType:   "update",
	})
	if err != nil {
		return fmt.Errorf("failed to track resolution write-back: %w", err)
	}
	return nil
}
