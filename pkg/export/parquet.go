// Package export archives version history and the conflict log to Parquet
// and JSON files for downstream analysis.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// ParquetArchiveWriter writes version and conflict archives under a base
// directory, one subdirectory per record family.
type ParquetArchiveWriter struct {
	baseDir string
}

// NewParquetArchiveWriter creates a writer rooted at baseDir.
func NewParquetArchiveWriter(baseDir string) (*ParquetArchiveWriter, error) {
	dirs := []string{"entity_versions", "relationship_versions", "conflicts"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return &ParquetArchiveWriter{baseDir: baseDir}, nil
}

// ParquetEntityVersion is the flat schema for one entity version row.
type ParquetEntityVersion struct {
	EntityID          string     `parquet:"entity_id"`
	VersionID         string     `parquet:"version_id"`
	PreviousVersionID string     `parquet:"previous_version_id"`
	VersionTimestamp  *time.Time `parquet:"version_timestamp"`
	ChangeSource      string     `parquet:"change_source"`
	ChangeType        string     `parquet:"change_type"`
	ValidFrom         *time.Time `parquet:"valid_from"`
	ValidTo           *time.Time `parquet:"valid_to"`
	Labels            string     `parquet:"labels"`     // JSON string
	Properties        string     `parquet:"properties"` // JSON string
	Changes           string     `parquet:"changes"`    // JSON string
}

// ParquetRelationshipVersion is the flat schema for one relationship
// version row.
type ParquetRelationshipVersion struct {
	RelationshipID    string     `parquet:"relationship_id"`
	SourceID          string     `parquet:"source_id"`
	TargetID          string     `parquet:"target_id"`
	RelType           string     `parquet:"rel_type"`
	VersionID         string     `parquet:"version_id"`
	PreviousVersionID string     `parquet:"previous_version_id"`
	VersionTimestamp  *time.Time `parquet:"version_timestamp"`
	ChangeSource      string     `parquet:"change_source"`
	ChangeType        string     `parquet:"change_type"`
	ValidFrom         *time.Time `parquet:"valid_from"`
	ValidTo           *time.Time `parquet:"valid_to"`
	Properties        string     `parquet:"properties"` // JSON string
	Changes           string     `parquet:"changes"`    // JSON string
}

// ParquetConflict is the flat schema for one conflict-log row.
type ParquetConflict struct {
	ConflictID       string     `parquet:"conflict_id"`
	ConflictType     string     `parquet:"conflict_type"`
	EntityID         string     `parquet:"entity_id"`
	SourceID         string     `parquet:"source_id"`
	TargetID         string     `parquet:"target_id"`
	Attribute        string     `parquet:"attribute"`
	Severity         float64    `parquet:"severity"`
	Description      string     `parquet:"description"`
	DetectionMethod  string     `parquet:"detection_method"`
	DetectedAt       *time.Time `parquet:"detected_at"`
	Claims           string     `parquet:"claims"` // JSON string
	Strategy         string     `parquet:"resolution_strategy"`
	ResolutionStatus string     `parquet:"resolution_status"`
	SelectedValue    string     `parquet:"selected_value"` // JSON string
	SelectedSource   string     `parquet:"selected_source"`
	ResolvedAt       *time.Time `parquet:"resolved_at"`
}

// WriteVersionHistory archives every version of every stable ID of one kind
// to a single timestamped Parquet file. It returns the file path and the row
// count.
func (w *ParquetArchiveWriter) WriteVersionHistory(ctx context.Context, store versionstore.Store, kind types.Kind) (string, int, error) {
	records, err := loadHistory(ctx, store, kind)
	if err != nil {
		return "", 0, err
	}

	switch kind {
	case types.KindEntity:
		rows := make([]ParquetEntityVersion, 0, len(records))
		for _, record := range records {
			row, err := entityVersionRow(record)
			if err != nil {
				return "", 0, err
			}
			rows = append(rows, row)
		}
		path := w.archivePath("entity_versions")
		if err := parquet.WriteFile(path, rows); err != nil {
			return "", 0, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, len(rows), nil

	case types.KindRelationship:
		rows := make([]ParquetRelationshipVersion, 0, len(records))
		for _, record := range records {
			row, err := relationshipVersionRow(record)
			if err != nil {
				return "", 0, err
			}
			rows = append(rows, row)
		}
		path := w.archivePath("relationship_versions")
		if err := parquet.WriteFile(path, rows); err != nil {
			return "", 0, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, len(rows), nil

	default:
		return "", 0, types.ErrUnknownKind
	}
}

// WriteConflictLog archives the conflict log, one row per conflict with its
// resolution columns when resolved.
func (w *ParquetArchiveWriter) WriteConflictLog(ctx context.Context, log contradiction.Log) (string, int, error) {
	entries := log.Entries()
	rows := make([]ParquetConflict, 0, len(entries))
	for _, entry := range entries {
		row, err := conflictRow(entry)
		if err != nil {
			return "", 0, err
		}
		rows = append(rows, row)
	}

	path := w.archivePath("conflicts")
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, len(rows), nil
}

// loadHistory flattens every chain of one kind, ascending per chain.
func loadHistory(ctx context.Context, store versionstore.Store, kind types.Kind) ([]*types.VersionRecord, error) {
	stableIDs, err := store.StableIDs(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s chains: %w", kind, err)
	}
	var records []*types.VersionRecord
	for _, id := range stableIDs {
		chain, err := store.History(ctx, kind, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", id, err)
		}
		records = append(records, chain...)
	}
	return records, nil
}

func (w *ParquetArchiveWriter) archivePath(family string) string {
	filename := fmt.Sprintf("%s_%d.parquet", family, time.Now().UnixNano())
	return filepath.Join(w.baseDir, family, filename)
}

func entityVersionRow(record *types.VersionRecord) (ParquetEntityVersion, error) {
	entity := record.Entity
	labelsJSON, err := json.Marshal(entity.Labels)
	if err != nil {
		return ParquetEntityVersion{}, fmt.Errorf("failed to marshal labels: %w", err)
	}
	propsJSON, err := json.Marshal(entity.Properties)
	if err != nil {
		return ParquetEntityVersion{}, fmt.Errorf("failed to marshal properties: %w", err)
	}
	changesJSON, err := marshalChanges(record.Changes)
	if err != nil {
		return ParquetEntityVersion{}, err
	}

	row := ParquetEntityVersion{
		EntityID:          entity.EntityID,
		VersionID:         entity.Temporal.VersionID,
		PreviousVersionID: entity.Temporal.PreviousVersionID,
		ChangeSource:      entity.Temporal.ChangeSource,
		ChangeType:        entity.Temporal.ChangeType,
		Labels:            string(labelsJSON),
		Properties:        string(propsJSON),
		Changes:           changesJSON,
	}
	if !entity.Temporal.VersionTimestamp.IsZero() {
		row.VersionTimestamp = &entity.Temporal.VersionTimestamp
	}
	if !entity.ValidFrom.IsZero() {
		row.ValidFrom = &entity.ValidFrom
	}
	if entity.ValidTo != nil && !entity.ValidTo.IsZero() {
		row.ValidTo = entity.ValidTo
	}
	return row, nil
}

func relationshipVersionRow(record *types.VersionRecord) (ParquetRelationshipVersion, error) {
	rel := record.Relationship
	propsJSON, err := json.Marshal(rel.Properties)
	if err != nil {
		return ParquetRelationshipVersion{}, fmt.Errorf("failed to marshal properties: %w", err)
	}
	changesJSON, err := marshalChanges(record.Changes)
	if err != nil {
		return ParquetRelationshipVersion{}, err
	}

	row := ParquetRelationshipVersion{
		RelationshipID:    rel.ID,
		SourceID:          rel.SourceID,
		TargetID:          rel.TargetID,
		RelType:           rel.Type,
		VersionID:         rel.Temporal.VersionID,
		PreviousVersionID: rel.Temporal.PreviousVersionID,
		ChangeSource:      rel.Temporal.ChangeSource,
		ChangeType:        rel.Temporal.ChangeType,
		Properties:        string(propsJSON),
		Changes:           changesJSON,
	}
	if !rel.Temporal.VersionTimestamp.IsZero() {
		row.VersionTimestamp = &rel.Temporal.VersionTimestamp
	}
	if !rel.ValidFrom.IsZero() {
		row.ValidFrom = &rel.ValidFrom
	}
	if rel.ValidTo != nil && !rel.ValidTo.IsZero() {
		row.ValidTo = rel.ValidTo
	}
	return row, nil
}

func conflictRow(entry contradiction.LogEntry) (ParquetConflict, error) {
	conflict := entry.Contradiction
	claimsJSON, err := json.Marshal(conflict.Claims)
	if err != nil {
		return ParquetConflict{}, fmt.Errorf("failed to marshal claims: %w", err)
	}

	row := ParquetConflict{
		ConflictID:      conflict.ID,
		ConflictType:    string(conflict.Type),
		EntityID:        conflict.EntityID,
		SourceID:        conflict.SourceID,
		TargetID:        conflict.TargetID,
		Attribute:       conflict.Attribute,
		Severity:        conflict.Severity,
		Description:     conflict.Description,
		DetectionMethod: conflict.DetectionMethod,
		Claims:          string(claimsJSON),
	}
	if !conflict.DetectedAt.IsZero() {
		detected := conflict.DetectedAt
		row.DetectedAt = &detected
	}

	if resolution := entry.Resolution; resolution != nil {
		row.Strategy = string(resolution.Strategy)
		row.ResolutionStatus = string(resolution.Status)
		row.SelectedSource = resolution.SelectedSource
		if resolution.SelectedValue != nil {
			valueJSON, err := json.Marshal(resolution.SelectedValue)
			if err != nil {
				return ParquetConflict{}, fmt.Errorf("failed to marshal selected value: %w", err)
			}
			row.SelectedValue = string(valueJSON)
		}
		if !resolution.ResolvedAt.IsZero() {
			resolved := resolution.ResolvedAt
			row.ResolvedAt = &resolved
		}
	}
	return row, nil
}

func marshalChanges(changes *types.ChangeSet) (string, error) {
	if changes == nil {
		return "", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal change set: %w", err)
	}
	return string(data), nil
}
