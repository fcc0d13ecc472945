package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

func seedStore(t *testing.T) versionstore.Store {
	t.Helper()
	ctx := context.Background()
	store := versionstore.NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, versionID := range []string{"v1", "v2"} {
		err := store.Append(ctx, &types.VersionRecord{
			Kind: types.KindEntity,
			Entity: &types.Entity{
				EntityID:   "bert",
				Labels:     []string{"Model"},
				Properties: map[string]interface{}{"accuracy": 0.89 + float64(i)*0.04},
				ValidFrom:  base.Add(time.Duration(i) * time.Hour),
				Temporal: types.TemporalMetadata{
					VersionID:        versionID,
					VersionTimestamp: base.Add(time.Duration(i) * time.Hour),
				},
			},
		})
		require.NoError(t, err)
	}

	err := store.Append(ctx, &types.VersionRecord{
		Kind: types.KindRelationship,
		Relationship: &types.Relationship{
			ID: "r1", SourceID: "bert", TargetID: "squad", Type: "EVALUATED_ON",
			ValidFrom: base,
			Temporal:  types.TemporalMetadata{VersionID: "rv1", VersionTimestamp: base},
		},
	})
	require.NoError(t, err)
	return store
}

func seedLog() *contradiction.MemoryLog {
	log := contradiction.NewMemoryLog()
	log.Record(&types.Contradiction{
		ID:         "c1",
		Type:       types.ConflictNumericDiscrepancy,
		EntityID:   "bert",
		Attribute:  "accuracy",
		Severity:   0.4,
		DetectedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	log.Resolve(&types.Resolution{
		ContradictionID: "c1",
		Strategy:        types.StrategyWeightedAverage,
		SelectedValue:   0.91,
		Status:          types.StatusResolved,
		ResolvedAt:      time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	})
	return log
}

func TestParquetArchiveWriter(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	writer, err := NewParquetArchiveWriter(t.TempDir())
	require.NoError(t, err)

	t.Run("entity versions round-trip", func(t *testing.T) {
		path, count, err := writer.WriteVersionHistory(ctx, store, types.KindEntity)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		rows, err := parquet.ReadFile[ParquetEntityVersion](path)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "bert", rows[0].EntityID)
		assert.Equal(t, "v1", rows[0].VersionID)
		assert.JSONEq(t, `["Model"]`, rows[0].Labels)
	})

	t.Run("relationship versions", func(t *testing.T) {
		path, count, err := writer.WriteVersionHistory(ctx, store, types.KindRelationship)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		rows, err := parquet.ReadFile[ParquetRelationshipVersion](path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "EVALUATED_ON", rows[0].RelType)
	})

	t.Run("conflict log with resolution columns", func(t *testing.T) {
		path, count, err := writer.WriteConflictLog(ctx, seedLog())
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		rows, err := parquet.ReadFile[ParquetConflict](path)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "c1", rows[0].ConflictID)
		assert.Equal(t, "weighted_average", rows[0].Strategy)
		assert.Equal(t, "0.91", rows[0].SelectedValue)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, _, err := writer.WriteVersionHistory(ctx, store, "episodes")
		assert.ErrorIs(t, err, types.ErrUnknownKind)
	})
}

func TestJSONExport(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	dir := t.TempDir()

	t.Run("version history", func(t *testing.T) {
		path := filepath.Join(dir, "entities.json")
		count, err := WriteVersionHistoryJSON(ctx, store, types.KindEntity, path)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var records []*types.VersionRecord
		require.NoError(t, json.Unmarshal(data, &records))
		require.Len(t, records, 2)
		assert.Equal(t, "bert", records[0].StableID())
	})

	t.Run("conflict log", func(t *testing.T) {
		path := filepath.Join(dir, "conflicts.json")
		count, err := WriteConflictLogJSON(ctx, seedLog(), path)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var entries []contradiction.LogEntry
		require.NoError(t, json.Unmarshal(data, &entries))
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].Resolution)
		assert.Equal(t, types.StatusResolved, entries[0].Resolution.Status)
	})
}
