package tempograph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/temporal"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// TestClientLifecycle exercises the full pipeline end to end: track versions,
// query history and snapshots, then detect, resolve, and apply a conflict.
func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()

	store, err := versionstore.New(versionstore.Options{Backend: versionstore.BackendFile, Path: t.TempDir()})
	require.NoError(t, err)
	graph := driver.NewMemoryStore()

	client, err := NewClient(store, graph, nil, nil)
	require.NoError(t, err)
	defer client.Close(ctx)

	published := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	bertV1 := &types.Entity{
		EntityID: "bert", Labels: []string{"Model"},
		Properties: map[string]interface{}{"name": "BERT", "accuracy": 0.89, "source": "paper-a"},
		ValidFrom:  published,
	}
	result, err := client.TrackEntityChange(ctx, bertV1, nil)
	require.NoError(t, err)
	require.True(t, result.IsNew)
	graph.PutEntity(bertV1)

	bertV2 := &types.Entity{
		EntityID: "bert", Labels: []string{"Model"},
		Properties: map[string]interface{}{"name": "BERT", "accuracy": 0.93, "source": "paper-b"},
		ValidFrom:  published.AddDate(0, 6, 0),
	}
	result, err = client.TrackEntityChange(ctx, bertV2, nil)
	require.NoError(t, err)
	require.True(t, result.Tracked)

	_, err = client.TrackRelationshipChange(ctx, &types.Relationship{
		ID: "r1", SourceID: "bert", TargetID: "squad", Type: "EVALUATED_ON",
		ValidFrom: published,
	}, nil)
	require.NoError(t, err)

	t.Run("history accumulates versions", func(t *testing.T) {
		history, err := client.EntityHistory(ctx, "bert")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, history[0].VersionID(), history[1].PreviousVersionID())

		relHistory, err := client.RelationshipHistory(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, relHistory, 1)
	})

	t.Run("point-in-time query sees the version then active", func(t *testing.T) {
		entities, err := client.EntitiesAtTime(ctx, "Model", published.AddDate(0, 1, 0), 0)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, 0.89, entities[0].Properties["accuracy"])
	})

	t.Run("snapshot diff surfaces the change", func(t *testing.T) {
		diff, err := client.CompareSnapshots(ctx,
			published.AddDate(0, 1, 0), published.AddDate(0, 7, 0), nil)
		require.NoError(t, err)
		require.Equal(t, 1, diff.ChangedEntitiesCount)
		assert.Equal(t, "bert", diff.ChangedEntities[0].EntityID)
	})

	t.Run("timeline buckets creation events", func(t *testing.T) {
		timeline, err := client.Timeline(ctx, "", time.Time{}, time.Time{}, temporal.GranularityMonth)
		require.NoError(t, err)
		assert.Equal(t, 1, timeline.Counts["2023-03"]["Model"])
	})

	t.Run("conflict pipeline writes back the consensus", func(t *testing.T) {
		graph.PutEntity(&types.Entity{
			EntityID: "gpt4-a", Labels: []string{"Model"},
			Properties: map[string]interface{}{"name": "GPT-4", "accuracy": 0.91},
		})
		graph.PutEntity(&types.Entity{
			EntityID: "gpt4-b", Labels: []string{"Model"},
			Properties: map[string]interface{}{"name": "GPT-4", "accuracy": 0.99},
		})

		entities, err := graph.GetEntitiesByType(ctx, "Model")
		require.NoError(t, err)

		conflicts, err := client.DetectContradictions(ctx, entities)
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, types.ConflictNumericDiscrepancy, conflicts[0].Type)

		resolutions, err := client.ResolveContradictions(ctx, conflicts, "")
		require.NoError(t, err)
		require.Len(t, resolutions, 1)
		assert.Equal(t, types.StatusResolved, resolutions[0].Status)

		applied, err := client.ApplyResolutions(ctx, resolutions)
		require.NoError(t, err)
		assert.Equal(t, 1, applied.Applied)

		entity, err := graph.GetEntity(ctx, "gpt4-a")
		require.NoError(t, err)
		assert.InDelta(t, 0.95, entity.Properties["accuracy"].(float64), 0.01)

		// The write-back shows up in version history too.
		history, err := client.EntityHistory(ctx, "gpt4-a")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "contradiction_resolution", history[0].Entity.Temporal.ChangeSource)

		assert.Empty(t, client.ConflictLog().Unresolved())
	})

	t.Run("temporal path over the current graph", func(t *testing.T) {
		_, err := client.TrackEntityChange(ctx, &types.Entity{
			EntityID: "squad", Labels: []string{"Dataset"},
			Properties: map[string]interface{}{"name": "SQuAD"},
		}, nil)
		require.NoError(t, err)

		graph.PutEntity(&types.Entity{EntityID: "squad", Labels: []string{"Dataset"}})
		graph.PutRelationship(&types.Relationship{ID: "r1", SourceID: "bert", TargetID: "squad", Type: "EVALUATED_ON"})

		// Two versions of bert, one of squad: one record per version pair.
		paths, err := client.FindTemporalPath(ctx, "bert", "squad", 2, true)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, 1, paths[0].Hops)
	})
}

func TestClientWithoutGraphStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(versionstore.NewMemoryStore(), nil, nil, nil)
	require.NoError(t, err)

	_, err = client.TrackEntityChange(ctx, &types.Entity{
		EntityID:   "bert",
		Properties: map[string]interface{}{"name": "BERT"},
	}, nil)
	require.NoError(t, err)

	t.Run("history works", func(t *testing.T) {
		history, err := client.EntityHistory(ctx, "bert")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("path queries fail cleanly", func(t *testing.T) {
		_, err := client.FindTemporalPath(ctx, "a", "b", 3, true)
		assert.ErrorIs(t, err, temporal.ErrNoGraphStore)
	})

	t.Run("apply fails cleanly", func(t *testing.T) {
		_, err := client.ApplyResolutions(ctx, nil)
		assert.Error(t, err)
	})
}
