package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

var (
	t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
)

func appendEntity(t *testing.T, store versionstore.Store, stableID, versionID string, labels []string, props map[string]interface{}, from time.Time, to *time.Time) {
	t.Helper()
	err := store.Append(context.Background(), &types.VersionRecord{
		Kind: types.KindEntity,
		Entity: &types.Entity{
			EntityID:   stableID,
			Labels:     labels,
			Properties: props,
			ValidFrom:  from,
			ValidTo:    to,
			Temporal:   types.TemporalMetadata{VersionID: versionID, VersionTimestamp: from},
		},
	})
	require.NoError(t, err)
}

func appendRelationship(t *testing.T, store versionstore.Store, id, versionID, sourceID, relType, targetID string, from time.Time, to *time.Time) {
	t.Helper()
	err := store.Append(context.Background(), &types.VersionRecord{
		Kind: types.KindRelationship,
		Relationship: &types.Relationship{
			ID: id, SourceID: sourceID, TargetID: targetID, Type: relType,
			ValidFrom: from,
			ValidTo:   to,
			Temporal:  types.TemporalMetadata{VersionID: versionID, VersionTimestamp: from},
		},
	})
	require.NoError(t, err)
}

// seedHistory builds a small research-graph history:
//
//	bert  (Model)   v1 [t0, t1), v2 [t1, open)   accuracy 0.89 -> 0.93
//	gpt   (Model)   v1 [t1, open)
//	elmo  (Model)   v1 [t0, t1)                  retired before t1
//	squad (Dataset) v1 [t0, open)
//	r1 bert -EVALUATED_ON-> squad [t0, open)
//	r2 gpt  -EVALUATED_ON-> squad [t1, open)
func seedHistory(t *testing.T) versionstore.Store {
	t.Helper()
	store := versionstore.NewMemoryStore()

	appendEntity(t, store, "bert", "bert-v1", []string{"Model"},
		map[string]interface{}{"name": "BERT", "accuracy": 0.89}, t0, &t1)
	appendEntity(t, store, "bert", "bert-v2", []string{"Model"},
		map[string]interface{}{"name": "BERT", "accuracy": 0.93}, t1, nil)
	appendEntity(t, store, "gpt", "gpt-v1", []string{"Model"},
		map[string]interface{}{"name": "GPT"}, t1, nil)
	appendEntity(t, store, "elmo", "elmo-v1", []string{"Model"},
		map[string]interface{}{"name": "ELMo"}, t0, &t1)
	appendEntity(t, store, "squad", "squad-v1", []string{"Dataset"},
		map[string]interface{}{"name": "SQuAD"}, t0, nil)

	appendRelationship(t, store, "r1", "r1-v1", "bert", "EVALUATED_ON", "squad", t0, nil)
	appendRelationship(t, store, "r2", "r2-v1", "gpt", "EVALUATED_ON", "squad", t1, nil)
	return store
}

func TestEntitiesAtTime(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(seedHistory(t), nil, nil)

	t.Run("selects the version active at the instant", func(t *testing.T) {
		entities, err := engine.EntitiesAtTime(ctx, "", t0.AddDate(0, 1, 0), 0)
		require.NoError(t, err)
		require.Len(t, entities, 3)
		assert.Equal(t, "bert", entities[0].EntityID)
		assert.Equal(t, 0.89, entities[0].Properties["accuracy"])
		assert.Equal(t, "elmo", entities[1].EntityID)
		assert.Equal(t, "squad", entities[2].EntityID)
	})

	t.Run("later instant picks the successor version", func(t *testing.T) {
		entities, err := engine.EntitiesAtTime(ctx, "", t1.AddDate(0, 1, 0), 0)
		require.NoError(t, err)
		require.Len(t, entities, 3)
		assert.Equal(t, 0.93, entities[0].Properties["accuracy"])
	})

	t.Run("label filter", func(t *testing.T) {
		entities, err := engine.EntitiesAtTime(ctx, "Dataset", t0.AddDate(0, 1, 0), 0)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "squad", entities[0].EntityID)
	})

	t.Run("limit truncates after filtering", func(t *testing.T) {
		entities, err := engine.EntitiesAtTime(ctx, "Model", t0.AddDate(0, 1, 0), 1)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "bert", entities[0].EntityID)
	})

	t.Run("instant before all history is empty", func(t *testing.T) {
		entities, err := engine.EntitiesAtTime(ctx, "", t0.AddDate(-1, 0, 0), 0)
		require.NoError(t, err)
		assert.Empty(t, entities)
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(seedHistory(t), nil, nil)

	t.Run("active state sorted by ID", func(t *testing.T) {
		snapshot, err := engine.Snapshot(ctx, t1.AddDate(0, 1, 0), nil)
		require.NoError(t, err)
		require.Len(t, snapshot.Entities, 3)
		assert.Equal(t, "bert", snapshot.Entities[0].EntityID)
		assert.Equal(t, "gpt", snapshot.Entities[1].EntityID)
		assert.Equal(t, "squad", snapshot.Entities[2].EntityID)
		require.Len(t, snapshot.Relationships, 2)
		assert.Equal(t, "r1", snapshot.Relationships[0].ID)
	})

	t.Run("type filters", func(t *testing.T) {
		snapshot, err := engine.Snapshot(ctx, t1.AddDate(0, 1, 0), &SnapshotOptions{
			EntityTypes:       []string{"Dataset"},
			RelationshipTypes: []string{"CITES"},
		})
		require.NoError(t, err)
		require.Len(t, snapshot.Entities, 1)
		assert.Equal(t, "squad", snapshot.Entities[0].EntityID)
		assert.Empty(t, snapshot.Relationships)
	})

	t.Run("include inactive returns every version", func(t *testing.T) {
		snapshot, err := engine.Snapshot(ctx, t0, &SnapshotOptions{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, snapshot.Entities, 5)
		assert.Len(t, snapshot.Relationships, 2)
	})
}

func TestCompareSnapshots(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(seedHistory(t), nil, nil)

	diff, err := engine.CompareSnapshots(ctx, t0.AddDate(0, 1, 0), t1.AddDate(0, 1, 0), nil)
	require.NoError(t, err)

	t.Run("added entities", func(t *testing.T) {
		require.Len(t, diff.AddedEntities, 1)
		assert.Equal(t, "gpt", diff.AddedEntities[0].EntityID)
		assert.Equal(t, 1, diff.AddedEntitiesCount)
	})

	t.Run("removed entities", func(t *testing.T) {
		require.Len(t, diff.RemovedEntities, 1)
		assert.Equal(t, "elmo", diff.RemovedEntities[0].EntityID)
		assert.Equal(t, 1, diff.RemovedEntitiesCount)
	})

	t.Run("changed entities carry version pairs and diffs", func(t *testing.T) {
		require.Len(t, diff.ChangedEntities, 1)
		changed := diff.ChangedEntities[0]
		assert.Equal(t, "bert", changed.EntityID)
		assert.Equal(t, 0.89, changed.Before.Properties["accuracy"])
		assert.Equal(t, 0.93, changed.After.Properties["accuracy"])
		require.NotNil(t, changed.Changes)
		assert.Contains(t, changed.Changes.Properties, "accuracy")
		assert.Equal(t, 1, diff.ChangedEntitiesCount)
	})

	t.Run("added relationships keyed by endpoints and type", func(t *testing.T) {
		require.Len(t, diff.AddedRelationships, 1)
		assert.Equal(t, "r2", diff.AddedRelationships[0].ID)
		assert.Empty(t, diff.RemovedRelationships)
		assert.Empty(t, diff.ChangedRelationships)
	})

	t.Run("identical instants diff empty", func(t *testing.T) {
		same, err := engine.CompareSnapshots(ctx, t1, t1, nil)
		require.NoError(t, err)
		assert.Zero(t, same.AddedEntitiesCount)
		assert.Zero(t, same.RemovedEntitiesCount)
		assert.Zero(t, same.ChangedEntitiesCount)
	})
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(seedHistory(t), nil, nil)

	t.Run("buckets creation events by month", func(t *testing.T) {
		timeline, err := engine.Timeline(ctx, "", time.Time{}, time.Time{}, GranularityMonth)
		require.NoError(t, err)
		assert.Equal(t, []string{"2023-01", "2023-06"}, timeline.Periods)
		assert.Equal(t, 2, timeline.Counts["2023-01"]["Model"])
		assert.Equal(t, 1, timeline.Counts["2023-01"]["Dataset"])
		assert.Equal(t, 1, timeline.Counts["2023-06"]["Model"])
	})

	t.Run("zero-fills absent labels", func(t *testing.T) {
		timeline, err := engine.Timeline(ctx, "", time.Time{}, time.Time{}, GranularityMonth)
		require.NoError(t, err)
		count, ok := timeline.Counts["2023-06"]["Dataset"]
		assert.True(t, ok)
		assert.Zero(t, count)
	})

	t.Run("type filter collapses labels", func(t *testing.T) {
		timeline, err := engine.Timeline(ctx, "Model", time.Time{}, time.Time{}, GranularityMonth)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Model": 2}, timeline.Counts["2023-01"])
	})

	t.Run("date bound excludes periods", func(t *testing.T) {
		timeline, err := engine.Timeline(ctx, "", t1.AddDate(0, -1, 0), time.Time{}, GranularityMonth)
		require.NoError(t, err)
		assert.Equal(t, []string{"2023-06"}, timeline.Periods)
	})

	t.Run("week buckets use the ISO week-year", func(t *testing.T) {
		// 2023-01-01 is a Sunday in ISO week 52 of 2022.
		timeline, err := engine.Timeline(ctx, "", time.Time{}, time.Time{}, GranularityWeek)
		require.NoError(t, err)
		assert.Contains(t, timeline.Counts, "2022-W52")
	})

	t.Run("empty granularity defaults to month", func(t *testing.T) {
		timeline, err := engine.Timeline(ctx, "", time.Time{}, time.Time{}, "")
		require.NoError(t, err)
		assert.Equal(t, GranularityMonth, timeline.Granularity)
	})

	t.Run("unknown granularity rejected", func(t *testing.T) {
		_, err := engine.Timeline(ctx, "", time.Time{}, time.Time{}, "fortnight")
		assert.Error(t, err)
	})
}

func TestTraceConceptEvolution(t *testing.T) {
	ctx := context.Background()
	store := seedHistory(t)
	appendEntity(t, store, "roberta", "roberta-v1", []string{"Model"},
		map[string]interface{}{"name": "RoBERTa"}, t1, nil)
	appendRelationship(t, store, "r3", "r3-v1", "bert", "EVOLVED_INTO", "roberta", t1, nil)
	engine := NewEngine(store, nil, nil)

	t.Run("substring match collects lineage", func(t *testing.T) {
		trace, err := engine.TraceConceptEvolution(ctx, "bert", time.Time{}, time.Time{}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"bert", "roberta"}, trace.MatchedIDs)
		require.Len(t, trace.Versions, 3)
		assert.Equal(t, "bert-v1", trace.Versions[0].Temporal.VersionID)

		require.Len(t, trace.EvolutionRelationships, 1)
		assert.Equal(t, "r3", trace.EvolutionRelationships[0].ID)
		assert.Empty(t, trace.Related)
	})

	t.Run("date bound restricts versions not matches", func(t *testing.T) {
		trace, err := engine.TraceConceptEvolution(ctx, "bert", t1, time.Time{}, false)
		require.NoError(t, err)
		assert.Len(t, trace.MatchedIDs, 2)
		assert.Len(t, trace.Versions, 2)
	})

	t.Run("related collects one-hop neighbors outside the match", func(t *testing.T) {
		trace, err := engine.TraceConceptEvolution(ctx, "bert", time.Time{}, time.Time{}, true)
		require.NoError(t, err)
		require.Len(t, trace.Related, 1)
		assert.Equal(t, "squad", trace.Related[0].EntityID)
	})

	t.Run("no match yields empty trace", func(t *testing.T) {
		trace, err := engine.TraceConceptEvolution(ctx, "transformer-xl", time.Time{}, time.Time{}, true)
		require.NoError(t, err)
		assert.Empty(t, trace.MatchedIDs)
		assert.Empty(t, trace.Versions)
	})
}
