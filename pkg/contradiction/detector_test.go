package contradiction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/types"
)

func modelEntity(id, name string, props map[string]interface{}) *types.Entity {
	merged := map[string]interface{}{"name": name}
	for k, v := range props {
		merged[k] = v
	}
	return &types.Entity{EntityID: id, Labels: []string{"Model"}, Properties: merged}
}

func findConflict(conflicts []*types.Contradiction, conflictType types.ConflictType) *types.Contradiction {
	for _, c := range conflicts {
		if c.Type == conflictType {
			return c
		}
	}
	return nil
}

func TestDetectAttributeConflicts(t *testing.T) {
	ctx := context.Background()
	detector := NewDetector(DefaultDetectorConfig(), nil)

	t.Run("numeric discrepancy beyond tolerance", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("gpt4-a", "GPT-4", map[string]interface{}{"accuracy": 0.91, "source": "paper-a"}),
			modelEntity("gpt4-b", "GPT-4", map[string]interface{}{"accuracy": 0.99, "source": "paper-b"}),
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictNumericDiscrepancy)
		require.NotNil(t, conflict)
		assert.Equal(t, "accuracy", conflict.Attribute)
		assert.Equal(t, "attribute_comparison", conflict.DetectionMethod)
		assert.Len(t, conflict.Claims, 2)
		// Spread 0.08 over mean 0.95 is roughly 8.4%, well past the 5% tolerance.
		assert.InDelta(t, 0.42, conflict.Severity, 0.01)
	})

	t.Run("numeric spread within tolerance is clean", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("gpt4-a", "GPT-4", map[string]interface{}{"accuracy": 0.95}),
			modelEntity("gpt4-b", "GPT-4", map[string]interface{}{"accuracy": 0.96}),
		})
		require.NoError(t, err)
		assert.Nil(t, findConflict(conflicts, types.ConflictNumericDiscrepancy))
	})

	t.Run("binary opposition", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("llama-a", "LLaMA", map[string]interface{}{"is_open_source": true}),
			modelEntity("llama-b", "LLaMA", map[string]interface{}{"is_open_source": false}),
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictBinaryOpposition)
		require.NotNil(t, conflict)
		assert.Equal(t, 1.0, conflict.Severity)
	})

	t.Run("binary accepts string booleans", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("llama-a", "LLaMA", map[string]interface{}{"is_open_source": "yes"}),
			modelEntity("llama-b", "LLaMA", map[string]interface{}{"is_open_source": "no"}),
		})
		require.NoError(t, err)
		assert.NotNil(t, findConflict(conflicts, types.ConflictBinaryOpposition))
	})

	t.Run("categorical mismatch scales with distinct values", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("m-a", "MysteryNet", map[string]interface{}{"architecture": "Transformer"}),
			modelEntity("m-b", "MysteryNet", map[string]interface{}{"architecture": "RNN"}),
			modelEntity("m-c", "MysteryNet", map[string]interface{}{"architecture": "CNN"}),
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictCategoricalMismatch)
		require.NotNil(t, conflict)
		assert.InDelta(t, 0.8, conflict.Severity, 0.001)
	})

	t.Run("case-insensitive categorical values agree", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("m-a", "MysteryNet", map[string]interface{}{"architecture": "Transformer"}),
			modelEntity("m-b", "MysteryNet", map[string]interface{}{"architecture": "transformer"}),
		})
		require.NoError(t, err)
		assert.Nil(t, findConflict(conflicts, types.ConflictCategoricalMismatch))
	})

	t.Run("grouping keys on normalized name across IDs", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("arxiv-1", "BERT", map[string]interface{}{"parameters": 110_000_000}),
			modelEntity("acl-7", "bert", map[string]interface{}{"parameters": 340_000_000}),
		})
		require.NoError(t, err)
		assert.NotNil(t, findConflict(conflicts, types.ConflictNumericDiscrepancy))
	})

	t.Run("singleton groups never conflict", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("a", "A", map[string]interface{}{"accuracy": 0.5}),
			modelEntity("b", "B", map[string]interface{}{"accuracy": 0.9}),
		})
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("claims carry source provenance", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			modelEntity("gpt4-a", "GPT-4", map[string]interface{}{
				"accuracy": 0.91, "source": "paper-a", "citations": 120, "published_date": "2023-03-01",
			}),
			modelEntity("gpt4-b", "GPT-4", map[string]interface{}{
				"accuracy": 0.99, "source": "paper-b", "trust_score": 0.8, "domain": "medicine",
			}),
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictNumericDiscrepancy)
		require.NotNil(t, conflict)
		require.Len(t, conflict.Claims, 2)
		assert.Equal(t, "paper-a", conflict.Claims[0].Source)
		assert.Equal(t, 120, conflict.Claims[0].Citations)
		require.NotNil(t, conflict.Claims[0].SourceDate)
		assert.Equal(t, 0.8, conflict.Claims[1].Trust)
		assert.Equal(t, "medicine", conflict.Claims[1].Context)
	})
}

func TestDetectDefinitionalConflicts(t *testing.T) {
	ctx := context.Background()
	detector := NewDetector(DefaultDetectorConfig(), nil)

	concept := func(id, def string) *types.Entity {
		return &types.Entity{
			EntityID: id,
			Labels:   []string{"Concept"},
			Properties: map[string]interface{}{
				"name":       "attention",
				"definition": def,
			},
		}
	}

	t.Run("dissimilar definitions conflict", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			concept("c1", "a mechanism weighting input tokens by relevance"),
			concept("c2", "the cognitive process of selectively concentrating on stimuli"),
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictDefinitional)
		require.NotNil(t, conflict)
		assert.Equal(t, "definition", conflict.Attribute)
		assert.Greater(t, conflict.Severity, 0.5)
	})

	t.Run("near-identical definitions are clean", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			concept("c1", "a mechanism weighting input tokens by relevance"),
			concept("c2", "a mechanism weighting input tokens by their relevance"),
		})
		require.NoError(t, err)
		assert.Nil(t, findConflict(conflicts, types.ConflictDefinitional))
	})
}

func TestDetectRelationshipConflicts(t *testing.T) {
	ctx := context.Background()
	graph := driver.NewMemoryStore()
	graph.PutEntity(&types.Entity{EntityID: "gpt4", Labels: []string{"Model"}, Properties: map[string]interface{}{"name": "GPT-4"}})
	graph.PutEntity(&types.Entity{EntityID: "bert", Labels: []string{"Model"}, Properties: map[string]interface{}{"name": "BERT"}})
	graph.PutRelationship(&types.Relationship{ID: "x1", SourceID: "gpt4", TargetID: "bert", Type: "OUTPERFORMS"})
	graph.PutRelationship(&types.Relationship{ID: "x2", SourceID: "gpt4", TargetID: "bert", Type: "UNDERPERFORMS"})

	detector := NewDetector(DefaultDetectorConfig(), graph)

	conflicts, err := detector.Detect(ctx, []*types.Entity{
		{EntityID: "gpt4", Labels: []string{"Model"}, Properties: map[string]interface{}{"name": "GPT-4"}},
	})
	require.NoError(t, err)

	conflict := findConflict(conflicts, types.ConflictRelationshipExclusion)
	require.NotNil(t, conflict)
	assert.Equal(t, "gpt4", conflict.SourceID)
	assert.Equal(t, "bert", conflict.TargetID)
	assert.Equal(t, 1.0, conflict.Severity)
	assert.ElementsMatch(t, []string{"OUTPERFORMS", "UNDERPERFORMS"}, conflict.Evidence)
}

func TestDetectTemporalInconsistencies(t *testing.T) {
	ctx := context.Background()
	graph := driver.NewMemoryStore()
	graph.PutEntity(&types.Entity{EntityID: "early", Properties: map[string]interface{}{"name": "EarlyNet", "year": 2018}})
	graph.PutEntity(&types.Entity{EntityID: "late", Properties: map[string]interface{}{"name": "LateNet", "year": 2020}})
	graph.PutRelationship(&types.Relationship{ID: "c1", SourceID: "early", TargetID: "late", Type: "CITES"})

	detector := NewDetector(DefaultDetectorConfig(), graph)

	t.Run("citing a later work is inconsistent", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			{EntityID: "early", Properties: map[string]interface{}{"name": "EarlyNet", "year": 2018}},
		})
		require.NoError(t, err)

		conflict := findConflict(conflicts, types.ConflictTemporalInconsistency)
		require.NotNil(t, conflict)
		assert.Equal(t, "early", conflict.SourceID)
		assert.Equal(t, "late", conflict.TargetID)
		assert.Equal(t, 0.8, conflict.Severity)
	})

	t.Run("undated entities are skipped", func(t *testing.T) {
		conflicts, err := detector.Detect(ctx, []*types.Entity{
			{EntityID: "early", Properties: map[string]interface{}{"name": "EarlyNet"}},
		})
		require.NoError(t, err)
		assert.Nil(t, findConflict(conflicts, types.ConflictTemporalInconsistency))
	})
}

func TestDetectWithoutGraphSkipsGraphStrategies(t *testing.T) {
	detector := NewDetector(DefaultDetectorConfig(), nil)
	conflicts, err := detector.Detect(context.Background(), []*types.Entity{
		{EntityID: "early", Properties: map[string]interface{}{"name": "EarlyNet", "year": 2018}},
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}
