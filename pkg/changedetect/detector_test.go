package changedetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/types"
)

func TestCompareEntities(t *testing.T) {
	d := New()

	t.Run("identical versions yield nil", func(t *testing.T) {
		a := &types.Entity{EntityID: "bert", Labels: []string{"Model"}, Properties: map[string]interface{}{"name": "BERT"}}
		b := &types.Entity{EntityID: "bert", Labels: []string{"Model"}, Properties: map[string]interface{}{"name": "BERT"}}
		assert.Nil(t, d.CompareEntities(a, b))
	})

	t.Run("label changes", func(t *testing.T) {
		old := &types.Entity{EntityID: "bert", Labels: []string{"Model", "Baseline"}}
		now := &types.Entity{EntityID: "bert", Labels: []string{"Model", "SOTA"}}

		changes := d.CompareEntities(now, old)
		require.NotNil(t, changes)
		assert.Equal(t, []string{"SOTA"}, changes.Labels.Added)
		assert.Equal(t, []string{"Baseline"}, changes.Labels.Removed)
	})

	t.Run("property added removed changed", func(t *testing.T) {
		old := &types.Entity{EntityID: "bert", Properties: map[string]interface{}{
			"accuracy": 0.89,
			"status":   "draft",
		}}
		now := &types.Entity{EntityID: "bert", Properties: map[string]interface{}{
			"accuracy": 0.93,
			"params":   110_000_000,
		}}

		changes := d.CompareEntities(now, old)
		require.NotNil(t, changes)
		require.Len(t, changes.Properties, 3)
		assert.Equal(t, types.PropertyChanged, changes.Properties["accuracy"].Status)
		assert.Equal(t, 0.89, changes.Properties["accuracy"].OldValue)
		assert.Equal(t, types.PropertyAdded, changes.Properties["params"].Status)
		assert.Equal(t, types.PropertyRemoved, changes.Properties["status"].Status)
	})

	t.Run("numeric values compare across types", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"count": 1}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"count": 1.0}}
		assert.Nil(t, d.CompareEntities(now, old))
	})

	t.Run("internal metadata keys are ignored", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"version_id": "v1"}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"version_id": "v2"}}
		assert.Nil(t, d.CompareEntities(now, old))
	})

	t.Run("nil versions yield nil", func(t *testing.T) {
		assert.Nil(t, d.CompareEntities(nil, &types.Entity{EntityID: "e"}))
		assert.Nil(t, d.CompareEntities(&types.Entity{EntityID: "e"}, nil))
	})
}

func TestConfidenceThreshold(t *testing.T) {
	d := New()

	t.Run("sub-threshold move is noise", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": 0.80}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": 0.85}}
		assert.Nil(t, d.CompareEntities(now, old))
	})

	t.Run("threshold-clearing move is significant", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": 0.80}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": 0.95}}

		changes := d.CompareEntities(now, old)
		require.NotNil(t, changes)
		assert.Contains(t, changes.Properties, "confidence")
	})

	t.Run("non-numeric confidence is always significant", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": "high"}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"confidence": "low"}}
		assert.NotNil(t, d.CompareEntities(now, old))
	})

	t.Run("other numeric properties ignore the threshold", func(t *testing.T) {
		old := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"accuracy": 0.80}}
		now := &types.Entity{EntityID: "e", Properties: map[string]interface{}{"accuracy": 0.81}}
		assert.NotNil(t, d.CompareEntities(now, old))
	})
}

func TestCompareRelationships(t *testing.T) {
	d := New()

	t.Run("type change", func(t *testing.T) {
		old := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "b", Type: "EXTENDS"}
		now := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "b", Type: "REPLACES"}

		changes := d.CompareRelationships(now, old)
		require.NotNil(t, changes)
		require.NotNil(t, changes.Type)
		assert.Equal(t, "EXTENDS", changes.Type.OldValue)
		assert.Equal(t, "REPLACES", changes.Type.NewValue)
	})

	t.Run("endpoint rewire", func(t *testing.T) {
		old := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "b", Type: "CITES"}
		now := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "c", Type: "CITES"}

		changes := d.CompareRelationships(now, old)
		require.NotNil(t, changes)
		require.NotNil(t, changes.Endpoints)
		assert.Equal(t, "b", changes.Endpoints.OldTargetID)
		assert.Equal(t, "c", changes.Endpoints.NewTargetID)
	})

	t.Run("identical relationships yield nil", func(t *testing.T) {
		old := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "b", Type: "CITES"}
		now := &types.Relationship{ID: "r1", SourceID: "a", TargetID: "b", Type: "CITES"}
		assert.Nil(t, d.CompareRelationships(now, old))
	})
}
