package temporal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// seedPathFixture builds a graph a-b-c with version history for the
// endpoints: a has two versions, c has one.
func seedPathFixture(t *testing.T) (versionstore.Store, *driver.MemoryStore) {
	t.Helper()
	store := versionstore.NewMemoryStore()
	graph := driver.NewMemoryStore()

	appendEntity(t, store, "a", "a-v1", []string{"Model"}, map[string]interface{}{"name": "A"}, t0, &t1)
	appendEntity(t, store, "a", "a-v2", []string{"Model"}, map[string]interface{}{"name": "A"}, t1, nil)
	appendEntity(t, store, "b", "b-v1", []string{"Model"}, map[string]interface{}{"name": "B"}, t0, nil)
	appendEntity(t, store, "c", "c-v1", []string{"Model"}, map[string]interface{}{"name": "C"}, t0, nil)

	for _, id := range []string{"a", "b", "c"} {
		graph.PutEntity(&types.Entity{EntityID: id, Labels: []string{"Model"}})
	}
	graph.PutRelationship(&types.Relationship{ID: "ab", SourceID: "a", TargetID: "b", Type: "CITES"})
	graph.PutRelationship(&types.Relationship{ID: "bc", SourceID: "b", TargetID: "c", Type: "CITES"})
	return store, graph
}

func TestFindTemporalPath(t *testing.T) {
	ctx := context.Background()
	store, graph := seedPathFixture(t)
	engine := NewEngine(store, graph, nil)

	t.Run("stable IDs expand over version pairs", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "c", 3, true)
		require.NoError(t, err)
		// One graph path, two versions of a, one of c.
		require.Len(t, paths, 2)
		for _, path := range paths {
			assert.Equal(t, "a", path.StartEntityID)
			assert.Equal(t, "c", path.EndEntityID)
			assert.Equal(t, 2, path.Hops)
			assert.Equal(t, "c-v1", path.EndVersionID)
		}
		assert.Equal(t, "a-v1", paths[0].StartVersionID)
		assert.Equal(t, "a-v2", paths[1].StartVersionID)
	})

	t.Run("version ID pins a single version", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a-v2", "c", 3, true)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "a", paths[0].StartEntityID)
		assert.Equal(t, "a-v2", paths[0].StartVersionID)
	})

	t.Run("direct-only finds no multi-hop path", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "c", 3, false)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("direct-only finds single-hop paths", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "b", 3, false)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, 1, paths[0].Hops)
	})

	t.Run("non-positive hop bound is empty", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "c", 0, true)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("unknown identifier is empty", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "nope", 3, true)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("hop bound below path length is empty", func(t *testing.T) {
		paths, err := engine.FindTemporalPath(ctx, "a", "c", 1, true)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestFindTemporalPathWithoutGraph(t *testing.T) {
	engine := NewEngine(versionstore.NewMemoryStore(), nil, nil)
	_, err := engine.FindTemporalPath(context.Background(), "a", "b", 3, true)
	assert.ErrorIs(t, err, ErrNoGraphStore)
}
