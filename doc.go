// Package tempograph tracks how a knowledge graph evolves over time and
// manages contradictions between its sources.
//
// Every entity and relationship state change is recorded as an immutable
// version with temporal validity intervals, forming an append-only history
// per stable ID. On top of that history the package answers point-in-time
// queries, reconstructs and diffs graph snapshots, traces concept lineage,
// and aggregates creation timelines. A contradiction pipeline detects
// conflicting claims across sources, resolves them with pluggable
// strategies, and writes resolutions back to the current-state graph.
//
// The Client in this package is a facade over the underlying subsystems:
//
//	store, _ := versionstore.New(versionstore.Options{Backend: versionstore.BackendFile, Path: "./history"})
//	graph := driver.NewMemoryStore()
//	client, _ := tempograph.NewClient(store, graph, nil, nil)
//
//	result, _ := client.TrackEntityChange(ctx, entity, nil)
//	snapshot, _ := client.Snapshot(ctx, time.Now(), nil)
//
// Consumers needing only part of the surface should depend on the focused
// interfaces in interfaces.go instead of the full Client.
package tempograph
