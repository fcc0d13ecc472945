package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/types"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

// WriteVersionHistoryJSON dumps every version record of one kind to a single
// indented JSON file at path.
func WriteVersionHistoryJSON(ctx context.Context, store versionstore.Store, kind types.Kind, path string) (int, error) {
	records, err := loadHistory(ctx, store, kind)
	if err != nil {
		return 0, err
	}
	if err := writeJSONFile(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// WriteConflictLogJSON dumps the conflict log, resolutions included, to a
// single indented JSON file at path.
func WriteConflictLogJSON(ctx context.Context, log contradiction.Log, path string) (int, error) {
	entries := log.Entries()
	if err := writeJSONFile(path, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
