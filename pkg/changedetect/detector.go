// Package changedetect computes structured diffs between two versions of the
// same entity or relationship. An empty diff tells the evolution tracker to
// decline creating a new version.
package changedetect

import (
	"math"
	"reflect"
	"sort"

	"github.com/soundprediction/tempograph/pkg/types"
)

// DefaultMinConfidenceDifference is the smallest confidence delta treated as
// significant. Smaller moves are float noise from upstream extraction and
// would otherwise churn the version history.
const DefaultMinConfidenceDifference = 0.1

// internalKeys are metadata properties excluded from property comparison.
var internalKeys = map[string]bool{
	"version_id":          true,
	"version_timestamp":   true,
	"previous_version_id": true,
	"temporal_metadata":   true,
}

// Detector compares versions of the same record and produces change sets.
type Detector struct {
	// MinConfidenceDifference filters sub-threshold confidence moves.
	MinConfidenceDifference float64
}

// New creates a Detector with the default confidence threshold.
func New() *Detector {
	return &Detector{MinConfidenceDifference: DefaultMinConfidenceDifference}
}

// CompareEntities diffs two versions of an entity. It returns nil when no
// significant change exists.
func (d *Detector) CompareEntities(newVersion, oldVersion *types.Entity) *types.ChangeSet {
	if newVersion == nil || oldVersion == nil {
		return nil
	}

	changes := &types.ChangeSet{}
	changes.Labels = diffLabels(newVersion.Labels, oldVersion.Labels)
	changes.Properties = d.diffProperties(newVersion.Properties, oldVersion.Properties)

	if changes.Empty() {
		return nil
	}
	return changes
}

// CompareRelationships diffs two versions of a relationship. Type and
// endpoint changes are always significant.
func (d *Detector) CompareRelationships(newVersion, oldVersion *types.Relationship) *types.ChangeSet {
	if newVersion == nil || oldVersion == nil {
		return nil
	}

	changes := &types.ChangeSet{}
	if newVersion.Type != oldVersion.Type {
		changes.Type = &types.PropertyChange{
			OldValue: oldVersion.Type,
			NewValue: newVersion.Type,
			Status:   types.PropertyChanged,
		}
	}
	if newVersion.SourceID != oldVersion.SourceID || newVersion.TargetID != oldVersion.TargetID {
		changes.Endpoints = &types.EndpointChange{
			OldSourceID: oldVersion.SourceID,
			NewSourceID: newVersion.SourceID,
			OldTargetID: oldVersion.TargetID,
			NewTargetID: newVersion.TargetID,
		}
	}
	changes.Properties = d.diffProperties(newVersion.Properties, oldVersion.Properties)

	if changes.Empty() {
		return nil
	}
	return changes
}

// diffLabels computes the set difference between label slices. Order in the
// result is sorted for stable output.
func diffLabels(newLabels, oldLabels []string) *types.LabelChanges {
	newSet := toSet(newLabels)
	oldSet := toSet(oldLabels)

	var added, removed []string
	for label := range newSet {
		if !oldSet[label] {
			added = append(added, label)
		}
	}
	for label := range oldSet {
		if !newSet[label] {
			removed = append(removed, label)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	sort.Strings(added)
	sort.Strings(removed)
	return &types.LabelChanges{Added: added, Removed: removed}
}

// diffProperties compares every property present in either version,
// excluding internal metadata keys.
func (d *Detector) diffProperties(newProps, oldProps map[string]interface{}) map[string]*types.PropertyChange {
	diffs := map[string]*types.PropertyChange{}

	for key, newVal := range newProps {
		if internalKeys[key] {
			continue
		}
		oldVal, existed := oldProps[key]
		if !existed {
			diffs[key] = &types.PropertyChange{NewValue: newVal, Status: types.PropertyAdded}
			continue
		}
		if valuesEqual(newVal, oldVal) {
			continue
		}
		if key == "confidence" && !d.confidenceSignificant(newVal, oldVal) {
			continue
		}
		diffs[key] = &types.PropertyChange{OldValue: oldVal, NewValue: newVal, Status: types.PropertyChanged}
	}

	for key, oldVal := range oldProps {
		if internalKeys[key] {
			continue
		}
		if _, stillThere := newProps[key]; !stillThere {
			diffs[key] = &types.PropertyChange{OldValue: oldVal, Status: types.PropertyRemoved}
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}

// confidenceSignificant reports whether a confidence move clears the noise
// threshold. Non-numeric confidence values are always significant.
func (d *Detector) confidenceSignificant(newVal, oldVal interface{}) bool {
	newF, newOK := asFloat(newVal)
	oldF, oldOK := asFloat(oldVal)
	if !newOK || !oldOK {
		return true
	}
	return math.Abs(newF-oldF) >= d.MinConfidenceDifference
}

// valuesEqual compares property values. Numeric values compare by magnitude
// so 1 and 1.0 from different JSON decodes are equal.
func valuesEqual(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
