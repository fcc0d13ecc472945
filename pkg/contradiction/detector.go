package contradiction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/types"
)

// AttributeKind classifies how an attribute's values conflict.
type AttributeKind string

const (
	AttributeNumeric     AttributeKind = "numeric"
	AttributeCategorical AttributeKind = "categorical"
	AttributeBinary      AttributeKind = "binary"
)

// attributeTable is the curated per-entity-type table of attributes checked
// for conflicts, with the comparison kind of each.
var attributeTable = map[string]map[string]AttributeKind{
	"Model": {
		"accuracy":       AttributeNumeric,
		"parameters":     AttributeNumeric,
		"f1_score":       AttributeNumeric,
		"architecture":   AttributeCategorical,
		"training_data":  AttributeCategorical,
		"is_supervised":  AttributeBinary,
		"is_open_source": AttributeBinary,
	},
	"Dataset": {
		"size":      AttributeNumeric,
		"language":  AttributeCategorical,
		"domain":    AttributeCategorical,
		"is_public": AttributeBinary,
	},
	"Method": {
		"complexity":       AttributeCategorical,
		"convergence_rate": AttributeNumeric,
		"is_deterministic": AttributeBinary,
	},
	"Concept": {
		"field": AttributeCategorical,
	},
}

// exclusivePairs lists mutually exclusive relationship types: both members
// holding between the same entity and target is a conflict.
var exclusivePairs = [][2]string{
	{"OUTPERFORMS", "UNDERPERFORMS"},
	{"SUPPORTS", "CONTRADICTS"},
	{"EXTENDS", "REPLACES"},
	{"IMPROVES_ON", "REGRESSES_FROM"},
}

// chronologyAfter lists relationship types whose source must postdate its
// target; chronologyBefore the reverse.
var (
	chronologyAfter  = map[string]bool{"CITES": true, "EXTENDS": true, "IMPROVES_ON": true}
	chronologyBefore = map[string]bool{"EVOLVED_INTO": true, "INSPIRED": true}
)

// dateProperties are the property keys consulted, in order, when dating an
// entity or claim.
var dateProperties = []string{"published_date", "source_date", "date", "year"}

// DetectorConfig tunes the detection strategies.
type DetectorConfig struct {
	// NumericTolerance is the maximum relative spread tolerated between
	// numeric claims before they conflict.
	NumericTolerance float64 `mapstructure:"numeric_tolerance"`
	// DefinitionSimilarityThreshold is the word-level Jaccard similarity
	// below which two definitions of the same concept are incompatible.
	DefinitionSimilarityThreshold float64 `mapstructure:"definition_similarity_threshold"`
}

// DefaultDetectorConfig returns the documented defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		NumericTolerance:              0.05,
		DefinitionSimilarityThreshold: 0.5,
	}
}

// Detector runs the detection strategies over entity batches. The graph
// store is consulted read-only for relationship and chronology checks; it
// may be nil, in which case those strategies are skipped.
type Detector struct {
	config DetectorConfig
	graph  driver.GraphStore
}

// NewDetector creates a Detector.
func NewDetector(config DetectorConfig, graph driver.GraphStore) *Detector {
	if config.NumericTolerance <= 0 {
		config.NumericTolerance = 0.05
	}
	if config.DefinitionSimilarityThreshold <= 0 {
		config.DefinitionSimilarityThreshold = 0.5
	}
	return &Detector{config: config, graph: graph}
}

// detectionStrategy is one independent detection pass. Strategies are
// registered in a fixed table rather than dispatched dynamically.
type detectionStrategy struct {
	method string
	run    func(ctx context.Context, groups []entityGroup) []*types.Contradiction
}

// Detect runs every detection strategy over the batch and returns all
// conflicts found. Entities are grouped by logical identity first: shared
// entity ID, or shared normalized name when IDs differ.
func (d *Detector) Detect(ctx context.Context, entities []*types.Entity) ([]*types.Contradiction, error) {
	groups := groupEntities(entities)

	strategies := []detectionStrategy{
		{method: "attribute_comparison", run: d.detectAttributeConflicts},
		{method: "relationship_exclusion", run: d.detectRelationshipConflicts},
		{method: "definition_similarity", run: d.detectDefinitionalConflicts},
		{method: "temporal_ordering", run: d.detectTemporalInconsistencies},
	}

	var conflicts []*types.Contradiction
	for _, strategy := range strategies {
		conflicts = append(conflicts, strategy.run(ctx, groups)...)
	}
	return conflicts, nil
}

// entityGroup is a set of entity versions believed to describe the same
// real-world thing.
type entityGroup struct {
	key      string
	entities []*types.Entity
}

func groupEntities(entities []*types.Entity) []entityGroup {
	byKey := map[string][]*types.Entity{}
	var order []string
	for _, entity := range entities {
		if entity == nil || entity.EntityID == "" {
			continue
		}
		key := entity.EntityID
		if name := strings.ToLower(strings.TrimSpace(entity.Name())); name != "" {
			key = name
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], entity)
	}

	groups := make([]entityGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, entityGroup{key: key, entities: byKey[key]})
	}
	return groups
}

// detectAttributeConflicts checks curated attributes for concurrent
// conflicting values across a group's versions/sources.
func (d *Detector) detectAttributeConflicts(ctx context.Context, groups []entityGroup) []*types.Contradiction {
	var conflicts []*types.Contradiction
	for _, group := range groups {
		if len(group.entities) < 2 {
			continue
		}
		attrs := attributesFor(group.entities)
		for _, attr := range sortedKeys(attrs) {
			claims := collectClaims(group.entities, attr)
			if len(claims) < 2 {
				continue
			}
			if conflict := d.checkAttribute(group, attr, attrs[attr], claims); conflict != nil {
				conflicts = append(conflicts, conflict)
			}
		}
	}
	return conflicts
}

// attributesFor unions the curated attribute tables of every label carried
// by the group.
func attributesFor(entities []*types.Entity) map[string]AttributeKind {
	attrs := map[string]AttributeKind{}
	for _, entity := range entities {
		for _, label := range entity.Labels {
			for attr, kind := range attributeTable[label] {
				attrs[attr] = kind
			}
		}
	}
	return attrs
}

// collectClaims gathers each version's value for an attribute along with
// the source provenance properties that resolution strategies consume.
func collectClaims(entities []*types.Entity, attr string) []types.Claim {
	var claims []types.Claim
	for _, entity := range entities {
		if entity.Properties == nil {
			continue
		}
		value, ok := entity.Properties[attr]
		if !ok {
			continue
		}
		claim := types.Claim{Value: value}
		if source, ok := entity.Properties["source"].(string); ok {
			claim.Source = source
		}
		if date := entityDate(entity); date != nil {
			claim.SourceDate = date
		}
		if citations, ok := asFloat(entity.Properties["citations"]); ok {
			claim.Citations = int(citations)
		}
		if trust, ok := asFloat(entity.Properties["trust_score"]); ok {
			claim.Trust = trust
		}
		if context, ok := entity.Properties["context"].(string); ok {
			claim.Context = context
		} else if domain, ok := entity.Properties["domain"].(string); ok {
			claim.Context = domain
		}
		claims = append(claims, claim)
	}
	return claims
}

func (d *Detector) checkAttribute(group entityGroup, attr string, kind AttributeKind, claims []types.Claim) *types.Contradiction {
	switch kind {
	case AttributeNumeric:
		return d.checkNumeric(group, attr, claims)
	case AttributeBinary:
		return d.checkBinary(group, attr, claims)
	default:
		return d.checkCategorical(group, attr, claims)
	}
}

// checkNumeric flags claims whose relative spread exceeds the tolerance.
// Severity scales with how far the spread overshoots, saturating at four
// times the tolerance.
func (d *Detector) checkNumeric(group entityGroup, attr string, claims []types.Claim) *types.Contradiction {
	var values []float64
	var numericClaims []types.Claim
	for _, claim := range claims {
		if v, ok := asFloat(claim.Value); ok {
			values = append(values, v)
			numericClaims = append(numericClaims, claim)
		}
	}
	if len(values) < 2 {
		return nil
	}

	minVal, maxVal, mean := values[0], values[0], 0.0
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return nil
	}

	spread := (maxVal - minVal) / math.Abs(mean)
	if spread <= d.config.NumericTolerance {
		return nil
	}

	severity := math.Min(1.0, spread/(4*d.config.NumericTolerance))
	return d.newContradiction(group, types.ConflictNumericDiscrepancy, attr, numericClaims, severity,
		fmt.Sprintf("numeric values for %q spread %.1f%% across sources (tolerance %.1f%%)",
			attr, spread*100, d.config.NumericTolerance*100),
		"attribute_comparison")
}

// checkBinary flags a boolean claimed both true and false. Always severity 1.
func (d *Detector) checkBinary(group entityGroup, attr string, claims []types.Claim) *types.Contradiction {
	var sawTrue, sawFalse bool
	for _, claim := range claims {
		if b, ok := asBool(claim.Value); ok {
			if b {
				sawTrue = true
			} else {
				sawFalse = true
			}
		}
	}
	if !sawTrue || !sawFalse {
		return nil
	}
	return d.newContradiction(group, types.ConflictBinaryOpposition, attr, claims, 1.0,
		fmt.Sprintf("binary attribute %q asserted both true and false", attr),
		"attribute_comparison")
}

// checkCategorical flags more than one distinct normalized value. Severity
// grows with the number of distinct values.
func (d *Detector) checkCategorical(group entityGroup, attr string, claims []types.Claim) *types.Contradiction {
	distinct := map[string]bool{}
	for _, claim := range claims {
		normalized := strings.ToLower(strings.TrimSpace(fmt.Sprint(claim.Value)))
		if normalized != "" {
			distinct[normalized] = true
		}
	}
	if len(distinct) < 2 {
		return nil
	}
	severity := math.Min(1.0, 0.4+0.2*float64(len(distinct)-1))
	return d.newContradiction(group, types.ConflictCategoricalMismatch, attr, claims, severity,
		fmt.Sprintf("%d distinct values reported for categorical attribute %q", len(distinct), attr),
		"attribute_comparison")
}

// detectRelationshipConflicts flags mutually exclusive relationship types
// held between the same entity and target.
func (d *Detector) detectRelationshipConflicts(ctx context.Context, groups []entityGroup) []*types.Contradiction {
	if d.graph == nil {
		return nil
	}

	var conflicts []*types.Contradiction
	for _, group := range groups {
		for _, entity := range group.entities {
			rels, err := d.graph.GetOutgoingRelationships(ctx, entity.EntityID, "")
			if err != nil {
				continue
			}
			byTarget := map[string]map[string]bool{}
			for _, rel := range rels {
				if byTarget[rel.TargetID] == nil {
					byTarget[rel.TargetID] = map[string]bool{}
				}
				byTarget[rel.TargetID][rel.Type] = true
			}
			for _, target := range sortedKeysBool(byTarget) {
				relTypes := byTarget[target]
				for _, pair := range exclusivePairs {
					if relTypes[pair[0]] && relTypes[pair[1]] {
						conflicts = append(conflicts, &types.Contradiction{
							ID:       uuid.New().String(),
							Type:     types.ConflictRelationshipExclusion,
							EntityID: entity.EntityID,
							SourceID: entity.EntityID,
							TargetID: target,
							Severity: 1.0,
							Description: fmt.Sprintf("mutually exclusive relationships %s and %s both held toward %s",
								pair[0], pair[1], target),
							Evidence:        []string{pair[0], pair[1]},
							DetectionMethod: "relationship_exclusion",
							DetectedAt:      time.Now().UTC(),
						})
					}
				}
			}
		}
	}
	return conflicts
}

// detectDefinitionalConflicts flags Concept entities sharing a name whose
// definitions diverge below the similarity threshold.
func (d *Detector) detectDefinitionalConflicts(ctx context.Context, groups []entityGroup) []*types.Contradiction {
	var conflicts []*types.Contradiction
	for _, group := range groups {
		var definitions []types.Claim
		for _, entity := range group.entities {
			if !entity.HasLabel("Concept") || entity.Properties == nil {
				continue
			}
			if def, ok := entity.Properties["definition"].(string); ok && def != "" {
				claim := types.Claim{Value: def}
				if source, ok := entity.Properties["source"].(string); ok {
					claim.Source = source
				}
				definitions = append(definitions, claim)
			}
		}
		if len(definitions) < 2 {
			continue
		}

		lowest := 1.0
		conflicting := false
		for i := 0; i < len(definitions); i++ {
			for j := i + 1; j < len(definitions); j++ {
				similarity := jaccardSimilarity(
					definitions[i].Value.(string), definitions[j].Value.(string))
				if similarity < d.config.DefinitionSimilarityThreshold {
					conflicting = true
					lowest = math.Min(lowest, similarity)
				}
			}
		}
		if !conflicting {
			continue
		}

		conflicts = append(conflicts, d.newContradiction(group, types.ConflictDefinitional,
			"definition", definitions, 1.0-lowest,
			fmt.Sprintf("definitions of %q diverge (similarity %.2f below %.2f)",
				group.key, lowest, d.config.DefinitionSimilarityThreshold),
			"definition_similarity"))
	}
	return conflicts
}

// detectTemporalInconsistencies flags relationships whose entity dates
// contradict the type's expected chronological direction. Entities without
// parseable dates are skipped.
func (d *Detector) detectTemporalInconsistencies(ctx context.Context, groups []entityGroup) []*types.Contradiction {
	if d.graph == nil {
		return nil
	}

	var conflicts []*types.Contradiction
	for _, group := range groups {
		for _, entity := range group.entities {
			sourceDate := entityDate(entity)
			if sourceDate == nil {
				continue
			}
			rels, err := d.graph.GetOutgoingRelationships(ctx, entity.EntityID, "")
			if err != nil {
				continue
			}
			for _, rel := range rels {
				wantAfter := chronologyAfter[rel.Type]
				wantBefore := chronologyBefore[rel.Type]
				if !wantAfter && !wantBefore {
					continue
				}
				target, err := d.graph.GetEntity(ctx, rel.TargetID)
				if err != nil {
					continue
				}
				targetDate := entityDate(target)
				if targetDate == nil {
					continue
				}

				violated := (wantAfter && sourceDate.Before(*targetDate)) ||
					(wantBefore && sourceDate.After(*targetDate))
				if !violated {
					continue
				}

				direction := "postdate"
				if wantBefore {
					direction = "predate"
				}
				conflicts = append(conflicts, &types.Contradiction{
					ID:       uuid.New().String(),
					Type:     types.ConflictTemporalInconsistency,
					EntityID: entity.EntityID,
					SourceID: entity.EntityID,
					TargetID: rel.TargetID,
					Severity: 0.8,
					Description: fmt.Sprintf("%s requires the source to %s its target, but %s predates %s",
						rel.Type, direction, sourceDate.Format("2006-01-02"), targetDate.Format("2006-01-02")),
					Evidence:        []string{rel.Type},
					DetectionMethod: "temporal_ordering",
					DetectedAt:      time.Now().UTC(),
				})
			}
		}
	}
	return conflicts
}

func (d *Detector) newContradiction(group entityGroup, conflictType types.ConflictType, attr string, claims []types.Claim, severity float64, description, method string) *types.Contradiction {
	entityID := ""
	if len(group.entities) > 0 {
		entityID = group.entities[0].EntityID
	}
	evidence := make([]string, 0, len(claims))
	for _, claim := range claims {
		evidence = append(evidence, fmt.Sprintf("%v (source=%s)", claim.Value, claim.Source))
	}
	return &types.Contradiction{
		ID:              uuid.New().String(),
		Type:            conflictType,
		EntityID:        entityID,
		Attribute:       attr,
		Claims:          claims,
		Severity:        severity,
		Description:     description,
		Evidence:        evidence,
		DetectionMethod: method,
		DetectedAt:      time.Now().UTC(),
	}
}

// entityDate extracts the first parseable date property, trying full
// timestamps, dates, and bare years.
func entityDate(entity *types.Entity) *time.Time {
	if entity == nil || entity.Properties == nil {
		return nil
	}
	for _, key := range dateProperties {
		value, ok := entity.Properties[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case time.Time:
			return &v
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02", "2006"} {
				if parsed, err := time.Parse(layout, v); err == nil {
					return &parsed
				}
			}
		default:
			if year, ok := asFloat(value); ok && year > 1000 && year < 3000 {
				t := time.Date(int(year), 1, 1, 0, 0, 0, 0, time.UTC)
				return &t
			}
		}
	}
	return nil
}

// jaccardSimilarity computes word-level Jaccard similarity of two texts.
func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}

	intersection := 0
	for word := range wordsA {
		if wordsB[word] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]\"'")
		if word != "" {
			set[word] = true
		}
	}
	return set
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

func sortedKeys(m map[string]AttributeKind) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysBool(m map[string]map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
