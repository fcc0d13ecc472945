package types

import "time"

// ConflictType classifies a detected contradiction.
type ConflictType string

const (
	// ConflictNumericDiscrepancy flags numeric claims whose relative spread
	// exceeds the configured tolerance.
	ConflictNumericDiscrepancy ConflictType = "numeric_discrepancy"
	// ConflictCategoricalMismatch flags more than one distinct categorical value.
	ConflictCategoricalMismatch ConflictType = "categorical_mismatch"
	// ConflictBinaryOpposition flags a boolean claimed both true and false.
	ConflictBinaryOpposition ConflictType = "binary_opposition"
	// ConflictRelationshipExclusion flags mutually exclusive relationship
	// types between the same pair of entities.
	ConflictRelationshipExclusion ConflictType = "relationship_exclusion"
	// ConflictDefinitional flags incompatible definitions of the same concept.
	ConflictDefinitional ConflictType = "definitional"
	// ConflictTemporalInconsistency flags relationships whose entity dates
	// contradict the type's expected chronological direction.
	ConflictTemporalInconsistency ConflictType = "temporal_inconsistency"
)

// ResolutionStrategy names one way of resolving a contradiction.
type ResolutionStrategy string

const (
	StrategyNewestSource     ResolutionStrategy = "newest_source"
	StrategyHighestCitation  ResolutionStrategy = "highest_citation"
	StrategyMajorityVote     ResolutionStrategy = "majority_vote"
	StrategyWeightedAverage  ResolutionStrategy = "weighted_average"
	StrategyMarkConflict     ResolutionStrategy = "mark_conflict"
	StrategyHumanReview      ResolutionStrategy = "human_review"
	StrategyContextDependent ResolutionStrategy = "context_dependent"
)

// ResolutionStatus is the terminal state of a resolution attempt.
type ResolutionStatus string

const (
	StatusResolved         ResolutionStatus = "resolved"
	StatusMarkedAsConflict ResolutionStatus = "marked_as_conflict"
	StatusPendingReview    ResolutionStatus = "pending_review"
	StatusContextDependent ResolutionStatus = "resolved_as_context_dependent"
)

// Claim is one source's asserted value for a contested attribute.
type Claim struct {
	Value      interface{} `json:"value"`
	Source     string      `json:"source,omitempty"`
	SourceDate *time.Time  `json:"source_date,omitempty"`
	Citations  int         `json:"citations,omitempty"`
	Trust      float64     `json:"trust,omitempty"`
	Context    string      `json:"context,omitempty"`
}

// Contradiction is a detected conflict between concurrently held claims
// about the same entity or relationship from different sources. Severity is
// normalized to [0, 1].
type Contradiction struct {
	ID              string       `json:"id"`
	Type            ConflictType `json:"type"`
	EntityID        string       `json:"entity_id,omitempty"`
	SourceID        string       `json:"source_id,omitempty"`
	TargetID        string       `json:"target_id,omitempty"`
	Attribute       string       `json:"attribute,omitempty"`
	Claims          []Claim      `json:"claims,omitempty"`
	Severity        float64      `json:"severity"`
	Description     string       `json:"description,omitempty"`
	Evidence        []string     `json:"evidence,omitempty"`
	DetectionMethod string       `json:"detection_method"`
	DetectedAt      time.Time    `json:"detected_at"`
}

// Resolution links back to its contradiction and records the outcome of one
// resolution strategy. RequiresUpdate signals that ApplyResolutions must
// write the selected value back to the graph store.
type Resolution struct {
	ContradictionID string                 `json:"contradiction_id"`
	Strategy        ResolutionStrategy     `json:"resolution_strategy"`
	SelectedValue   interface{}            `json:"selected_value,omitempty"`
	SelectedSource  string                 `json:"selected_source,omitempty"`
	Status          ResolutionStatus       `json:"status"`
	RequiresUpdate  bool                   `json:"requires_update"`
	Details         map[string]interface{} `json:"details,omitempty"`
	ResolvedAt      time.Time              `json:"resolved_at"`
}
