package contradiction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soundprediction/tempograph/pkg/types"
)

// contextMarkers are the linguistic markers the context-dependent strategy
// looks for inside claim values.
var contextMarkers = []string{"in the context of", "in the setting of", "for the domain of", "when applied to"}

// ResolverConfig tunes the weighted-average strategy.
type ResolverConfig struct {
	// CitationWeight scales the citation factor in source weighting.
	CitationWeight float64 `mapstructure:"citation_weight"`
	// RecencyWeight scales the recency factor in source weighting.
	RecencyWeight float64 `mapstructure:"recency_weight"`
}

// DefaultResolverConfig returns the documented defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{CitationWeight: 1.0, RecencyWeight: 1.0}
}

// Resolver maps conflicts to resolutions. Every strategy is a pure function
// of the conflict record; strategies are registered in a fixed table keyed
// by the closed strategy enum.
type Resolver struct {
	config ResolverConfig
	now    func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) *Resolver {
	if config.CitationWeight == 0 {
		config.CitationWeight = 1.0
	}
	if config.RecencyWeight == 0 {
		config.RecencyWeight = 1.0
	}
	return &Resolver{config: config, now: time.Now}
}

// SelectStrategy returns the default strategy for a conflict type,
// overridden by an explicit caller choice when given.
func (r *Resolver) SelectStrategy(conflict *types.Contradiction, override types.ResolutionStrategy) types.ResolutionStrategy {
	if override != "" {
		return override
	}
	switch conflict.Type {
	case types.ConflictNumericDiscrepancy:
		return types.StrategyWeightedAverage
	case types.ConflictBinaryOpposition:
		return types.StrategyMajorityVote
	case types.ConflictCategoricalMismatch:
		if conflict.Severity > 0.7 {
			return types.StrategyHighestCitation
		}
		return types.StrategyMajorityVote
	case types.ConflictTemporalInconsistency:
		return types.StrategyHumanReview
	case types.ConflictDefinitional:
		return types.StrategyContextDependent
	default:
		return types.StrategyMarkConflict
	}
}

// Resolve applies a strategy to a conflict. Unknown strategies fall back to
// mark-conflict so no conflict is ever silently dropped.
func (r *Resolver) Resolve(conflict *types.Contradiction, strategy types.ResolutionStrategy) *types.Resolution {
	switch strategy {
	case types.StrategyNewestSource:
		return r.newestSource(conflict)
	case types.StrategyHighestCitation:
		return r.highestCitation(conflict)
	case types.StrategyMajorityVote:
		return r.majorityVote(conflict)
	case types.StrategyWeightedAverage:
		return r.weightedAverage(conflict)
	case types.StrategyHumanReview:
		return r.humanReview(conflict)
	case types.StrategyContextDependent:
		return r.contextDependent(conflict)
	default:
		return r.markConflict(conflict)
	}
}

// newestSource picks the claim with the latest source date.
func (r *Resolver) newestSource(conflict *types.Contradiction) *types.Resolution {
	var newest *types.Claim
	for i := range conflict.Claims {
		claim := &conflict.Claims[i]
		if claim.SourceDate == nil {
			continue
		}
		if newest == nil || claim.SourceDate.After(*newest.SourceDate) {
			newest = claim
		}
	}
	if newest == nil {
		return r.markConflict(conflict)
	}
	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyNewestSource,
		SelectedValue:   newest.Value,
		SelectedSource:  newest.Source,
		Status:          types.StatusResolved,
		RequiresUpdate:  true,
		ResolvedAt:      r.now().UTC(),
	}
}

// highestCitation picks the claim with the most citations.
func (r *Resolver) highestCitation(conflict *types.Contradiction) *types.Resolution {
	var best *types.Claim
	for i := range conflict.Claims {
		claim := &conflict.Claims[i]
		if claim.Citations <= 0 {
			continue
		}
		if best == nil || claim.Citations > best.Citations {
			best = claim
		}
	}
	if best == nil {
		return r.markConflict(conflict)
	}
	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyHighestCitation,
		SelectedValue:   best.Value,
		SelectedSource:  best.Source,
		Status:          types.StatusResolved,
		RequiresUpdate:  true,
		Details:         map[string]interface{}{"citations": best.Citations},
		ResolvedAt:      r.now().UTC(),
	}
}

// majorityVote picks the value with the highest occurrence count across
// sources. Values group case-insensitively; ties break by first-seen order.
func (r *Resolver) majorityVote(conflict *types.Contradiction) *types.Resolution {
	if len(conflict.Claims) == 0 {
		return r.markConflict(conflict)
	}

	counts := map[string]int{}
	firstSeen := map[string]int{}
	representative := map[string]*types.Claim{}
	for i := range conflict.Claims {
		claim := &conflict.Claims[i]
		key := strings.ToLower(strings.TrimSpace(fmt.Sprint(claim.Value)))
		if _, seen := counts[key]; !seen {
			firstSeen[key] = i
			representative[key] = claim
		}
		counts[key]++
	}

	var winner string
	for key, count := range counts {
		if winner == "" {
			winner = key
			continue
		}
		if count > counts[winner] || (count == counts[winner] && firstSeen[key] < firstSeen[winner]) {
			winner = key
		}
	}

	chosen := representative[winner]
	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyMajorityVote,
		SelectedValue:   chosen.Value,
		SelectedSource:  chosen.Source,
		Status:          types.StatusResolved,
		RequiresUpdate:  true,
		Details:         map[string]interface{}{"votes": counts[winner], "total": len(conflict.Claims)},
		ResolvedAt:      r.now().UTC(),
	}
}

// weightedAverage averages numeric claims weighted by citation count,
// recency, and explicit trust. Only valid for numeric conflicts; anything
// else falls back to mark-conflict.
func (r *Resolver) weightedAverage(conflict *types.Contradiction) *types.Resolution {
	if conflict.Type != types.ConflictNumericDiscrepancy {
		return r.markConflict(conflict)
	}

	var weightedSum, totalWeight float64
	count := 0
	for i := range conflict.Claims {
		claim := &conflict.Claims[i]
		value, ok := asFloat(claim.Value)
		if !ok {
			continue
		}
		weight := r.claimWeight(claim)
		weightedSum += value * weight
		totalWeight += weight
		count++
	}
	if count < 2 || totalWeight == 0 {
		return r.markConflict(conflict)
	}

	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyWeightedAverage,
		SelectedValue:   weightedSum / totalWeight,
		Status:          types.StatusResolved,
		RequiresUpdate:  true,
		Details:         map[string]interface{}{"claims_averaged": count},
		ResolvedAt:      r.now().UTC(),
	}
}

// claimWeight computes one source's weight:
// 1 + citationFactor*citationWeight + recencyFactor*recencyWeight, with an
// explicit trust score multiplying the result by (1+trust).
func (r *Resolver) claimWeight(claim *types.Claim) float64 {
	citationFactor := math.Min(5, math.Log10(float64(claim.Citations)+1)) / 5

	recencyFactor := 0.0
	if claim.SourceDate != nil {
		ageYears := r.now().UTC().Sub(*claim.SourceDate).Hours() / (24 * 365.25)
		switch {
		case ageYears <= 2:
			recencyFactor = 1.0
		case ageYears >= 12:
			recencyFactor = 0.0
		default:
			recencyFactor = (12 - ageYears) / 10
		}
	}

	weight := 1 + citationFactor*r.config.CitationWeight + recencyFactor*r.config.RecencyWeight
	if claim.Trust > 0 {
		weight *= 1 + claim.Trust
	}
	return weight
}

// markConflict chooses no value; the entity is annotated with conflict
// metadata during application and original values are retained.
func (r *Resolver) markConflict(conflict *types.Contradiction) *types.Resolution {
	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyMarkConflict,
		Status:          types.StatusMarkedAsConflict,
		RequiresUpdate:  true,
		ResolvedAt:      r.now().UTC(),
	}
}

// humanReview queues the conflict without any automatic action.
func (r *Resolver) humanReview(conflict *types.Contradiction) *types.Resolution {
	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyHumanReview,
		Status:          types.StatusPendingReview,
		RequiresUpdate:  false,
		ResolvedAt:      r.now().UTC(),
	}
}

// contextDependent looks for a distinct context per claim: an explicit
// linguistic marker inside the value, or the claim's source domain. Two or
// more distinct contexts mean both claims hold in their own context;
// otherwise fall back to mark-conflict.
func (r *Resolver) contextDependent(conflict *types.Contradiction) *types.Resolution {
	contexts := map[string]interface{}{}
	for i := range conflict.Claims {
		claim := &conflict.Claims[i]
		if context := extractContext(claim); context != "" {
			contexts[context] = claim.Value
		}
	}
	if len(contexts) < 2 {
		return r.markConflict(conflict)
	}

	return &types.Resolution{
		ContradictionID: conflict.ID,
		Strategy:        types.StrategyContextDependent,
		Status:          types.StatusContextDependent,
		RequiresUpdate:  true,
		Details:         map[string]interface{}{"contexts": contexts},
		ResolvedAt:      r.now().UTC(),
	}
}

// extractContext pulls a context token from a claim: text after a linguistic
// marker in the value, else the claim's context property.
func extractContext(claim *types.Claim) string {
	if text, ok := claim.Value.(string); ok {
		lower := strings.ToLower(text)
		for _, marker := range contextMarkers {
			if idx := strings.Index(lower, marker); idx >= 0 {
				rest := strings.TrimSpace(text[idx+len(marker):])
				if end := strings.IndexAny(rest, ".,;"); end > 0 {
					rest = rest[:end]
				}
				if rest != "" {
					return strings.ToLower(rest)
				}
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(claim.Context))
}
