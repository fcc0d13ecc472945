package temporal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/tempograph/pkg/types"
)

// evolutionRelationshipTypes are the explicit concept-lineage relationship
// types collected by TraceConceptEvolution.
var evolutionRelationshipTypes = map[string]bool{
	"EVOLVED_INTO": true,
	"REPLACED_BY":  true,
	"INSPIRED":     true,
	"MERGED_WITH":  true,
}

// ConceptEvolution traces how a named concept changed over a date range.
type ConceptEvolution struct {
	Query      string   `json:"query"`
	MatchedIDs []string `json:"matched_ids"`

	// Versions holds every matched entity version within the date bound,
	// ascending by ValidFrom.
	Versions []*types.Entity `json:"versions"`

	// EvolutionRelationships holds explicit lineage relationships among the
	// matched entities.
	EvolutionRelationships []*types.Relationship `json:"evolution_relationships,omitempty"`

	// Related holds one-hop neighbors outside the matched set, collected
	// only when requested.
	Related []*types.Entity `json:"related,omitempty"`
}

// TraceConceptEvolution resolves all stable entities whose name matches the
// query (exact or substring, case-insensitive), collects their versions
// within [from, to], and gathers explicit evolution relationships among
// them. With includeRelated it also collects one-hop neighbors outside the
// matched set.
func (e *Engine) TraceConceptEvolution(ctx context.Context, name string, from, to time.Time, includeRelated bool) (*ConceptEvolution, error) {
	trace := &ConceptEvolution{Query: name}
	needle := strings.ToLower(name)

	entityIDs, err := e.store.StableIDs(ctx, types.KindEntity)
	if err != nil {
		return nil, err
	}

	matched := map[string]bool{}
	for _, id := range entityIDs {
		history, err := e.store.History(ctx, types.KindEntity, id)
		if err != nil {
			return nil, err
		}
		for _, record := range history {
			entity := record.Entity
			if entity == nil {
				continue
			}
			if !strings.Contains(strings.ToLower(entity.Name()), needle) {
				continue
			}
			if !matched[id] {
				matched[id] = true
				trace.MatchedIDs = append(trace.MatchedIDs, id)
			}
			if inDateBound(entity.ValidFrom, from, to) {
				trace.Versions = append(trace.Versions, entity)
			}
		}
	}
	sort.Strings(trace.MatchedIDs)
	sort.Slice(trace.Versions, func(i, j int) bool {
		return trace.Versions[i].ValidFrom.Before(trace.Versions[j].ValidFrom)
	})

	if len(matched) == 0 {
		return trace, nil
	}

	relIDs, err := e.store.StableIDs(ctx, types.KindRelationship)
	if err != nil {
		return nil, err
	}
	neighborIDs := map[string]bool{}
	for _, id := range relIDs {
		latest, err := e.store.Latest(ctx, types.KindRelationship, id)
		if err != nil {
			return nil, err
		}
		if latest == nil || latest.Relationship == nil {
			continue
		}
		rel := latest.Relationship

		if evolutionRelationshipTypes[rel.Type] && matched[rel.SourceID] && matched[rel.TargetID] {
			trace.EvolutionRelationships = append(trace.EvolutionRelationships, rel)
		}
		if includeRelated {
			if matched[rel.SourceID] && !matched[rel.TargetID] {
				neighborIDs[rel.TargetID] = true
			}
			if matched[rel.TargetID] && !matched[rel.SourceID] {
				neighborIDs[rel.SourceID] = true
			}
		}
	}
	sort.Slice(trace.EvolutionRelationships, func(i, j int) bool {
		return trace.EvolutionRelationships[i].ID < trace.EvolutionRelationships[j].ID
	})

	for id := range neighborIDs {
		latest, err := e.store.Latest(ctx, types.KindEntity, id)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Entity != nil {
			trace.Related = append(trace.Related, latest.Entity)
		}
	}
	sort.Slice(trace.Related, func(i, j int) bool {
		return trace.Related[i].EntityID < trace.Related[j].EntityID
	})

	return trace, nil
}

func inDateBound(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// Granularity selects the period width for timeline bucketing.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Timeline counts entity creation events per period per label. Counts is
// zero-filled: every period key maps every observed label, absent labels
// counting zero.
type Timeline struct {
	Granularity Granularity               `json:"granularity"`
	Periods     []string                  `json:"periods"`
	Counts      map[string]map[string]int `json:"counts"`
}

// Timeline buckets entity creation events (the first version's ValidFrom)
// into period keys. entityType restricts which entities count (and which
// labels appear); empty means all labels.
func (e *Engine) Timeline(ctx context.Context, entityType string, from, to time.Time, granularity Granularity) (*Timeline, error) {
	switch granularity {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
	case "":
		granularity = GranularityMonth
	default:
		return nil, fmt.Errorf("unsupported timeline granularity: %s", granularity)
	}

	entityIDs, err := e.store.StableIDs(ctx, types.KindEntity)
	if err != nil {
		return nil, err
	}

	counts := map[string]map[string]int{}
	labels := map[string]bool{}
	for _, id := range entityIDs {
		history, err := e.store.History(ctx, types.KindEntity, id)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 || history[0].Entity == nil {
			continue
		}

		created := history[0].Entity
		if entityType != "" && !created.HasLabel(entityType) {
			continue
		}
		if !inDateBound(created.ValidFrom, from, to) {
			continue
		}

		period := periodKey(created.ValidFrom, granularity)
		if counts[period] == nil {
			counts[period] = map[string]int{}
		}
		entityLabels := created.Labels
		if entityType != "" {
			entityLabels = []string{entityType}
		}
		if len(entityLabels) == 0 {
			entityLabels = []string{"unlabeled"}
		}
		for _, label := range entityLabels {
			counts[period][label]++
			labels[label] = true
		}
	}

	// Zero-fill every observed label into every period.
	periods := make([]string, 0, len(counts))
	for period := range counts {
		periods = append(periods, period)
		for label := range labels {
			if _, ok := counts[period][label]; !ok {
				counts[period][label] = 0
			}
		}
	}
	sort.Strings(periods)

	return &Timeline{Granularity: granularity, Periods: periods, Counts: counts}, nil
}

// periodKey formats the bucket key for an instant. Week buckets use the ISO
// week-year, so late-December days in ISO week 1 (and week-53 days in early
// January) bucket under the ISO year they belong to.
func periodKey(t time.Time, granularity Granularity) string {
	t = t.UTC()
	switch granularity {
	case GranularityDay:
		return t.Format("2006-01-02")
	case GranularityWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006")
	}
}
