package contradiction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/tempograph/pkg/alert"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/evolution"
	"github.com/soundprediction/tempograph/pkg/types"
)

// Config carries the tunables for the whole contradiction pipeline.
type Config struct {
	Detector DetectorConfig `mapstructure:"detector"`
	Resolver ResolverConfig `mapstructure:"resolver"`
}

// DefaultConfig returns the documented defaults for both stages.
func DefaultConfig() Config {
	return Config{
		Detector: DefaultDetectorConfig(),
		Resolver: DefaultResolverConfig(),
	}
}

// System wires detection, resolution, the audit log, and write-back
// together. The graph store may be nil for detect/resolve-only use; the
// tracker may be nil to skip version re-tracking after write-back.
type System struct {
	detector *Detector
	resolver *Resolver
	log      Log
	graph    driver.GraphStore
	tracker  *evolution.Tracker
	alerter  alert.Alerter
	logger   *slog.Logger
}

// NewSystem creates a System. A nil log gets an in-memory one.
func NewSystem(config Config, graph driver.GraphStore, tracker *evolution.Tracker, log Log, logger *slog.Logger) *System {
	if log == nil {
		log = NewMemoryLog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		detector: NewDetector(config.Detector, graph),
		resolver: NewResolver(config.Resolver),
		log:      log,
		graph:    graph,
		tracker:  tracker,
		alerter:  &alert.NoOpAlerter{},
		logger:   logger,
	}
}

// Log exposes the audit log for inspection and export.
func (s *System) Log() Log { return s.log }

// SetAlerter installs the notifier for conflicts queued for human review.
func (s *System) SetAlerter(alerter alert.Alerter) {
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}
	s.alerter = alerter
}

// DetectContradictions runs every detection strategy over the batch and
// records each conflict in the audit log.
func (s *System) DetectContradictions(ctx context.Context, entities []*types.Entity) ([]*types.Contradiction, error) {
	conflicts, err := s.detector.Detect(ctx, entities)
	if err != nil {
		return nil, err
	}
	for _, conflict := range conflicts {
		s.log.Record(conflict)
	}
	if len(conflicts) > 0 {
		s.logger.Info("detected contradictions", "count", len(conflicts))
	}
	return conflicts, nil
}

// ResolveContradictions resolves each conflict with the given strategy
// (or each conflict's default strategy when strategy is empty) and attaches
// the outcome to the audit log.
func (s *System) ResolveContradictions(ctx context.Context, conflicts []*types.Contradiction, strategy types.ResolutionStrategy) ([]*types.Resolution, error) {
	resolutions := make([]*types.Resolution, 0, len(conflicts))
	for _, conflict := range conflicts {
		selected := s.resolver.SelectStrategy(conflict, strategy)
		resolution := s.resolver.Resolve(conflict, selected)
		s.log.Resolve(resolution)
		resolutions = append(resolutions, resolution)

		if resolution.Status == types.StatusPendingReview {
			subject := fmt.Sprintf("Conflict %s needs review", conflict.ID)
			if err := s.alerter.Alert(subject, conflict.Description); err != nil {
				s.logger.Warn("failed to send review alert",
					"contradiction_id", conflict.ID, "error", err)
			}
		}

		s.logger.Debug("resolved contradiction",
			"contradiction_id", conflict.ID,
			"strategy", string(resolution.Strategy),
			"status", string(resolution.Status))
	}
	return resolutions, nil
}
