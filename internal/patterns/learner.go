package patterns

import (
	"context"
	"math"
	"time"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/pkg/errors"
	"ledger-matching-engine/pkg/logger"
)

// FeedbackUpdate reports a pattern's metrics after a feedback event.
type FeedbackUpdate struct {
	PatternID    string  `json:"pattern_id"`
	AccuracyRate float64 `json:"updated_accuracy"`
	Confidence   float64 `json:"updated_confidence"`
	AutoApply    bool    `json:"auto_apply"`
	TimesSeen    int     `json:"times_seen"`
}

// Learner closes the learning loop: it records user accept/modify/reject
// decisions and recomputes the affected pattern's rolling accuracy,
// confidence and auto-apply eligibility.
type Learner struct {
	config *ScoringConfig
	store  PatternStore
	logger logger.Logger
}

// NewLearner creates a feedback learner backed by the given store
func NewLearner(store PatternStore, config *ScoringConfig) *Learner {
	if config == nil {
		config = DefaultScoringConfig()
	}

	return &Learner{
		config: config,
		store:  store,
		logger: logger.GetGlobalLogger().WithComponent("feedback_learner"),
	}
}

// RecordFeedback applies one user decision to a pattern's metrics through
// the store's atomic update. Accepted and rejected adjust the accuracy
// counters; modified is a neutral signal that only counts as a sighting,
// since the user largely kept the suggestion and it should neither reward
// nor punish the pattern's accuracy.
func (l *Learner) RecordFeedback(ctx context.Context, patternID string, action models.FeedbackAction) (*FeedbackUpdate, error) {
	if !action.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidFeedback, "action", string(action))
	}

	updated, err := l.store.UpdatePatternMetrics(ctx, patternID, func(p *models.Pattern) error {
		p.TimesSeen++

		switch action {
		case models.FeedbackAccepted:
			p.TimesAccepted++
		case models.FeedbackRejected:
			p.TimesRejected++
		}

		l.recalculate(p)
		return nil
	})
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStore, errors.CodeStoreUnavailable, "failed to update pattern metrics")
	}

	l.logger.WithFields(logger.Fields{
		"pattern":    updated.PatternName,
		"action":     string(action),
		"accuracy":   updated.AccuracyRate,
		"confidence": updated.Confidence,
		"auto_apply": updated.AutoApply,
	}).Info("Pattern feedback recorded")

	return &FeedbackUpdate{
		PatternID:    updated.ID,
		AccuracyRate: updated.AccuracyRate,
		Confidence:   updated.Confidence,
		AutoApply:    updated.AutoApply,
		TimesSeen:    updated.TimesSeen,
	}, nil
}

// recalculate recomputes a pattern's accuracy, confidence and auto-apply
// eligibility from its feedback counters.
//
// Confidence is the accuracy discounted by sample volume: until
// VolumeTarget feedback events have accumulated, one lucky or unlucky
// early result cannot swing trust to an extreme.
//
// Auto-apply uses hysteretic thresholds: promotion requires accuracy at
// or above PromoteAccuracy with enough volume, demotion happens only when
// accuracy falls below DemoteAccuracy. In between, the flag keeps its
// current state.
func (l *Learner) recalculate(p *models.Pattern) {
	total := p.TotalFeedback()
	if total > 0 {
		p.AccuracyRate = roundTwo(float64(p.TimesAccepted) / float64(total) * 100.0)

		volumeWeight := math.Min(float64(total)/float64(l.config.VolumeTarget), 1.0)
		p.Confidence = roundTwo(p.AccuracyRate * volumeWeight)

		if p.AccuracyRate >= l.config.PromoteAccuracy && total >= l.config.VolumeTarget {
			p.AutoApply = true
		} else if p.AccuracyRate < l.config.DemoteAccuracy {
			p.AutoApply = false
		}
	}

	now := time.Now().UTC()
	p.LastTrained = &now
}

func roundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
