package pipeline

import (
	"fmt"
	"strings"
	"time"

	"mapaq-pipeline/internal/model"
)

// ------------------- Risk Modeling -------------------

// ScoringFunc maps a record's enriched attributes to a risk score in [0,1].
// It must be pure: no I/O, no shared state. The modeler is agnostic to the
// algorithm behind it, which keeps the model swappable without touching
// pipeline control flow.
type ScoringFunc func(rec *model.Record) (float64, error)

// Category thresholds on the [0,1] score scale:
// low < 0.40 <= medium < 0.60 <= high < 0.80 <= critical
const (
	ThresholdMedium   = 0.40
	ThresholdHigh     = 0.60
	ThresholdCritical = 0.80
)

// Re-inspection delays per risk band, in days
const (
	delayCritical = 30
	delayHigh     = 90
	delayDefault  = 180
)

// Categorize maps a score to its risk category.
func Categorize(score float64) string {
	switch {
	case score >= ThresholdCritical:
		return model.RiskCritical
	case score >= ThresholdHigh:
		return model.RiskHigh
	case score >= ThresholdMedium:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// RiskModeler applies the injected scoring function to every record and
// derives category and recommended next-inspection date. A record the
// scorer cannot handle is marked failed and excluded from persistence;
// the batch itself never aborts here.
type RiskModeler struct {
	Scorer ScoringFunc
}

// Score models the whole batch in place.
func (m *RiskModeler) Score(batch *model.Batch) (*model.Batch, error) {
	scorer := m.Scorer
	if scorer == nil {
		scorer = DefaultScorer
	}

	scored, failed := 0, 0
	for _, rec := range batch.Records {
		if rec.Failed {
			continue
		}
		score, err := scorer(rec)
		if err != nil {
			rec.Fail(model.StageModeling, ErrScoringFailure(fmt.Sprintf("record %s", rec.ID), err).Error())
			failed++
			continue
		}
		if score < 0 || score > 1 {
			rec.Fail(model.StageModeling, ErrScoringFailure(fmt.Sprintf("record %s: score %.3f out of [0,1]", rec.ID, score), nil).Error())
			failed++
			continue
		}
		s := score
		rec.RiskScore = &s
		rec.RiskCategory = Categorize(score)
		rec.NextInspection = nextInspection(rec.StatusDate, score)
		scored++
	}

	fmt.Printf("🤖 Modeling done: %d records scored, %d scoring failures\n", scored, failed)
	return batch, nil
}

// DefaultScorer is the rule-based baseline: a 0.50 base probability pushed
// up by recorded violations and a non-compliant status, capped at 1.0.
func DefaultScorer(rec *model.Record) (float64, error) {
	if rec.Theme == "" {
		return 0, fmt.Errorf("record %s is not enriched (no theme)", rec.ID)
	}

	score := 0.50
	score += float64(rec.Violations) * 0.15
	score += float64(rec.PriorViolations) * 0.05

	status := strings.ToLower(rec.Status)
	switch {
	case strings.Contains(status, "non conforme"):
		score += 0.30
	case strings.Contains(status, "remarques"):
		score += 0.10
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, nil
}

// nextInspection recommends a follow-up date from the risk band, counted
// from the observation date (or today when the date is unusable).
func nextInspection(statusDate string, score float64) string {
	base, err := time.Parse(model.DateLayout, statusDate)
	if err != nil {
		base = time.Now()
	}
	days := delayDefault
	switch {
	case score >= ThresholdCritical:
		days = delayCritical
	case score >= ThresholdHigh:
		days = delayHigh
	}
	return base.AddDate(0, 0, days).Format(model.DateLayout)
}
