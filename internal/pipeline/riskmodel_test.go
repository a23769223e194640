package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapaq-pipeline/internal/model"
)

func TestCategorize(t *testing.T) {
	assert.Equal(t, model.RiskLow, Categorize(0.0))
	assert.Equal(t, model.RiskLow, Categorize(0.39))
	assert.Equal(t, model.RiskMedium, Categorize(0.40))
	assert.Equal(t, model.RiskMedium, Categorize(0.59))
	assert.Equal(t, model.RiskHigh, Categorize(0.60))
	assert.Equal(t, model.RiskHigh, Categorize(0.79))
	assert.Equal(t, model.RiskCritical, Categorize(0.80))
	assert.Equal(t, model.RiskCritical, Categorize(1.0))
}

func TestDefaultScorer(t *testing.T) {
	base := &model.Record{ID: "REST_00001", Theme: "italian", Status: "Conforme"}
	score, err := DefaultScorer(base)
	require.NoError(t, err)
	assert.InDelta(t, 0.50, score, 1e-9)

	nonCompliant := &model.Record{ID: "REST_00002", Theme: "italian", Status: "Non conforme", Violations: 1}
	score, err = DefaultScorer(nonCompliant)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, score, 1e-9) // 0.50 + 0.15 + 0.30

	remarks := &model.Record{ID: "REST_00003", Theme: "asian", Status: "Conforme avec remarques"}
	score, err = DefaultScorer(remarks)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, score, 1e-9)

	capped := &model.Record{ID: "REST_00004", Theme: "grill", Status: "Non conforme", Violations: 5, PriorViolations: 4}
	score, err = DefaultScorer(capped)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score, "score is capped at 1.0")

	_, err = DefaultScorer(&model.Record{ID: "REST_00005"})
	assert.Error(t, err, "an unenriched record cannot be scored")
}

func TestScoreBatch(t *testing.T) {
	good := &model.Record{ID: "REST_00001", Theme: "italian", Status: "Non conforme", Violations: 2, StatusDate: "2024-03-15"}
	unenriched := &model.Record{ID: "REST_00002", Status: "Conforme"}
	upstream := &model.Record{ID: "REST_00003", Theme: "french"}
	upstream.Fail(model.StageCleaning, "malformed")

	batch := &model.Batch{Records: []*model.Record{good, unenriched, upstream}}
	_, err := (&RiskModeler{}).Score(batch)
	require.NoError(t, err, "scoring failures never abort the batch")

	require.NotNil(t, good.RiskScore)
	assert.InDelta(t, 1.0, *good.RiskScore, 1e-9)
	assert.Equal(t, model.RiskCritical, good.RiskCategory)
	assert.Equal(t, "2024-04-14", good.NextInspection, "critical risk re-inspects in 30 days")

	assert.True(t, unenriched.Failed)
	assert.Equal(t, model.StageModeling, unenriched.FailStage)
	assert.Contains(t, unenriched.FailReason, KindScoringFailure)

	// First failure wins: the modeler must not touch already-failed records.
	assert.Equal(t, model.StageCleaning, upstream.FailStage)
	assert.Nil(t, upstream.RiskScore)
}

func TestScoreRejectsOutOfRangeScores(t *testing.T) {
	rec := &model.Record{ID: "REST_00001", Theme: "italian"}
	modeler := &RiskModeler{Scorer: func(*model.Record) (float64, error) { return 1.7, nil }}

	_, err := modeler.Score(&model.Batch{Records: []*model.Record{rec}})
	require.NoError(t, err)
	assert.True(t, rec.Failed)
	assert.Contains(t, rec.FailReason, "out of [0,1]")
}

func TestNextInspectionBands(t *testing.T) {
	assert.Equal(t, "2024-04-14", nextInspection("2024-03-15", 0.85))
	assert.Equal(t, "2024-06-13", nextInspection("2024-03-15", 0.65))
	assert.Equal(t, "2024-09-11", nextInspection("2024-03-15", 0.30))
}

func ExampleCategorize() {
	fmt.Println(Categorize(0.85))
	// Output: critical
}
