package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapaq-pipeline/internal/model"
)

func scoredRecord(id string) *model.Record {
	score := 0.55
	return &model.Record{
		ID:           id,
		Name:         "Chez Maurice",
		RawAddress:   "1 rue A",
		StatusDate:   "2024-03-15",
		Status:       "Conforme",
		RiskScore:    &score,
		RiskCategory: model.RiskMedium,
	}
}

func TestValidatePassesCompleteRecords(t *testing.T) {
	batch := &model.Batch{Records: []*model.Record{scoredRecord("REST_00001"), scoredRecord("REST_00002")}}
	report := (&Validator{}).Validate(batch, DefaultRuleSet())

	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 2, report.PassedRecords)
	assert.Equal(t, 0, report.FailedRecords)
	assert.Equal(t, 1.0, report.ValidationRate)
	assert.Len(t, batch.Valid(), 2)
}

func TestValidateErrorSeverityExcludesRecord(t *testing.T) {
	unscored := scoredRecord("REST_00001")
	unscored.RiskScore = nil
	unscored.RiskCategory = ""
	ok := scoredRecord("REST_00002")

	batch := &model.Batch{Records: []*model.Record{unscored, ok}}
	report := (&Validator{}).Validate(batch, DefaultRuleSet())

	assert.Equal(t, 1, report.FailedRecords)
	assert.Equal(t, 1, report.PassedRecords)
	assert.Equal(t, 0.5, report.ValidationRate)
	assert.Equal(t, 1, report.ViolationsByRule["score_required"])

	assert.True(t, unscored.Failed)
	assert.Equal(t, model.StageValidation, unscored.FailStage)
	assert.Len(t, batch.Valid(), 1)
}

func TestValidateWarningsDoNotExclude(t *testing.T) {
	rec := scoredRecord("REST_00001")
	rec.SizeClass = "gigantic" // size_enum is warning severity

	report := (&Validator{}).Validate(&model.Batch{Records: []*model.Record{rec}}, DefaultRuleSet())

	assert.Equal(t, 1, report.PassedRecords)
	assert.Equal(t, 1, report.WarningCount)
	assert.Equal(t, 1, report.ViolationsByRule["size_enum"])
	assert.False(t, rec.Failed)
}

func TestValidateSkipsUpstreamFailures(t *testing.T) {
	rec := scoredRecord("REST_00001")
	rec.Fail(model.StageCleaning, "malformed amount")

	report := (&Validator{}).Validate(&model.Batch{Records: []*model.Record{rec}}, DefaultRuleSet())

	assert.Equal(t, 0, report.TotalRecords, "already-excluded records are not re-counted")
	assert.Equal(t, model.StageCleaning, rec.FailStage)
}

func TestValidateDuplicateIDWarning(t *testing.T) {
	first := scoredRecord("REST_00001")
	second := scoredRecord("REST_00001")
	second.StatusDate = "2024-06-01" // re-inspection, survives dedupe

	report := (&Validator{}).Validate(&model.Batch{Records: []*model.Record{first, second}}, DefaultRuleSet())

	assert.Equal(t, 2, report.PassedRecords)
	assert.Equal(t, 1, report.ViolationsByRule["duplicate_id"])
	assert.False(t, second.Failed)
}

func TestValidateEffectiveDatedRule(t *testing.T) {
	ceiling := 1000.0
	rules := &model.RuleSet{Rules: []model.ValidationRule{{
		Name: "amount_ceiling_2024", Field: "amount", Kind: model.RuleRange,
		Max: &ceiling, Severity: model.SeverityError, EffectiveFrom: "2024-01-01",
	}}}

	before := scoredRecord("REST_00001")
	before.StatusDate = "2023-06-01"
	before.Amount = 5000
	after := scoredRecord("REST_00002")
	after.Amount = 5000

	report := (&Validator{}).Validate(&model.Batch{Records: []*model.Record{before, after}}, rules)

	assert.False(t, before.Failed, "rule is not in force for 2023 observations")
	assert.True(t, after.Failed)
	assert.Equal(t, 1, report.ViolationsByRule["amount_ceiling_2024"])
}

func TestCheckRuleDateFormatDefaultsLayout(t *testing.T) {
	// Rules built in code may omit Layout; canonical dates must still pass.
	rule := model.ValidationRule{Name: "date_format", Field: "status_date", Kind: model.RuleDateFormat, Severity: model.SeverityError}

	rec := &model.Record{ID: "REST_00001", StatusDate: "2024-03-15"}
	msg, ok := checkRule(rec, &rule)
	assert.True(t, ok, msg)

	rec.StatusDate = "15 mars 2024"
	_, ok = checkRule(rec, &rule)
	assert.False(t, ok)
}

func TestCheckRuleKinds(t *testing.T) {
	score := 1.4
	rec := &model.Record{
		ID: "REST_00001", Name: "Chez Maurice", StatusDate: "15 mars 2024",
		RiskScore: &score, RiskCategory: "extreme", Violations: 200,
	}
	f := func(v float64) *float64 { return &v }

	cases := []struct {
		rule model.ValidationRule
		ok   bool
	}{
		{model.ValidationRule{Name: "r1", Field: "name", Kind: model.RuleRequired}, true},
		{model.ValidationRule{Name: "r2", Field: "raw_address", Kind: model.RuleRequired}, false},
		{model.ValidationRule{Name: "r3", Field: "risk_score", Kind: model.RuleRange, Max: f(1)}, false},
		{model.ValidationRule{Name: "r4", Field: "violations", Kind: model.RuleRange, Min: f(0), Max: f(100)}, false},
		{model.ValidationRule{Name: "r5", Field: "risk_category", Kind: model.RuleEnum, Values: []string{"low", "medium", "high", "critical"}}, false},
		{model.ValidationRule{Name: "r6", Field: "status_date", Kind: model.RuleDateFormat, Layout: model.DateLayout}, false},
		{model.ValidationRule{Name: "r7", Field: "no_such_field", Kind: model.RuleRequired}, false},
		{model.ValidationRule{Name: "r8", Field: "theme", Kind: model.RuleEnum, Values: []string{"italian"}}, true}, // empty value is required's business
	}
	for _, tc := range cases {
		t.Run(tc.rule.Name, func(t *testing.T) {
			msg, ok := checkRule(rec, &tc.rule)
			require.Equal(t, tc.ok, ok, msg)
		})
	}
}
