package pipeline

import (
	"fmt"
	"time"

	"mapaq-pipeline/internal/model"
	"mapaq-pipeline/pkg/utils"
)

// ------------------- Validation -------------------

// Validator evaluates a loaded rule set against a batch. Rules are data,
// not code: a single dispatcher handles the four rule kinds, so rule sets
// swap per run without recompiling. An error-severity violation marks the
// record invalid and excludes it from persistence; warnings are recorded
// but do not exclude.
type Validator struct{}

// Validate runs every applicable rule against every record still in play
// and the batch-level checks, and builds the per-run validation report.
func (v *Validator) Validate(batch *model.Batch, rules *model.RuleSet) *model.ValidationReport {
	report := &model.ValidationReport{
		ViolationsByRule: make(map[string]int),
	}

	for _, rec := range batch.Records {
		if rec.Failed {
			continue // already excluded upstream, reason is on the record
		}
		report.TotalRecords++
		invalid := false

		for i := range rules.Rules {
			rule := &rules.Rules[i]
			if !rule.AppliesOn(rec.StatusDate) {
				continue
			}
			msg, ok := checkRule(rec, rule)
			if ok {
				continue
			}
			report.Violations = append(report.Violations, model.Violation{
				RecordID: rec.ID,
				RuleName: rule.Name,
				Field:    rule.Field,
				Severity: rule.Severity,
				Message:  msg,
			})
			report.ViolationsByRule[rule.Name]++
			if rule.Severity == model.SeverityError {
				invalid = true
				rec.Fail(model.StageValidation, fmt.Sprintf("validation rule %s: %s", rule.Name, msg))
			} else {
				report.WarningCount++
			}
		}

		if invalid {
			report.FailedRecords++
		} else {
			report.PassedRecords++
		}
	}

	// Batch-level check: duplicate identifiers slip past record rules.
	// Cleaning removes exact duplicates, so survivors are re-inspections
	// of the same establishment; flag them as warnings.
	seen := make(map[string]bool)
	for _, rec := range batch.Records {
		if rec.Failed || rec.ID == "" {
			continue
		}
		if seen[rec.ID] {
			report.Violations = append(report.Violations, model.Violation{
				RecordID: rec.ID,
				RuleName: "duplicate_id",
				Field:    "id",
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("identifier %s appears more than once in the batch", rec.ID),
			})
			report.ViolationsByRule["duplicate_id"]++
			report.WarningCount++
		}
		seen[rec.ID] = true
	}

	if report.TotalRecords > 0 {
		report.ValidationRate = float64(report.PassedRecords) / float64(report.TotalRecords)
	}

	fmt.Printf("✔️  Validation done: %d/%d records valid, %d warnings\n",
		report.PassedRecords, report.TotalRecords, report.WarningCount)
	return report
}

// checkRule applies one rule to one record. It returns ok=true when the
// rule is satisfied, otherwise a human-readable violation message.
func checkRule(rec *model.Record, rule *model.ValidationRule) (string, bool) {
	value, known := rec.Field(rule.Field)
	if !known {
		return fmt.Sprintf("rule references unknown field %s", rule.Field), false
	}

	switch rule.Kind {
	case model.RuleRequired:
		if value == nil {
			return fmt.Sprintf("required field %s is missing", rule.Field), false
		}
		if s, isString := value.(string); isString && s == "" {
			return fmt.Sprintf("required field %s is empty", rule.Field), false
		}

	case model.RuleRange:
		if value == nil {
			return "", true // absence is the required rule's business
		}
		n := utils.Numeric(value)
		if rule.Min != nil && n < *rule.Min {
			return fmt.Sprintf("%s below minimum: got %v, want >= %v", rule.Field, n, *rule.Min), false
		}
		if rule.Max != nil && n > *rule.Max {
			return fmt.Sprintf("%s above maximum: got %v, want <= %v", rule.Field, n, *rule.Max), false
		}

	case model.RuleEnum:
		s, isString := value.(string)
		if !isString || s == "" {
			return "", true
		}
		for _, allowed := range rule.Values {
			if s == allowed {
				return "", true
			}
		}
		return fmt.Sprintf("%s has invalid value %q (allowed: %v)", rule.Field, s, rule.Values), false

	case model.RuleDateFormat:
		s, isString := value.(string)
		if !isString || s == "" {
			return "", true
		}
		// Rule files get a layout default in ParseRuleSet; rules built in
		// code may not, so the canonical layout is the fallback here too.
		layout := rule.Layout
		if layout == "" {
			layout = model.DateLayout
		}
		if _, err := time.Parse(layout, s); err != nil {
			return fmt.Sprintf("%s has invalid date %q (want layout %s)", rule.Field, s, layout), false
		}
	}

	return "", true
}
