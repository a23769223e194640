package model

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RuleKind identifies one of the supported rule dispatch variants.
type RuleKind string

const (
	RuleRequired   RuleKind = "required"
	RuleRange      RuleKind = "range"
	RuleEnum       RuleKind = "enum"
	RuleDateFormat RuleKind = "date_format"
)

// Rule severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// DateLayout is the canonical calendar representation used everywhere
// in the pipeline (status dates, effective dates, next inspections).
const DateLayout = "2006-01-02"

// ValidationRule is a named predicate over a record, loaded as data so the
// rule set can change per run without recompiling the pipeline. A rule may
// carry an effective-date range and then only applies to records whose
// status date falls inside it.
type ValidationRule struct {
	Name        string   `yaml:"name" json:"name"`
	Field       string   `yaml:"field" json:"field"`
	Kind        RuleKind `yaml:"kind" json:"kind"`
	Severity    string   `yaml:"severity" json:"severity"` // error or warning
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`

	// Kind-specific parameters
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
	Layout string   `yaml:"layout,omitempty" json:"layout,omitempty"` // defaults to DateLayout

	// Optional effective-dated regulation window (inclusive bounds)
	EffectiveFrom string `yaml:"effectiveFrom,omitempty" json:"effectiveFrom,omitempty"`
	EffectiveTo   string `yaml:"effectiveTo,omitempty" json:"effectiveTo,omitempty"`
}

// AppliesOn reports whether the rule is in force for a record observed on
// the given date. Rules without a window always apply; an unparsable record
// date keeps error rules in force so bad dates cannot dodge regulation.
func (r *ValidationRule) AppliesOn(statusDate string) bool {
	if r.EffectiveFrom == "" && r.EffectiveTo == "" {
		return true
	}
	obs, err := time.Parse(DateLayout, statusDate)
	if err != nil {
		return r.Severity == SeverityError
	}
	if r.EffectiveFrom != "" {
		if from, err := time.Parse(DateLayout, r.EffectiveFrom); err == nil && obs.Before(from) {
			return false
		}
	}
	if r.EffectiveTo != "" {
		if to, err := time.Parse(DateLayout, r.EffectiveTo); err == nil && obs.After(to) {
			return false
		}
	}
	return true
}

// RuleSet is an immutable collection of rules for one run.
type RuleSet struct {
	Version string           `yaml:"version" json:"version"`
	Rules   []ValidationRule `yaml:"rules" json:"rules"`
}

// LoadRuleSet reads a YAML rule file and checks each rule is well formed.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes and sanity-checks a YAML rule document.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode rule file: %w", err)
	}
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.Name == "" || rule.Field == "" {
			return nil, fmt.Errorf("rule %d: name and field are required", i)
		}
		switch rule.Kind {
		case RuleRequired, RuleDateFormat:
		case RuleRange:
			if rule.Min == nil && rule.Max == nil {
				return nil, fmt.Errorf("rule %s: range rule needs min or max", rule.Name)
			}
		case RuleEnum:
			if len(rule.Values) == 0 {
				return nil, fmt.Errorf("rule %s: enum rule needs values", rule.Name)
			}
		default:
			return nil, fmt.Errorf("rule %s: unknown kind %q", rule.Name, rule.Kind)
		}
		switch rule.Severity {
		case SeverityError, SeverityWarning:
		case "":
			rule.Severity = SeverityError
		default:
			return nil, fmt.Errorf("rule %s: unknown severity %q", rule.Name, rule.Severity)
		}
		if rule.Kind == RuleDateFormat && rule.Layout == "" {
			rule.Layout = DateLayout
		}
	}
	return &rs, nil
}
