package model

import "time"

// Run terminal statuses
const (
	RunSucceeded = "success"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// Violation is one rule firing against one record.
type Violation struct {
	RecordID string `json:"record_id"`
	RuleName string `json:"rule_name"`
	Field    string `json:"field"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Exclusion names a record dropped from persistence and why.
// Every excluded record must appear here, regardless of stage.
type Exclusion struct {
	RecordID string `json:"record_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// ValidationReport is the per-run validation aggregate, read-only once built.
type ValidationReport struct {
	TotalRecords     int            `json:"total_records"`
	PassedRecords    int            `json:"passed_records"`
	FailedRecords    int            `json:"failed_records"`
	ValidationRate   float64        `json:"validation_rate"` // passed / total
	WarningCount     int            `json:"warning_count"`
	ViolationsByRule map[string]int `json:"violations_by_rule"`
	Violations       []Violation    `json:"violations,omitempty"`
}

// StageReport records timing and retry behavior for one stage of one run.
type StageReport struct {
	Stage     string        `json:"stage"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Retries   int           `json:"retries"`
	Status    string        `json:"status"` // completed, failed, skipped
	Error     string        `json:"error,omitempty"`
}

// PipelineRunReport is the structured outcome of one pipeline execution.
// Every run yields one, whatever its final status.
type PipelineRunReport struct {
	RunID            string             `json:"run_id"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
	Status           string             `json:"status"` // success, partial, failed
	Stages           []StageReport      `json:"stages"`
	Validation       *ValidationReport  `json:"validation,omitempty"`
	RecordsIngested  int                `json:"records_ingested"`
	RecordsPersisted int                `json:"records_persisted"`
	Exclusions       []Exclusion        `json:"exclusions,omitempty"`
	Error            string             `json:"error,omitempty"`
	Config           PipelineConfig     `json:"config"`
}

// StageRetries returns the retry count recorded for a stage, 0 if absent.
func (r *PipelineRunReport) StageRetries(stage string) int {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Retries
		}
	}
	return 0
}
