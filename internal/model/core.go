package model

// Stage names used across run reports and logs
const (
	StageIngestion   = "ingestion"
	StageCleaning    = "cleaning"
	StageEnrichment  = "enrichment"
	StageModeling    = "modeling"
	StageValidation  = "validation"
	StagePersistence = "persistence"
)

// Risk categories (thresholds live in the modeler)
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Address confidence values set by enrichment
const (
	AddressResolved   = "resolved"
	AddressUnresolved = "unresolved"
)

// Record represents one establishment-inspection observation.
// The ID is stable across stages and keys a logical establishment.
type Record struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	RawAddress        string   `json:"raw_address"`
	Address           string   `json:"address"` // normalized by enrichment
	AddressConfidence string   `json:"address_confidence,omitempty"`
	Theme             string   `json:"theme,omitempty"`
	SizeClass         string   `json:"size_class,omitempty"` // small, medium, large
	Violations        int      `json:"violations"`           // violations on this observation
	PriorViolations   int      `json:"prior_violations"`     // historical count from the store
	PriorAmount       float64  `json:"prior_amount"`         // summed fines of prior violations
	Amount            float64  `json:"amount"`               // fine amount on this observation
	Status            string   `json:"status"`
	StatusDate        string   `json:"status_date"`          // canonical YYYY-MM-DD
	RiskScore         *float64 `json:"risk_score,omitempty"` // nil until modeled, in [0,1]
	RiskCategory      string   `json:"risk_category,omitempty"`
	NextInspection    string   `json:"next_inspection,omitempty"`

	// Raw cell values from ingestion; the cleaner parses these into the
	// typed fields above and never looks at them again.
	Raw map[string]string `json:"-"`

	// Per-record failure tracking. A failed record stays in the batch so the
	// run report can enumerate it, but is never persisted.
	MissingFields []string `json:"missing_fields,omitempty"`
	Failed        bool     `json:"failed,omitempty"`
	FailStage     string   `json:"fail_stage,omitempty"`
	FailReason    string   `json:"fail_reason,omitempty"`
}

// Field resolves a record attribute by its canonical rule-file name.
// The second return reports whether the field exists at all.
func (r *Record) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "name":
		return r.Name, true
	case "address":
		return r.Address, true
	case "raw_address":
		return r.RawAddress, true
	case "theme":
		return r.Theme, true
	case "size_class":
		return r.SizeClass, true
	case "violations":
		return r.Violations, true
	case "prior_violations":
		return r.PriorViolations, true
	case "amount":
		return r.Amount, true
	case "status":
		return r.Status, true
	case "status_date":
		return r.StatusDate, true
	case "risk_score":
		if r.RiskScore == nil {
			return nil, true
		}
		return *r.RiskScore, true
	case "risk_category":
		return r.RiskCategory, true
	case "next_inspection":
		return r.NextInspection, true
	default:
		return nil, false
	}
}

// Fail marks a record as excluded from persistence. The first failure wins;
// later stages never overwrite the original stage and reason.
func (r *Record) Fail(stage, reason string) {
	if r.Failed {
		return
	}
	r.Failed = true
	r.FailStage = stage
	r.FailReason = reason
}

// Batch is the working set of records for a single pipeline run.
// It is owned by exactly one orchestrator run and mutated in place.
type Batch struct {
	Source  string    `json:"source"`
	Records []*Record `json:"records"`
}

// Valid returns the records still eligible for persistence.
func (b *Batch) Valid() []*Record {
	out := make([]*Record, 0, len(b.Records))
	for _, rec := range b.Records {
		if !rec.Failed {
			out = append(out, rec)
		}
	}
	return out
}

// PipelineConfig is the parameter set for one orchestrator instance.
// Immutable during execution.
type PipelineConfig struct {
	Source          string `json:"source" yaml:"source" validate:"required"` // csv path, http url, or store:<table>
	Destination     string `json:"destination" yaml:"destination" validate:"required"`
	BackupEnabled   bool   `json:"backupEnabled" yaml:"backupEnabled"`
	BackupDir       string `json:"backupDir" yaml:"backupDir"`
	MaxRetries      int    `json:"maxRetries" yaml:"maxRetries" validate:"gte=0,lte=10"`
	BatchSize       int    `json:"batchSize" yaml:"batchSize" validate:"gte=0"`
	RulesFile       string `json:"rulesFile" yaml:"rulesFile"`
	ThemeDictFile   string `json:"themeDictFile" yaml:"themeDictFile"`
	AddressDictFile string `json:"addressDictFile" yaml:"addressDictFile"`
	StageTimeout    string `json:"stageTimeout" yaml:"stageTimeout"` // e.g. "2m", applied per stage
}
