package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mapaq-pipeline/internal/dict"
	"mapaq-pipeline/internal/model"
	"mapaq-pipeline/internal/store"
	"mapaq-pipeline/pkg/utils"
)

// ------------------- Orchestration -------------------

// Stage collaborators, narrow on purpose so tests can substitute failures.

type BatchLoader interface {
	Load(ctx context.Context, source string, batchSize int) (*model.Batch, error)
}

type BatchCleaner interface {
	Clean(batch *model.Batch) (*model.Batch, error)
}

type BatchEnricher interface {
	Enrich(ctx context.Context, batch *model.Batch) (*model.Batch, error)
}

type BatchModeler interface {
	Score(batch *model.Batch) (*model.Batch, error)
}

type BatchValidator interface {
	Validate(batch *model.Batch, rules *model.RuleSet) *model.ValidationReport
}

// Persister writes valid records transactionally and serializes writers.
// *store.Store satisfies it.
type Persister interface {
	LockWrites()
	UnlockWrites()
	Persist(ctx context.Context, records []*model.Record) (inserted, updated int, err error)
}

// BackupProvider snapshots the destination before a destructive write and
// rolls it back after a persistence failure.
type BackupProvider interface {
	Snapshot() (*store.BackupHandle, error)
	Restore(handle *store.BackupHandle) error
}

// ReportSink persists run reports to the run history.
type ReportSink interface {
	SaveRunReport(report *model.PipelineRunReport) error
}

// StoreBackup adapts the file-level backup manager to one store.
type StoreBackup struct {
	Manager *store.BackupManager
	Store   *store.Store
}

func (b *StoreBackup) Snapshot() (*store.BackupHandle, error) { return b.Manager.Snapshot(b.Store) }
func (b *StoreBackup) Restore(h *store.BackupHandle) error    { return b.Manager.Restore(h, b.Store) }

// Orchestrator sequences one run through
// Idle -> Ingesting -> Cleaning -> Enriching -> Modeling -> Validating ->
// Persisting -> {success | partial | failed}, applying the retry policy per
// stage. It exclusively owns the batch for the duration of a run; terminal
// states are final and every run starts a fresh batch and report.
type Orchestrator struct {
	Config    model.PipelineConfig
	Rules     *model.RuleSet
	Retry     RetryPolicy
	Ingestor  BatchLoader
	Cleaner   BatchCleaner
	Enricher  BatchEnricher
	Modeler   BatchModeler
	Validator BatchValidator
	Persister Persister
	Backups   BackupProvider // nil when backups are disabled
	Reports   ReportSink     // nil to skip run-history persistence

	mu         sync.Mutex
	lastReport *model.PipelineRunReport
}

// NewOrchestrator opens the destination store and wires the default stage
// implementations for the given config. The scoring function stays
// swappable: pass nil to use the rule-based baseline.
func NewOrchestrator(cfg model.PipelineConfig, scorer ScoringFunc) (*Orchestrator, *store.Store, error) {
	st, err := store.Open(cfg.Destination)
	if err != nil {
		return nil, nil, err
	}
	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	themes, err := dict.LoadThemeDictionary(cfg.ThemeDictFile)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	addresses, err := dict.LoadAddressDictionary(cfg.AddressDictFile)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	o := &Orchestrator{
		Config:    cfg,
		Rules:     rules,
		Retry:     DefaultRetryPolicy(cfg.MaxRetries),
		Ingestor:  &Ingestor{Store: st},
		Cleaner:   &Cleaner{},
		Enricher:  &Enricher{Themes: themes, Addresses: addresses, History: st},
		Modeler:   &RiskModeler{Scorer: scorer},
		Validator: &Validator{},
		Persister: st,
		Reports:   st,
	}
	if cfg.BackupEnabled {
		o.Backups = &StoreBackup{Manager: store.NewBackupManager(cfg.BackupDir), Store: st}
	}
	return o, st, nil
}

func loadRules(path string) (*model.RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}
	return model.LoadRuleSet(path)
}

// LastReport returns the report of the most recent run, nil before any run.
func (o *Orchestrator) LastReport() *model.PipelineRunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

// RunOnce executes the full pipeline once. It always returns a complete
// report, whatever the final status; nothing fails silently.
func (o *Orchestrator) RunOnce(ctx context.Context) *model.PipelineRunReport {
	report := &model.PipelineRunReport{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
		Config:    o.Config,
	}
	fmt.Printf("🚀 Starting pipeline run %s (source: %s)\n", report.RunID, o.Config.Source)

	defer func() {
		report.EndTime = time.Now()
		o.mu.Lock()
		o.lastReport = report
		o.mu.Unlock()
		if o.Reports != nil {
			if err := o.Reports.SaveRunReport(report); err != nil {
				fmt.Printf("⚠️ Failed to save run report %s: %v\n", report.RunID, err)
			}
		}
		fmt.Printf("🏁 Run %s finished: %s (%d persisted, %d excluded) in %v\n",
			report.RunID, report.Status, report.RecordsPersisted, len(report.Exclusions),
			report.EndTime.Sub(report.StartTime))
	}()

	timeout := stageTimeout(o.Config.StageTimeout)
	var batch *model.Batch

	// --- INGESTING ---
	err := o.runStage(ctx, report, model.StageIngestion, timeout, func(stageCtx context.Context) error {
		loaded, err := o.Ingestor.Load(stageCtx, o.Config.Source, o.Config.BatchSize)
		if err != nil {
			return err
		}
		batch = loaded
		return nil
	})
	if err != nil {
		return o.fail(report, err)
	}
	report.RecordsIngested = len(batch.Records)

	// --- CLEANING ---
	err = o.runStage(ctx, report, model.StageCleaning, timeout, func(context.Context) error {
		cleaned, err := o.Cleaner.Clean(batch)
		if err != nil {
			return err
		}
		batch = cleaned
		return nil
	})
	if err != nil {
		return o.fail(report, err)
	}

	// --- ENRICHING ---
	err = o.runStage(ctx, report, model.StageEnrichment, timeout, func(stageCtx context.Context) error {
		enriched, err := o.Enricher.Enrich(stageCtx, batch)
		if err != nil {
			return err
		}
		batch = enriched
		return nil
	})
	if err != nil {
		return o.fail(report, err)
	}

	// --- MODELING ---
	err = o.runStage(ctx, report, model.StageModeling, timeout, func(context.Context) error {
		scored, err := o.Modeler.Score(batch)
		if err != nil {
			return err
		}
		batch = scored
		return nil
	})
	if err != nil {
		return o.fail(report, err)
	}

	// --- VALIDATING ---
	err = o.runStage(ctx, report, model.StageValidation, timeout, func(context.Context) error {
		report.Validation = o.Validator.Validate(batch, o.Rules)
		return nil
	})
	if err != nil {
		return o.fail(report, err)
	}

	collectExclusions(report, batch)
	valid := batch.Valid()

	if len(valid) == 0 {
		if report.RecordsIngested == 0 {
			// Empty source is a trivially successful run.
			report.Status = model.RunSucceeded
			return report
		}
		return o.fail(report, fmt.Errorf("no valid records survived validation"))
	}

	// --- PERSISTING ---
	if err := o.persist(ctx, report, timeout, valid); err != nil {
		return o.fail(report, err)
	}
	report.RecordsPersisted = len(valid)

	if len(report.Exclusions) > 0 {
		report.Status = model.RunPartial
	} else {
		report.Status = model.RunSucceeded
	}
	return report
}

// persist holds exclusive write access across the backup, the transactional
// write and any triggered restore, so overlapping runs can never interleave
// destructive work on the same destination.
func (o *Orchestrator) persist(ctx context.Context, report *model.PipelineRunReport, timeout time.Duration, valid []*model.Record) error {
	o.Persister.LockWrites()
	defer o.Persister.UnlockWrites()

	var handle *store.BackupHandle
	if o.Config.BackupEnabled {
		if o.Backups == nil {
			return ErrBackupUnavailable("backups enabled but no backup provider configured", nil)
		}
		h, err := o.Backups.Snapshot()
		if err != nil {
			// Fatal: no write may proceed without a successful backup.
			o.recordStage(report, model.StagePersistence, time.Now(), 0, err)
			return ErrBackupUnavailable("pre-write snapshot failed", err)
		}
		handle = h
	}

	start := time.Now()
	retries, err := o.Retry.Run(ctx, model.StagePersistence, timeout, func(stageCtx context.Context) error {
		inserted, updated, perr := o.Persister.Persist(stageCtx, valid)
		if perr != nil {
			if Kind(perr) != "" {
				return perr // already classified (fakes, wrapped store errors)
			}
			return ErrPersistFailure("batch write failed", perr, true)
		}
		fmt.Printf("💾 Persistence done: %d inserted, %d updated\n", inserted, updated)
		return nil
	})
	o.recordStage(report, model.StagePersistence, start, retries, err)

	if err != nil {
		if handle != nil {
			if rerr := o.Backups.Restore(handle); rerr != nil {
				fmt.Printf("❌ Restore after failed persist also failed: %v\n", rerr)
				report.Error = fmt.Sprintf("restore failed: %v (after: %v)", rerr, err)
			}
		}
		return err
	}
	return nil
}

// runStage checks for cooperative cancellation at the stage boundary, then
// drives the stage through the retry policy and records its report entry.
func (o *Orchestrator) runStage(ctx context.Context, report *model.PipelineRunReport, stage string, timeout time.Duration, fn func(context.Context) error) error {
	if ctx.Err() != nil {
		report.Stages = append(report.Stages, model.StageReport{
			Stage: stage, Status: "skipped", Error: KindCancelled,
		})
		return ErrCancelled(stage)
	}
	start := time.Now()
	retries, err := o.Retry.Run(ctx, stage, timeout, fn)
	o.recordStage(report, stage, start, retries, err)
	return err
}

func (o *Orchestrator) recordStage(report *model.PipelineRunReport, stage string, start time.Time, retries int, err error) {
	sr := model.StageReport{
		Stage:     stage,
		StartTime: start,
		EndTime:   time.Now(),
		Retries:   retries,
		Status:    "completed",
	}
	sr.Duration = sr.EndTime.Sub(start)
	if err != nil {
		sr.Status = "failed"
		sr.Error = err.Error()
	}
	report.Stages = append(report.Stages, sr)
}

func (o *Orchestrator) fail(report *model.PipelineRunReport, err error) *model.PipelineRunReport {
	report.Status = model.RunFailed
	if report.Error == "" {
		report.Error = err.Error()
	}
	return report
}

// collectExclusions enumerates every record dropped along the way, with the
// stage that dropped it and why.
func collectExclusions(report *model.PipelineRunReport, batch *model.Batch) {
	for _, rec := range batch.Records {
		if rec.Failed {
			report.Exclusions = append(report.Exclusions, model.Exclusion{
				RecordID: rec.ID,
				Stage:    rec.FailStage,
				Reason:   rec.FailReason,
			})
		}
	}
}

func stageTimeout(s string) time.Duration {
	if s == "" {
		return 0 // no per-stage deadline
	}
	return utils.ParseDuration(s)
}

// DefaultRuleSet is the rule file shipped with the pipeline, used when a
// run configures none. It mirrors the regulation set for risk-scored
// inspection records.
func DefaultRuleSet() *model.RuleSet {
	f := func(v float64) *float64 { return &v }
	return &model.RuleSet{
		Version: "2024-01",
		Rules: []model.ValidationRule{
			{Name: "name_required", Field: "name", Kind: model.RuleRequired, Severity: model.SeverityError,
				Description: "every establishment needs a name"},
			{Name: "address_required", Field: "raw_address", Kind: model.RuleRequired, Severity: model.SeverityError,
				Description: "every establishment needs an address"},
			{Name: "score_required", Field: "risk_score", Kind: model.RuleRequired, Severity: model.SeverityError,
				Description: "records must be risk-scored before persistence"},
			{Name: "score_range", Field: "risk_score", Kind: model.RuleRange, Min: f(0), Max: f(1), Severity: model.SeverityError},
			{Name: "violations_range", Field: "violations", Kind: model.RuleRange, Min: f(0), Max: f(100), Severity: model.SeverityWarning},
			{Name: "category_enum", Field: "risk_category", Kind: model.RuleEnum,
				Values: []string{model.RiskLow, model.RiskMedium, model.RiskHigh, model.RiskCritical}, Severity: model.SeverityError},
			{Name: "size_enum", Field: "size_class", Kind: model.RuleEnum,
				Values: []string{"small", "medium", "large"}, Severity: model.SeverityWarning},
			{Name: "date_format", Field: "status_date", Kind: model.RuleDateFormat, Layout: model.DateLayout, Severity: model.SeverityError},
			{Name: "next_inspection_format", Field: "next_inspection", Kind: model.RuleDateFormat, Layout: model.DateLayout, Severity: model.SeverityWarning},
		},
	}
}
