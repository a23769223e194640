package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"

	"mapaq-pipeline/internal/model"
	"mapaq-pipeline/internal/pipeline"
	"mapaq-pipeline/internal/store"
	"mapaq-pipeline/pkg/router"
)

// RunRequest is the payload for an on-demand pipeline run.
type RunRequest struct {
	Config model.PipelineConfig `json:"config" validate:"required"`
}

// ScheduleRequest registers a recurring or one-shot pipeline schedule.
type ScheduleRequest struct {
	Spec   model.ScheduleSpec   `json:"spec" validate:"required"`
	Config model.PipelineConfig `json:"config" validate:"required"`
}

type scheduledRun struct {
	store *store.Store
	spec  model.ScheduleSpec
}

// Service is the HTTP face of the pipeline. It owns no pipeline state
// beyond the scheduler, the last run report, and the stores kept open for
// active schedules.
type Service struct {
	validate  *validator.Validate
	scheduler *pipeline.Scheduler

	mu         sync.Mutex
	lastReport *model.PipelineRunReport
	scheduled  map[string]*scheduledRun
}

func NewService() *Service {
	return &Service{
		validate:  validator.New(),
		scheduler: pipeline.NewScheduler(),
		scheduled: make(map[string]*scheduledRun),
	}
}

// Close stops all schedules and releases their stores.
func (s *Service) Close() {
	s.scheduler.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, sr := range s.scheduled {
		sr.store.Close()
		delete(s.scheduled, handle)
	}
}

func (s *Service) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, "Invalid payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RunOnce executes the pipeline synchronously for the submitted config
// @Summary Run the pipeline once
// @Description Execute a full ingest-to-persist run and return its report
// @Tags runs
// @Accept json
// @Produce json
// @Param run body RunRequest true "Run configuration"
// @Success 200 {object} model.PipelineRunReport "Run report (any final status)"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Pipeline could not be assembled"
// @Router /runs [post]
func (s *Service) RunOnce(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !s.decode(w, r, &req) {
		return
	}

	orch, st, err := pipeline.NewOrchestrator(req.Config, nil)
	if err != nil {
		http.Error(w, "Failed to assemble pipeline: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer st.Close()

	report := orch.RunOnce(r.Context())

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, report)
}

// LastReport returns the report of the most recent run
// @Summary Get last run report
// @Tags runs
// @Produce json
// @Success 200 {object} model.PipelineRunReport
// @Failure 404 {object} map[string]interface{} "No run has completed yet"
// @Router /runs/last [get]
func (s *Service) LastReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()
	if report == nil {
		http.Error(w, "No run has completed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRuns returns persisted run history for a destination store
// @Summary List run history
// @Tags runs
// @Produce json
// @Param db query string true "Destination store path"
// @Success 200 {array} model.PipelineRunReport
// @Failure 400 {object} map[string]interface{} "Missing db parameter"
// @Failure 500 {object} map[string]interface{} "Store unavailable"
// @Router /runs [get]
func (s *Service) ListRuns(w http.ResponseWriter, r *http.Request) {
	dbPath := r.URL.Query().Get("db")
	if dbPath == "" {
		http.Error(w, "Query parameter db is required", http.StatusBadRequest)
		return
	}
	st, err := store.Open(dbPath)
	if err != nil {
		http.Error(w, "Failed to open store: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer st.Close()

	reports, err := st.ListRunReports(0)
	if err != nil {
		http.Error(w, "Failed to read run history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// CreateSchedule registers a schedule for recurring runs
// @Summary Schedule pipeline runs
// @Tags schedules
// @Accept json
// @Produce json
// @Param schedule body ScheduleRequest true "Schedule spec and run configuration"
// @Success 200 {object} map[string]interface{} "Schedule handle"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Pipeline could not be assembled"
// @Router /schedules [post]
func (s *Service) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}

	orch, st, err := pipeline.NewOrchestrator(req.Config, nil)
	if err != nil {
		http.Error(w, "Failed to assemble pipeline: "+err.Error(), http.StatusInternalServerError)
		return
	}

	handle, err := s.scheduler.Schedule(req.Spec, orch)
	if err != nil {
		st.Close()
		http.Error(w, "Invalid schedule: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.scheduled[handle] = &scheduledRun{store: st, spec: req.Spec}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"handle":   handle,
		"mode":     req.Spec.Mode,
		"nextFire": s.scheduler.NextFire(handle),
	})
}

// GetSchedule reports the next fire time of a schedule
// @Summary Get schedule status
// @Tags schedules
// @Produce json
// @Param handle path string true "Schedule handle"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Unknown schedule"
// @Router /schedules/{handle} [get]
func (s *Service) GetSchedule(w http.ResponseWriter, r *http.Request) {
	handle := router.PathSegment(r, 3) // /api/v1/schedules/{handle}
	s.mu.Lock()
	sr, ok := s.scheduled[handle]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Unknown schedule", http.StatusNotFound)
		return
	}
	next := s.scheduler.NextFire(handle)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"handle":   handle,
		"mode":     sr.spec.Mode,
		"nextFire": next,
		"inert":    next.IsZero(),
	})
}

// CancelSchedule stops a schedule
// @Summary Cancel a schedule
// @Tags schedules
// @Produce json
// @Param handle path string true "Schedule handle"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Unknown schedule"
// @Router /schedules/{handle} [delete]
func (s *Service) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	handle := router.PathSegment(r, 3)
	if !s.scheduler.Cancel(handle) {
		http.Error(w, "Unknown schedule", http.StatusNotFound)
		return
	}

	s.mu.Lock()
	if sr, ok := s.scheduled[handle]; ok {
		sr.store.Close()
		delete(s.scheduled, handle)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"handle": handle, "cancelled": true})
}
