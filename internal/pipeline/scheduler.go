package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mapaq-pipeline/internal/model"
)

// ------------------- Scheduling -------------------

// Runner is what the scheduler fires; *Orchestrator satisfies it.
type Runner interface {
	RunOnce(ctx context.Context) *model.PipelineRunReport
}

type scheduleEntry struct {
	id     string
	spec   model.ScheduleSpec
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	nextFire time.Time
	inert    bool // one-shot schedules become inert after firing
}

// Scheduler triggers orchestrator runs on a daily time, a fixed interval,
// or once. It owns no pipeline state, only timing state and a reference to
// the runner. Runs fire synchronously on the schedule's own timeline: a run
// that exceeds its interval delays the next fire instead of overlapping it.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*scheduleEntry
}

func NewScheduler() *Scheduler {
	return &Scheduler{entries: make(map[string]*scheduleEntry)}
}

// Schedule registers a spec and starts its timeline. The returned handle
// cancels it later.
func (s *Scheduler) Schedule(spec model.ScheduleSpec, runner Runner) (string, error) {
	// Compute the first fire time up front so NextFire is meaningful the
	// moment Schedule returns, not only once the loop goroutine runs.
	first, err := spec.NextFire(time.Now())
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry := &scheduleEntry{
		id:       uuid.New().String(),
		spec:     spec,
		cancel:   cancel,
		done:     make(chan struct{}),
		nextFire: first,
	}

	s.mu.Lock()
	s.entries[entry.id] = entry
	s.mu.Unlock()

	go s.loop(ctx, entry, runner)
	fmt.Printf("📅 Schedule %s registered (%s)\n", entry.id, spec.Mode)
	return entry.id, nil
}

func (s *Scheduler) loop(ctx context.Context, entry *scheduleEntry, runner Runner) {
	defer close(entry.done)

	for {
		next, err := entry.spec.NextFire(time.Now())
		if err != nil {
			fmt.Printf("❌ Schedule %s: %v\n", entry.id, err)
			return
		}
		entry.mu.Lock()
		entry.nextFire = next
		entry.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fmt.Printf("🕐 Schedule %s firing\n", entry.id)
		report := runner.RunOnce(ctx)
		fmt.Printf("🕐 Schedule %s run %s finished with status %s\n", entry.id, report.RunID, report.Status)

		if entry.spec.Mode == model.ScheduleImmediate {
			entry.mu.Lock()
			entry.inert = true
			entry.mu.Unlock()
			return
		}
	}
}

// NextFire reports the next planned fire time for a schedule handle.
// The zero time means the handle is unknown or already inert.
func (s *Scheduler) NextFire(handle string) time.Time {
	s.mu.Lock()
	entry, ok := s.entries[handle]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.inert {
		return time.Time{}
	}
	return entry.nextFire
}

// Cancel stops a schedule and waits for any in-flight run to complete, so
// the destination store is never abandoned mid-write.
func (s *Scheduler) Cancel(handle string) bool {
	s.mu.Lock()
	entry, ok := s.entries[handle]
	if ok {
		delete(s.entries, handle)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	<-entry.done
	fmt.Printf("⏹️ Schedule %s cancelled\n", handle)
	return true
}

// Stop cancels every schedule. Used at process shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	handles := make([]string, 0, len(s.entries))
	for id := range s.entries {
		handles = append(handles, id)
	}
	s.mu.Unlock()
	for _, h := range handles {
		s.Cancel(h)
	}
}
