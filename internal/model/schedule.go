package model

import (
	"fmt"
	"time"
)

// Schedule modes
const (
	ScheduleDaily     = "daily"    // fires at a fixed local time every day
	ScheduleInterval  = "interval" // fires every Every duration
	ScheduleImmediate = "immediate" // fires once, then inert
)

// ScheduleSpec drives when the scheduler invokes the orchestrator.
// It is stateless beyond "next fire time".
type ScheduleSpec struct {
	Mode  string `json:"mode" yaml:"mode" validate:"required,oneof=daily interval immediate"`
	At    string `json:"at,omitempty" yaml:"at,omitempty"`       // "HH:MM", daily mode
	Every string `json:"every,omitempty" yaml:"every,omitempty"` // e.g. "30m", interval mode
}

// NextFire computes the next fire time strictly after now.
// Immediate mode fires right away on the first call; callers track one-shot state.
func (s ScheduleSpec) NextFire(now time.Time) (time.Time, error) {
	switch s.Mode {
	case ScheduleImmediate:
		return now, nil
	case ScheduleInterval:
		every, err := time.ParseDuration(s.Every)
		if err != nil || every <= 0 {
			return time.Time{}, fmt.Errorf("invalid interval %q", s.Every)
		}
		return now.Add(every), nil
	case ScheduleDaily:
		at, err := time.Parse("15:04", s.At)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid daily time %q (want HH:MM)", s.At)
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule mode %q", s.Mode)
	}
}
