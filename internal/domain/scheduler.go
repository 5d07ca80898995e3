package domain

import (
	"strings"
	"time"
)

// Test result statuses.
const (
	TestPassed  = "passed"
	TestFailed  = "failed"
	TestPending = "pending"
)

// TestSchedule is a scheduled sanity test definition.
type TestSchedule struct {
	ID           int64     `json:"id"`
	TestName     string    `json:"test_name"`
	Instruction  string    `json:"instruction"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	Frequency    string    `json:"frequency"`
	Tags         []string  `json:"tags"`
	Agents       []string  `json:"agents"`
	Environments []string  `json:"environments"`
}

// Due reports whether the schedule's start date has passed.
func (t *TestSchedule) Due(now time.Time) bool {
	return !t.Date.After(now)
}

// RunInterval returns the minimum spacing between runs implied by the
// schedule's frequency. Zero means the schedule is one-shot.
func (t *TestSchedule) RunInterval() time.Duration {
	switch strings.ToLower(t.Frequency) {
	case "hourly":
		return time.Hour
	case "daily":
		return 24 * time.Hour
	case "weekly":
		return 7 * 24 * time.Hour
	}
	return 0
}

// DueAt reports whether the schedule should run at now, given when it last
// ran (zero when it never has). Nothing runs before its date; after it,
// one-shot schedules run exactly once and recurring ones whenever their
// interval has elapsed since the last run.
func (t *TestSchedule) DueAt(now, lastRun time.Time) bool {
	if t.Date.After(now) {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	interval := t.RunInterval()
	return interval > 0 && now.Sub(lastRun) >= interval
}

// TestScheduleRequest is the body for creating or updating a test schedule.
type TestScheduleRequest struct {
	TestName     string    `json:"test_name"`
	Instruction  string    `json:"instruction"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	Frequency    string    `json:"frequency"`
	Tags         []string  `json:"tags"`
	Agents       []string  `json:"agents"`
	Environments []string  `json:"environments"`
}

// TestResult is the recorded outcome of one test run. A failed run may carry
// the ID of the incident opened for its root-cause analysis.
type TestResult struct {
	ID          string    `json:"id"`
	TestName    string    `json:"test_name"`
	RunDate     time.Time `json:"run_date"`
	Status      string    `json:"status"`
	Details     string    `json:"details"`
	IncidentID  string    `json:"incident_id,omitempty"`
	Agent       string    `json:"agent"`
	Environment string    `json:"environment"`
}
