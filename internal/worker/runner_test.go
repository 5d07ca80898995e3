package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/domain"
	"github.com/echosysai/echosys-go/internal/worker"
)

// fakeAPI serves canned schedules, answers chat per instruction, and records
// submitted results.
type fakeAPI struct {
	mu        sync.Mutex
	schedules []domain.TestSchedule
	listErr   error
	chatErr   func(instruction string) error
	recordErr error
	recorded  []domain.TestResult
}

func (f *fakeAPI) ListTestSchedules(context.Context) ([]domain.TestSchedule, error) {
	return f.schedules, f.listErr
}

func (f *fakeAPI) SendChat(_ context.Context, message string) (*domain.ChatResponse, error) {
	if f.chatErr != nil {
		if err := f.chatErr(message); err != nil {
			return nil, err
		}
	}
	return &domain.ChatResponse{Response: "Analyzing your query about: " + message}, nil
}

func (f *fakeAPI) RecordTestResult(_ context.Context, result domain.TestResult) (*domain.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, result)
	return &result, nil
}

func (f *fakeAPI) results() []domain.TestResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TestResult, len(f.recorded))
	copy(out, f.recorded)
	return out
}

func newRunner(api worker.API) *worker.Runner {
	return worker.NewRunner(worker.RunnerConfig{
		Config: worker.RunConfig{Concurrency: 2, TestTimeout: time.Second},
		API:    api,
		Logger: zerolog.Nop(),
	})
}

func TestRun_SkipsFutureSchedules(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{
		{ID: 1, TestName: "due now", Instruction: "ping", Date: time.Now().Add(-time.Hour)},
		{ID: 2, TestName: "due later", Instruction: "ping", Date: time.Now().Add(time.Hour)},
	}}

	result, err := newRunner(api).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.DueSchedules != 1 {
		t.Errorf("expected 1 due schedule, got %d", result.DueSchedules)
	}
	if result.Executed != 1 || result.Passed != 1 || result.Failed != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}

	recorded := api.results()
	if len(recorded) != 1 || recorded[0].TestName != "due now" {
		t.Errorf("unexpected recorded results: %+v", recorded)
	}
}

func TestRun_ExpandsAgentEnvironmentPairs(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{{
		ID:           1,
		TestName:     "matrix",
		Instruction:  "ping",
		Date:         time.Now().Add(-time.Minute),
		Agents:       []string{"gpt-support", "triage-ranker"},
		Environments: []string{"staging", "production"},
	}}}

	result, err := newRunner(api).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Executed != 4 {
		t.Fatalf("expected 4 executions for a 2x2 matrix, got %d", result.Executed)
	}

	seen := map[string]bool{}
	for _, r := range api.results() {
		seen[r.Agent+"/"+r.Environment] = true
	}
	for _, pair := range []string{
		"gpt-support/staging", "gpt-support/production",
		"triage-ranker/staging", "triage-ranker/production",
	} {
		if !seen[pair] {
			t.Errorf("missing execution for %s", pair)
		}
	}
}

func TestRun_NoTargetsRunsOnce(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{{
		ID:          1,
		TestName:    "untargeted",
		Instruction: "ping",
		Date:        time.Now().Add(-time.Minute),
	}}}

	result, err := newRunner(api).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Executed != 1 {
		t.Errorf("expected a single execution, got %d", result.Executed)
	}
	if r := api.results(); len(r) != 1 || r[0].Agent != "" || r[0].Environment != "" {
		t.Errorf("unexpected result targets: %+v", r)
	}
}

func TestRun_ChatFailureRecordsFailedResult(t *testing.T) {
	api := &fakeAPI{
		schedules: []domain.TestSchedule{
			{ID: 1, TestName: "flaky", Instruction: "boom", Date: time.Now().Add(-time.Minute)},
			{ID: 2, TestName: "steady", Instruction: "ping", Date: time.Now().Add(-time.Minute)},
		},
		chatErr: func(instruction string) error {
			if instruction == "boom" {
				return errors.New("model timed out")
			}
			return nil
		},
	}

	result, err := newRunner(api).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Passed != 1 || result.Failed != 1 {
		t.Errorf("expected one pass and one fail, got %+v", result)
	}

	byName := map[string]domain.TestResult{}
	for _, r := range api.results() {
		byName[r.TestName] = r
	}
	if byName["flaky"].Status != domain.TestFailed || byName["flaky"].Details != "model timed out" {
		t.Errorf("unexpected failed result: %+v", byName["flaky"])
	}
	if byName["steady"].Status != domain.TestPassed {
		t.Errorf("unexpected passed result: %+v", byName["steady"])
	}
}

func TestRun_CountsRecordFailures(t *testing.T) {
	api := &fakeAPI{
		schedules: []domain.TestSchedule{
			{ID: 1, TestName: "t", Instruction: "ping", Date: time.Now().Add(-time.Minute)},
		},
		recordErr: errors.New("results endpoint down"),
	}

	result, err := newRunner(api).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.RecordFailures != 1 {
		t.Errorf("expected 1 record failure, got %d", result.RecordFailures)
	}
	// The test itself still passed even though recording it failed.
	if result.Passed != 1 {
		t.Errorf("expected the test to count as passed, got %+v", result)
	}
}

func TestRun_ListFailureAborts(t *testing.T) {
	listErr := errors.New("schedules endpoint down")
	api := &fakeAPI{listErr: listErr}

	if _, err := newRunner(api).Run(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected list error surfaced, got %v", err)
	}
}

func TestRun_OneShotDoesNotRerun(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{
		{ID: 1, TestName: "one shot", Instruction: "ping", Date: time.Now().Add(-time.Hour)},
	}}
	runner := newRunner(api)

	first, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Executed != 1 {
		t.Fatalf("expected the schedule executed once, got %d", first.Executed)
	}

	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.DueSchedules != 0 || second.Executed != 0 {
		t.Errorf("one-shot schedule must not rerun, got %+v", second)
	}
	if got := len(api.results()); got != 1 {
		t.Errorf("expected a single recorded result, got %d", got)
	}
}

func TestRun_RecurringWaitsForItsInterval(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{
		{ID: 1, TestName: "hourly", Instruction: "ping", Frequency: "hourly", Date: time.Now().Add(-time.Hour)},
	}}
	runner := newRunner(api)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// An immediate second tick is inside the hourly interval.
	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Executed != 0 {
		t.Errorf("expected no execution within the interval, got %d", second.Executed)
	}
}

func TestGetMetrics_AccumulatesAcrossRuns(t *testing.T) {
	api := &fakeAPI{schedules: []domain.TestSchedule{
		{ID: 1, TestName: "t", Instruction: "ping", Date: time.Now().Add(-time.Minute)},
	}}
	runner := newRunner(api)

	for i := 0; i < 3; i++ {
		// A fresh schedule id each run, so every run has work to do.
		api.schedules[0].ID = int64(i + 1)
		if _, err := runner.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	metrics := runner.GetMetrics()
	if metrics.TotalRuns != 3 || metrics.TestsExecuted != 3 || metrics.TestsPassed != 3 {
		t.Errorf("unexpected metrics: %+v", &metrics)
	}
	if metrics.LastRunAt.IsZero() {
		t.Error("expected LastRunAt to be set")
	}
}
