package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/domain"
)

// API is the subset of the client the runner needs.
type API interface {
	ListTestSchedules(ctx context.Context) ([]domain.TestSchedule, error)
	SendChat(ctx context.Context, message string) (*domain.ChatResponse, error)
	RecordTestResult(ctx context.Context, result domain.TestResult) (*domain.TestResult, error)
}

// Runner executes due test schedules.
type Runner struct {
	config RunConfig
	api    API
	logger zerolog.Logger

	metrics *RunMetrics

	// lastRun tracks when each schedule was last dispatched so one-shot
	// schedules run once and recurring ones respect their frequency. The
	// bookkeeping is in-memory; a restarted worker runs everything due once
	// more.
	mu      sync.Mutex
	lastRun map[int64]time.Time
}

// RunMetrics tracks runner statistics across runs.
type RunMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	TestsExecuted   int64
	TestsPassed     int64
	TestsFailed     int64
	RecordFailures  int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// RunnerConfig holds configuration for creating a Runner.
type RunnerConfig struct {
	Config RunConfig
	API    API
	Logger zerolog.Logger
}

// NewRunner creates a sanity test runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		config:  cfg.Config.withDefaults(),
		api:     cfg.API,
		logger:  cfg.Logger,
		metrics: &RunMetrics{},
		lastRun: make(map[int64]time.Time),
	}
}

// RunResult contains the outcome of one run over all due schedules.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	DueSchedules   int
	Executed       int
	Passed         int
	Failed         int
	RecordFailures int
}

// execution is one test to perform: a schedule pinned to a single agent and
// environment combination.
type execution struct {
	schedule    domain.TestSchedule
	agent       string
	environment string
}

// Run lists the schedules, executes every due one, and records the outcomes.
// Each schedule expands to one execution per agent and environment pair.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{StartTime: startTime}

	schedules, err := r.api.ListTestSchedules(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var executions []execution
	for _, schedule := range schedules {
		if !r.shouldRun(schedule, now) {
			continue
		}
		result.DueSchedules++
		executions = append(executions, expand(schedule)...)
		// Marked at dispatch, not completion, so a long run is not
		// re-dispatched by the next tick.
		r.markRun(schedule.ID, now)
	}

	r.logger.Info().
		Int("schedules", len(schedules)).
		Int("due", result.DueSchedules).
		Int("executions", len(executions)).
		Int("concurrency", r.config.Concurrency).
		Msg("starting sanity test run")

	executionsChan := make(chan execution, len(executions))
	resultsChan := make(chan testOutcome, len(executions))

	var wg sync.WaitGroup
	for i := 0; i < r.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.testWorker(ctx, executionsChan, resultsChan)
		}()
	}

	for _, e := range executions {
		executionsChan <- e
	}
	close(executionsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for outcome := range resultsChan {
		result.Executed++
		if outcome.passed {
			result.Passed++
		} else {
			result.Failed++
		}
		if outcome.recordErr != nil {
			result.RecordFailures++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	r.updateMetrics(result)

	r.logger.Info().
		Dur("duration", result.Duration).
		Int("executed", result.Executed).
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("record_failures", result.RecordFailures).
		Msg("sanity test run completed")

	return result, nil
}

func (r *Runner) shouldRun(schedule domain.TestSchedule, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return schedule.DueAt(now, r.lastRun[schedule.ID])
}

func (r *Runner) markRun(id int64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRun[id] = now
}

// expand produces one execution per agent and environment pair. A schedule
// without explicit targets still runs once.
func expand(schedule domain.TestSchedule) []execution {
	agents := schedule.Agents
	if len(agents) == 0 {
		agents = []string{""}
	}
	environments := schedule.Environments
	if len(environments) == 0 {
		environments = []string{""}
	}

	executions := make([]execution, 0, len(agents)*len(environments))
	for _, agent := range agents {
		for _, env := range environments {
			executions = append(executions, execution{
				schedule:    schedule,
				agent:       agent,
				environment: env,
			})
		}
	}
	return executions
}

type testOutcome struct {
	passed    bool
	recordErr error
}

func (r *Runner) testWorker(ctx context.Context, executions <-chan execution, results chan<- testOutcome) {
	for e := range executions {
		select {
		case <-ctx.Done():
			return
		default:
			results <- r.runTest(ctx, e)
		}
	}
}

func (r *Runner) runTest(ctx context.Context, e execution) testOutcome {
	testCtx, cancel := context.WithTimeout(ctx, r.config.TestTimeout)
	defer cancel()

	result := domain.TestResult{
		TestName:    e.schedule.TestName,
		RunDate:     time.Now().UTC(),
		Agent:       e.agent,
		Environment: e.environment,
	}

	resp, err := r.api.SendChat(testCtx, e.schedule.Instruction)
	if err != nil {
		result.Status = domain.TestFailed
		result.Details = err.Error()
	} else {
		result.Status = domain.TestPassed
		result.Details = resp.Response
	}

	outcome := testOutcome{passed: result.Status == domain.TestPassed}
	if _, recordErr := r.api.RecordTestResult(ctx, result); recordErr != nil {
		r.logger.Error().Err(recordErr).
			Str("test", e.schedule.TestName).
			Msg("recording test result failed")
		outcome.recordErr = recordErr
	}

	if !outcome.passed {
		r.logger.Warn().
			Str("test", e.schedule.TestName).
			Str("agent", e.agent).
			Str("environment", e.environment).
			Str("details", result.Details).
			Msg("sanity test failed")
	}

	return outcome
}

func (r *Runner) updateMetrics(result *RunResult) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalRuns++
	r.metrics.TestsExecuted += int64(result.Executed)
	r.metrics.TestsPassed += int64(result.Passed)
	r.metrics.TestsFailed += int64(result.Failed)
	r.metrics.RecordFailures += int64(result.RecordFailures)
	r.metrics.LastRunAt = result.EndTime
	r.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (r *Runner) GetMetrics() RunMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return RunMetrics{
		TotalRuns:       r.metrics.TotalRuns,
		TestsExecuted:   r.metrics.TestsExecuted,
		TestsPassed:     r.metrics.TestsPassed,
		TestsFailed:     r.metrics.TestsFailed,
		RecordFailures:  r.metrics.RecordFailures,
		LastRunAt:       r.metrics.LastRunAt,
		LastRunDuration: r.metrics.LastRunDuration,
	}
}
