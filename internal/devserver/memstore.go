package devserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echosysai/echosys-go/internal/domain"
)

// MemoryStore is the in-memory Store implementation. It mirrors the original
// platform's development fixture: everything lives in maps, seeded with a
// small fleet of demo models, incidents, logs, and traces.
type MemoryStore struct {
	mu sync.RWMutex

	accounts  map[string]Account // keyed by email
	models    map[string]domain.Model
	incidents map[string]domain.Incident
	logs      map[string]domain.Log
	traces    map[string]domain.Trace

	projects      map[int64]domain.Project
	nextProjectID int64

	schedules      map[int64]domain.TestSchedule
	nextScheduleID int64
	results        []domain.TestResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:       make(map[string]Account),
		models:         make(map[string]domain.Model),
		incidents:      make(map[string]domain.Incident),
		logs:           make(map[string]domain.Log),
		traces:         make(map[string]domain.Trace),
		projects:       make(map[int64]domain.Project),
		nextProjectID:  1,
		schedules:      make(map[int64]domain.TestSchedule),
		nextScheduleID: 1,
	}
}

// NewSeededMemoryStore creates an in-memory store pre-populated with demo
// data so the dashboard has something to show.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.seed()
	return s
}

func (s *MemoryStore) seed() {
	now := time.Now().UTC()

	s.models["gpt-support"] = domain.Model{
		ID: "gpt-support", Name: "Support Assistant", Version: "2.4.1",
		Status: domain.ModelStatusActive, LastUpdated: now.Add(-2 * time.Hour),
	}
	s.models["triage-ranker"] = domain.Model{
		ID: "triage-ranker", Name: "Ticket Triage Ranker", Version: "1.9.0",
		Status: domain.ModelStatusActive, LastUpdated: now.Add(-26 * time.Hour),
	}
	s.models["summary-batch"] = domain.Model{
		ID: "summary-batch", Name: "Nightly Summariser", Version: "0.7.3",
		Status: "degraded", LastUpdated: now.Add(-15 * time.Minute),
	}

	traceID := uuid.NewString()
	s.traces[traceID] = domain.Trace{
		ID: traceID, StartTime: now.Add(-40 * time.Minute), EndTime: now.Add(-39 * time.Minute),
		ModelID: "summary-batch", Status: "error",
		Metadata: map[string]string{"batch": "2024-11-02", "shard": "3"},
	}

	logID := uuid.NewString()
	s.logs[logID] = domain.Log{
		ID: logID, Timestamp: now.Add(-40 * time.Minute), Level: "error",
		Message: "summary generation timed out after 30s", ModelID: "summary-batch", TraceID: traceID,
	}
	okLogID := uuid.NewString()
	s.logs[okLogID] = domain.Log{
		ID: okLogID, Timestamp: now.Add(-3 * time.Hour), Level: "info",
		Message: "completion latency p95 at 820ms", ModelID: "gpt-support",
	}

	rootCause := "batch shard 3 exceeded the context window after the prompt template change"
	s.incidents["inc-1001"] = domain.Incident{
		ID: "inc-1001", ModelID: "summary-batch",
		Title:       "Nightly summaries failing for large accounts",
		Description: "Roughly 12% of summary jobs in shard 3 time out.",
		Status:      domain.IncidentInvestigating, Severity: "high",
		CreatedAt: now.Add(-38 * time.Minute), RootCause: &rootCause,
		Logs:   []domain.Log{s.logs[logID]},
		Traces: []domain.Trace{s.traces[traceID]},
	}
	resolvedAt := now.Add(-20 * time.Hour)
	s.incidents["inc-0997"] = domain.Incident{
		ID: "inc-0997", ModelID: "gpt-support",
		Title:       "Elevated refusal rate on billing questions",
		Description: "Refusal rate tripled after the 2.4.0 rollout.",
		Status:      domain.IncidentResolved, Severity: "medium",
		CreatedAt: now.Add(-2 * 24 * time.Hour), ResolvedAt: &resolvedAt,
		Logs: []domain.Log{}, Traces: []domain.Trace{},
	}

	s.schedules[1] = domain.TestSchedule{
		ID: 1, TestName: "billing refusal sanity", Instruction: "Ask three billing questions and verify none are refused",
		Date: now.Add(-time.Hour), Time: "02:00", Frequency: "daily",
		Tags: []string{"billing", "refusals"}, Agents: []string{"gpt-support"},
		Environments: []string{"staging"},
	}
	s.nextScheduleID = 2
}

// CreateAccount stores a new account. Fails with ErrEmailTaken on duplicate
// email.
func (s *MemoryStore) CreateAccount(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.Email]; exists {
		return ErrEmailTaken
	}
	s.accounts[a.Email] = a
	return nil
}

// AccountByEmail looks up an account.
func (s *MemoryStore) AccountByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// Models lists all models.
func (s *MemoryStore) Models(_ context.Context) ([]domain.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	models := make([]domain.Model, 0, len(s.models))
	for _, m := range s.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Incidents lists incidents, optionally filtered by status.
func (s *MemoryStore) Incidents(_ context.Context, status string) ([]domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incidents := make([]domain.Incident, 0, len(s.incidents))
	for _, in := range s.incidents {
		if status != "" && in.Status != status {
			continue
		}
		incidents = append(incidents, in)
	}
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].CreatedAt.After(incidents[j].CreatedAt) })
	return incidents, nil
}

// Incident fetches one incident by ID.
func (s *MemoryStore) Incident(_ context.Context, id string) (*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &in, nil
}

// Logs lists logs, optionally filtered to one model.
func (s *MemoryStore) Logs(_ context.Context, modelID string) ([]domain.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]domain.Log, 0, len(s.logs))
	for _, l := range s.logs {
		if modelID != "" && l.ModelID != modelID {
			continue
		}
		logs = append(logs, l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	return logs, nil
}

// Traces lists traces, optionally filtered to one model.
func (s *MemoryStore) Traces(_ context.Context, modelID string) ([]domain.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	traces := make([]domain.Trace, 0, len(s.traces))
	for _, t := range s.traces {
		if modelID != "" && t.ModelID != modelID {
			continue
		}
		traces = append(traces, t)
	}
	sort.Slice(traces, func(i, j int) bool { return traces[i].StartTime.After(traces[j].StartTime) })
	return traces, nil
}

// CreateProject stores a project and assigns its ID.
func (s *MemoryStore) CreateProject(_ context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextProjectID
	s.nextProjectID++
	if p.Integrations == nil {
		p.Integrations = domain.Integrations{}
	}
	s.projects[p.ID] = cloneProject(*p)
	return nil
}

// Project fetches one project.
func (s *MemoryStore) Project(_ context.Context, id int64) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneProject(p)
	return &cp, nil
}

// ProjectByName fetches a project by exact name.
func (s *MemoryStore) ProjectByName(_ context.Context, name string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.Name == name {
			cp := cloneProject(p)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ProjectsByMember lists projects the email is a member of.
func (s *MemoryStore) ProjectsByMember(_ context.Context, email string) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var projects []domain.Project
	for _, p := range s.projects {
		if p.RoleOf(email) != "" {
			projects = append(projects, cloneProject(p))
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

// AddMember appends a membership record.
func (s *MemoryStore) AddMember(_ context.Context, projectID int64, m domain.ProjectMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.Members = append(p.Members, m)
	s.projects[projectID] = p
	return nil
}

// SetIntegrations replaces a project's full integrations map. The handler
// performs the category-keyed merge before calling this.
func (s *MemoryStore) SetIntegrations(_ context.Context, projectID int64, in domain.Integrations) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.Integrations = in.Clone()
	s.projects[projectID] = p
	return nil
}

// TestSchedules lists all scheduled tests.
func (s *MemoryStore) TestSchedules(_ context.Context) ([]domain.TestSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedules := make([]domain.TestSchedule, 0, len(s.schedules))
	for _, t := range s.schedules {
		schedules = append(schedules, t)
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	return schedules, nil
}

// TestSchedule fetches one scheduled test.
func (s *MemoryStore) TestSchedule(_ context.Context, id int64) (*domain.TestSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// CreateTestSchedule stores a scheduled test and assigns its ID.
func (s *MemoryStore) CreateTestSchedule(_ context.Context, t *domain.TestSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextScheduleID
	s.nextScheduleID++
	s.schedules[t.ID] = *t
	return nil
}

// UpdateTestSchedule replaces a scheduled test definition.
func (s *MemoryStore) UpdateTestSchedule(_ context.Context, t *domain.TestSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[t.ID]; !ok {
		return ErrNotFound
	}
	s.schedules[t.ID] = *t
	return nil
}

// DeleteTestSchedule removes a scheduled test.
func (s *MemoryStore) DeleteTestSchedule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// TestResults lists recorded test outcomes, newest first.
func (s *MemoryStore) TestResults(_ context.Context) ([]domain.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.TestResult, len(s.results))
	copy(results, s.results)
	sort.Slice(results, func(i, j int) bool { return results[i].RunDate.After(results[j].RunDate) })
	return results, nil
}

// CreateTestResult stores a test outcome, assigning an ID when absent.
func (s *MemoryStore) CreateTestResult(_ context.Context, r *domain.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.results = append(s.results, *r)
	return nil
}

func cloneProject(p domain.Project) domain.Project {
	cp := p
	cp.Members = append([]domain.ProjectMember(nil), p.Members...)
	cp.Integrations = p.Integrations.Clone()
	return cp
}
