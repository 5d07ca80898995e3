package dashboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/dashboard"
	"github.com/echosysai/echosys-go/internal/domain"
)

// fakeAPI returns canned values or errors per section.
type fakeAPI struct {
	health       *domain.SystemHealth
	healthErr    error
	models       []domain.Model
	modelsErr    error
	incidents    []domain.Incident
	incidentsErr error
	projects     []domain.Project
	projectsErr  error
}

func (f *fakeAPI) SystemHealth(context.Context) (*domain.SystemHealth, error) {
	return f.health, f.healthErr
}

func (f *fakeAPI) ListModels(context.Context) ([]domain.Model, error) {
	return f.models, f.modelsErr
}

func (f *fakeAPI) ListIncidents(context.Context, string) ([]domain.Incident, error) {
	return f.incidents, f.incidentsErr
}

func (f *fakeAPI) MyProjects(context.Context) ([]domain.Project, error) {
	return f.projects, f.projectsErr
}

func TestLoad_AllSectionsResolve(t *testing.T) {
	api := &fakeAPI{
		health:    &domain.SystemHealth{TotalModels: 3, ActiveModels: 2, SystemStatus: "healthy"},
		models:    []domain.Model{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		incidents: []domain.Incident{{ID: "inc-1"}},
		projects:  []domain.Project{{ID: 1, Name: "alpha"}},
	}

	snap := dashboard.NewLoader(api, zerolog.Nop()).Load(context.Background())

	if snap.Failed() {
		t.Fatal("snapshot should not be marked failed")
	}
	if snap.Health.Err != nil || snap.Health.Value.TotalModels != 3 {
		t.Errorf("unexpected health section: %+v", snap.Health)
	}
	if len(snap.Models.Value) != 3 {
		t.Errorf("expected 3 models, got %d", len(snap.Models.Value))
	}
	if len(snap.Incidents.Value) != 1 {
		t.Errorf("expected 1 incident, got %d", len(snap.Incidents.Value))
	}
	if len(snap.Projects.Value) != 1 {
		t.Errorf("expected 1 project, got %d", len(snap.Projects.Value))
	}
}

func TestLoad_OneFailureDoesNotBlankTheOthers(t *testing.T) {
	modelsErr := errors.New("models endpoint down")
	api := &fakeAPI{
		health:    &domain.SystemHealth{SystemStatus: "healthy"},
		modelsErr: modelsErr,
		incidents: []domain.Incident{{ID: "inc-1"}},
		projects:  []domain.Project{{ID: 1}},
	}

	snap := dashboard.NewLoader(api, zerolog.Nop()).Load(context.Background())

	if snap.Failed() {
		t.Fatal("one failed section must not fail the snapshot")
	}
	if !errors.Is(snap.Models.Err, modelsErr) {
		t.Errorf("expected models error surfaced, got %v", snap.Models.Err)
	}
	if snap.Models.Value != nil {
		t.Errorf("failed section should carry zero value, got %v", snap.Models.Value)
	}
	if snap.Health.Err != nil || snap.Incidents.Err != nil || snap.Projects.Err != nil {
		t.Error("other sections must resolve independently")
	}
}

func TestLoad_AllFailuresMeansUnreachable(t *testing.T) {
	down := errors.New("connection refused")
	api := &fakeAPI{
		healthErr:    down,
		modelsErr:    down,
		incidentsErr: down,
		projectsErr:  down,
	}

	snap := dashboard.NewLoader(api, zerolog.Nop()).Load(context.Background())

	if !snap.Failed() {
		t.Fatal("expected Failed() when every section errors")
	}
}
