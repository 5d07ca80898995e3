// Package dashboard assembles the overview screen's data: health, models,
// incidents, and projects fetched concurrently, each section succeeding or
// failing on its own. One backend hiccup blanks one card, not the page.
package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/domain"
)

// API is the subset of the client the loader needs.
type API interface {
	SystemHealth(ctx context.Context) (*domain.SystemHealth, error)
	ListModels(ctx context.Context) ([]domain.Model, error)
	ListIncidents(ctx context.Context, status string) ([]domain.Incident, error)
	MyProjects(ctx context.Context) ([]domain.Project, error)
}

// Section holds one independently fetched slice of the snapshot. Err is set
// when that fetch failed; the value is then the zero value.
type Section[T any] struct {
	Value T
	Err   error
}

// Snapshot is the result of one dashboard load. Sections are independent:
// inspect each Err before trusting its Value.
type Snapshot struct {
	Health    Section[*domain.SystemHealth]
	Models    Section[[]domain.Model]
	Incidents Section[[]domain.Incident]
	Projects  Section[[]domain.Project]
}

// Failed reports whether every section failed, which usually means the
// backend is unreachable rather than individually broken endpoints.
func (s *Snapshot) Failed() bool {
	return s.Health.Err != nil && s.Models.Err != nil &&
		s.Incidents.Err != nil && s.Projects.Err != nil
}

// Loader fetches dashboard snapshots.
type Loader struct {
	api    API
	logger zerolog.Logger
}

// NewLoader creates a dashboard loader.
func NewLoader(api API, logger zerolog.Logger) *Loader {
	return &Loader{api: api, logger: logger}
}

// Load dispatches the four reads concurrently and waits for all of them.
// There is no shared mutable state between the fetches and no cancellation
// coupling: a failed section never prevents the others from resolving.
func (l *Loader) Load(ctx context.Context) *Snapshot {
	snap := &Snapshot{}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		snap.Health.Value, snap.Health.Err = l.api.SystemHealth(ctx)
	}()
	go func() {
		defer wg.Done()
		snap.Models.Value, snap.Models.Err = l.api.ListModels(ctx)
	}()
	go func() {
		defer wg.Done()
		snap.Incidents.Value, snap.Incidents.Err = l.api.ListIncidents(ctx, "")
	}()
	go func() {
		defer wg.Done()
		snap.Projects.Value, snap.Projects.Err = l.api.MyProjects(ctx)
	}()

	wg.Wait()

	for name, err := range map[string]error{
		"health":    snap.Health.Err,
		"models":    snap.Models.Err,
		"incidents": snap.Incidents.Err,
		"projects":  snap.Projects.Err,
	} {
		if err != nil {
			l.logger.Warn().Err(err).Str("section", name).Msg("dashboard section failed")
		}
	}

	return snap
}
