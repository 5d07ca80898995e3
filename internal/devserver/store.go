package devserver

import (
	"context"
	"errors"
	"time"

	"github.com/echosysai/echosys-go/internal/domain"
)

// Predefined store errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")
)

// Account is a stored user credential record.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store is the development server's persistence boundary. Two
// implementations exist: MemoryStore (seeded demo data, the default) and
// PostgresStore for durable local setups.
type Store interface {
	// Accounts.
	CreateAccount(ctx context.Context, a Account) error
	AccountByEmail(ctx context.Context, email string) (*Account, error)

	// Observability resources (read-only from the API's perspective).
	Models(ctx context.Context) ([]domain.Model, error)
	Incidents(ctx context.Context, status string) ([]domain.Incident, error)
	Incident(ctx context.Context, id string) (*domain.Incident, error)
	Logs(ctx context.Context, modelID string) ([]domain.Log, error)
	Traces(ctx context.Context, modelID string) ([]domain.Trace, error)

	// Projects.
	CreateProject(ctx context.Context, p *domain.Project) error
	Project(ctx context.Context, id int64) (*domain.Project, error)
	ProjectByName(ctx context.Context, name string) (*domain.Project, error)
	ProjectsByMember(ctx context.Context, email string) ([]domain.Project, error)
	AddMember(ctx context.Context, projectID int64, m domain.ProjectMember) error
	SetIntegrations(ctx context.Context, projectID int64, in domain.Integrations) error

	// Scheduled tests.
	TestSchedules(ctx context.Context) ([]domain.TestSchedule, error)
	TestSchedule(ctx context.Context, id int64) (*domain.TestSchedule, error)
	CreateTestSchedule(ctx context.Context, t *domain.TestSchedule) error
	UpdateTestSchedule(ctx context.Context, t *domain.TestSchedule) error
	DeleteTestSchedule(ctx context.Context, id int64) error
	TestResults(ctx context.Context) ([]domain.TestResult, error)
	CreateTestResult(ctx context.Context, r *domain.TestResult) error
}
