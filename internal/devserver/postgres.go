package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echosysai/echosys-go/internal/domain"
)

// PostgresStore is a PostgreSQL implementation of Store for durable local
// setups. Nested collections (members, integrations, logs, traces, metadata,
// schedule targets) live in JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			status TEXT NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			severity TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			root_cause TEXT,
			logs JSONB NOT NULL DEFAULT '[]',
			traces JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			model_id TEXT NOT NULL,
			trace_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			model_id TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color_scheme TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			members JSONB NOT NULL DEFAULT '[]',
			integrations JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS test_schedules (
			id BIGSERIAL PRIMARY KEY,
			test_name TEXT NOT NULL,
			instruction TEXT NOT NULL,
			run_date TIMESTAMPTZ NOT NULL,
			run_time TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			agents JSONB NOT NULL DEFAULT '[]',
			environments JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS test_results (
			id TEXT PRIMARY KEY,
			test_name TEXT NOT NULL,
			run_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			incident_id TEXT NOT NULL DEFAULT '',
			agent TEXT NOT NULL DEFAULT '',
			environment TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// CreateAccount stores a new account.
func (s *PostgresStore) CreateAccount(ctx context.Context, a Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query, a.ID, a.Email, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailTaken
	}
	return nil
}

// AccountByEmail looks up an account.
func (s *PostgresStore) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	var a Account
	err := s.pool.QueryRow(ctx, query, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Models lists all models.
func (s *PostgresStore) Models(ctx context.Context) ([]domain.Model, error) {
	query := `
		SELECT id, name, version, status, last_updated
		FROM models
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	models := []domain.Model{}
	for rows.Next() {
		var m domain.Model
		if err := rows.Scan(&m.ID, &m.Name, &m.Version, &m.Status, &m.LastUpdated); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// Incidents lists incidents, optionally filtered by status.
func (s *PostgresStore) Incidents(ctx context.Context, status string) ([]domain.Incident, error) {
	query := `
		SELECT id, model_id, title, description, status, severity,
		       created_at, resolved_at, root_cause, logs, traces
		FROM incidents
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := []domain.Incident{}
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, *in)
	}
	return incidents, rows.Err()
}

// Incident fetches one incident by ID.
func (s *PostgresStore) Incident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `
		SELECT id, model_id, title, description, status, severity,
		       created_at, resolved_at, root_cause, logs, traces
		FROM incidents
		WHERE id = $1
	`

	in, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var (
		in         domain.Incident
		logsJSON   []byte
		tracesJSON []byte
	)

	err := row.Scan(
		&in.ID, &in.ModelID, &in.Title, &in.Description, &in.Status, &in.Severity,
		&in.CreatedAt, &in.ResolvedAt, &in.RootCause, &logsJSON, &tracesJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(logsJSON, &in.Logs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tracesJSON, &in.Traces); err != nil {
		return nil, err
	}
	return &in, nil
}

// Logs lists logs, optionally filtered to one model.
func (s *PostgresStore) Logs(ctx context.Context, modelID string) ([]domain.Log, error) {
	query := `
		SELECT id, ts, level, message, model_id, trace_id
		FROM logs
		WHERE ($1 = '' OR model_id = $1)
		ORDER BY ts DESC
	`

	rows, err := s.pool.Query(ctx, query, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []domain.Log{}
	for rows.Next() {
		var l domain.Log
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.ModelID, &l.TraceID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Traces lists traces, optionally filtered to one model.
func (s *PostgresStore) Traces(ctx context.Context, modelID string) ([]domain.Trace, error) {
	query := `
		SELECT id, start_time, end_time, model_id, status, metadata
		FROM traces
		WHERE ($1 = '' OR model_id = $1)
		ORDER BY start_time DESC
	`

	rows, err := s.pool.Query(ctx, query, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traces := []domain.Trace{}
	for rows.Next() {
		var (
			t            domain.Trace
			metadataJSON []byte
		)
		if err := rows.Scan(&t.ID, &t.StartTime, &t.EndTime, &t.ModelID, &t.Status, &metadataJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// CreateProject stores a project and assigns its ID.
func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project) error {
	query := `
		INSERT INTO projects (name, description, color_scheme, owner_id, members, integrations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if p.Integrations == nil {
		p.Integrations = domain.Integrations{}
	}
	membersJSON, err := json.Marshal(p.Members)
	if err != nil {
		return err
	}
	integrationsJSON, err := json.Marshal(p.Integrations)
	if err != nil {
		return err
	}

	return s.pool.QueryRow(ctx, query,
		p.Name, p.Description, p.ColorScheme, p.OwnerID, membersJSON, integrationsJSON,
	).Scan(&p.ID)
}

// Project fetches one project.
func (s *PostgresStore) Project(ctx context.Context, id int64) (*domain.Project, error) {
	query := `
		SELECT id, name, description, color_scheme, owner_id, members, integrations
		FROM projects
		WHERE id = $1
	`
	return s.queryProject(ctx, query, id)
}

// ProjectByName fetches a project by exact name.
func (s *PostgresStore) ProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	query := `
		SELECT id, name, description, color_scheme, owner_id, members, integrations
		FROM projects
		WHERE name = $1
		LIMIT 1
	`
	return s.queryProject(ctx, query, name)
}

func (s *PostgresStore) queryProject(ctx context.Context, query string, arg any) (*domain.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ProjectsByMember lists projects the email is a member of.
func (s *PostgresStore) ProjectsByMember(ctx context.Context, email string) ([]domain.Project, error) {
	query := `
		SELECT id, name, description, color_scheme, owner_id, members, integrations
		FROM projects
		WHERE members @> $1
		ORDER BY id
	`

	memberMatch, err := json.Marshal([]map[string]string{{"email": email}})
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, memberMatch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		p                domain.Project
		membersJSON      []byte
		integrationsJSON []byte
	)

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ColorScheme, &p.OwnerID, &membersJSON, &integrationsJSON)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(membersJSON, &p.Members); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(integrationsJSON, &p.Integrations); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddMember appends a membership record.
func (s *PostgresStore) AddMember(ctx context.Context, projectID int64, m domain.ProjectMember) error {
	query := `
		UPDATE projects
		SET members = members || $2
		WHERE id = $1
	`

	memberJSON, err := json.Marshal([]domain.ProjectMember{m})
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, projectID, memberJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIntegrations replaces a project's full integrations map.
func (s *PostgresStore) SetIntegrations(ctx context.Context, projectID int64, in domain.Integrations) error {
	query := `
		UPDATE projects
		SET integrations = $2
		WHERE id = $1
	`

	integrationsJSON, err := json.Marshal(in)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, projectID, integrationsJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TestSchedules lists all scheduled tests.
func (s *PostgresStore) TestSchedules(ctx context.Context) ([]domain.TestSchedule, error) {
	query := `
		SELECT id, test_name, instruction, run_date, run_time, frequency, tags, agents, environments
		FROM test_schedules
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []domain.TestSchedule{}
	for rows.Next() {
		t, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *t)
	}
	return schedules, rows.Err()
}

// TestSchedule fetches one scheduled test.
func (s *PostgresStore) TestSchedule(ctx context.Context, id int64) (*domain.TestSchedule, error) {
	query := `
		SELECT id, test_name, instruction, run_date, run_time, frequency, tags, agents, environments
		FROM test_schedules
		WHERE id = $1
	`

	t, err := scanSchedule(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanSchedule(row pgx.Row) (*domain.TestSchedule, error) {
	var (
		t                domain.TestSchedule
		tagsJSON         []byte
		agentsJSON       []byte
		environmentsJSON []byte
	)

	err := row.Scan(
		&t.ID, &t.TestName, &t.Instruction, &t.Date, &t.Time, &t.Frequency,
		&tagsJSON, &agentsJSON, &environmentsJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(agentsJSON, &t.Agents); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(environmentsJSON, &t.Environments); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTestSchedule stores a scheduled test and assigns its ID.
func (s *PostgresStore) CreateTestSchedule(ctx context.Context, t *domain.TestSchedule) error {
	query := `
		INSERT INTO test_schedules (test_name, instruction, run_date, run_time, frequency, tags, agents, environments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	tagsJSON, agentsJSON, environmentsJSON, err := marshalScheduleTargets(t)
	if err != nil {
		return err
	}

	return s.pool.QueryRow(ctx, query,
		t.TestName, t.Instruction, t.Date, t.Time, t.Frequency,
		tagsJSON, agentsJSON, environmentsJSON,
	).Scan(&t.ID)
}

// UpdateTestSchedule replaces a scheduled test definition.
func (s *PostgresStore) UpdateTestSchedule(ctx context.Context, t *domain.TestSchedule) error {
	query := `
		UPDATE test_schedules
		SET test_name = $2, instruction = $3, run_date = $4, run_time = $5,
		    frequency = $6, tags = $7, agents = $8, environments = $9
		WHERE id = $1
	`

	tagsJSON, agentsJSON, environmentsJSON, err := marshalScheduleTargets(t)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.TestName, t.Instruction, t.Date, t.Time, t.Frequency,
		tagsJSON, agentsJSON, environmentsJSON,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalScheduleTargets(t *domain.TestSchedule) (tags, agents, environments []byte, err error) {
	if tags, err = json.Marshal(t.Tags); err != nil {
		return nil, nil, nil, err
	}
	if agents, err = json.Marshal(t.Agents); err != nil {
		return nil, nil, nil, err
	}
	if environments, err = json.Marshal(t.Environments); err != nil {
		return nil, nil, nil, err
	}
	return tags, agents, environments, nil
}

// DeleteTestSchedule removes a scheduled test.
func (s *PostgresStore) DeleteTestSchedule(ctx context.Context, id int64) error {
	query := `DELETE FROM test_schedules WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TestResults lists recorded test outcomes, newest first.
func (s *PostgresStore) TestResults(ctx context.Context) ([]domain.TestResult, error) {
	query := `
		SELECT id, test_name, run_date, status, details, incident_id, agent, environment
		FROM test_results
		ORDER BY run_date DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.TestResult{}
	for rows.Next() {
		var r domain.TestResult
		err := rows.Scan(&r.ID, &r.TestName, &r.RunDate, &r.Status, &r.Details, &r.IncidentID, &r.Agent, &r.Environment)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CreateTestResult stores a test outcome, assigning an ID when absent.
func (s *PostgresStore) CreateTestResult(ctx context.Context, r *domain.TestResult) error {
	query := `
		INSERT INTO test_results (id, test_name, run_date, status, details, incident_id, agent, environment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.TestName, r.RunDate, r.Status, r.Details, r.IncidentID, r.Agent, r.Environment,
	)
	return err
}

// Ensure both implementations satisfy Store.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
