package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/echosysai/echosys-go/internal/domain"
)

// Login authenticates with email and password. The auth endpoint follows the
// OAuth2 password flow, so the credentials go out as form fields username and
// password, not JSON. On success the returned token and email are stored in
// the session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp domain.TokenResponse
	if err := c.postForm(ctx, "login", "/auth/login", form, &resp); err != nil {
		return nil, err
	}

	if err := c.session.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("storing session token: %w", err)
	}
	if err := c.session.SetEmail(email); err != nil {
		return nil, fmt.Errorf("storing session email: %w", err)
	}
	return &resp, nil
}

// registerRequest is the JSON body for /auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and stores the issued session.
func (c *Client) Register(ctx context.Context, email, password string) (*domain.TokenResponse, error) {
	var resp domain.TokenResponse
	err := c.sendJSON(ctx, "register", http.MethodPost, "/auth/register", registerRequest{
		Email:    email,
		Password: password,
	}, authNone, &resp)
	if err != nil {
		return nil, err
	}

	if err := c.session.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("storing session token: %w", err)
	}
	if err := c.session.SetEmail(email); err != nil {
		return nil, fmt.Errorf("storing session email: %w", err)
	}
	return &resp, nil
}

// RegisterDemo creates a throwaway demo account, mirroring the dashboard's
// "try the demo" flow.
func (c *Client) RegisterDemo(ctx context.Context) (*domain.TokenResponse, error) {
	email := fmt.Sprintf("demo_%d@example.com", time.Now().UnixMilli())
	return c.Register(ctx, email, "demo123")
}

// Logout clears the stored session. Purely local; the backend keeps its own
// token expiry.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// SystemHealth fetches the current system health aggregate.
func (c *Client) SystemHealth(ctx context.Context) (*domain.SystemHealth, error) {
	var health domain.SystemHealth
	if err := c.get(ctx, "system_health", "/health", nil, authRequired, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListModels fetches all models.
func (c *Client) ListModels(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	if err := c.get(ctx, "list_models", "/models", nil, authRequired, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ListIncidents fetches incidents, optionally filtered by status.
func (c *Client) ListIncidents(ctx context.Context, status string) ([]domain.Incident, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	var incidents []domain.Incident
	if err := c.get(ctx, "list_incidents", "/incidents", query, authRequired, &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// GetIncident fetches a single incident with its correlated logs and traces.
func (c *Client) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	var incident domain.Incident
	if err := c.get(ctx, "get_incident", "/incidents/"+url.PathEscape(id), nil, authOptional, &incident); err != nil {
		return nil, err
	}
	return &incident, nil
}

// ListLogs fetches logs, optionally filtered to one model.
func (c *Client) ListLogs(ctx context.Context, modelID string) ([]domain.Log, error) {
	query := url.Values{}
	if modelID != "" {
		query.Set("model_id", modelID)
	}
	var logs []domain.Log
	if err := c.get(ctx, "list_logs", "/logs", query, authOptional, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// ListTraces fetches traces, optionally filtered to one model.
func (c *Client) ListTraces(ctx context.Context, modelID string) ([]domain.Trace, error) {
	query := url.Values{}
	if modelID != "" {
		query.Set("model_id", modelID)
	}
	var traces []domain.Trace
	if err := c.get(ctx, "list_traces", "/traces", query, authOptional, &traces); err != nil {
		return nil, err
	}
	return traces, nil
}

// SendChat submits a message to the analysis chat.
func (c *Client) SendChat(ctx context.Context, message string) (*domain.ChatResponse, error) {
	var resp domain.ChatResponse
	err := c.sendJSON(ctx, "chat", http.MethodPost, "/chat", domain.ChatRequest{Message: message}, authRequired, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProject creates a project. The creator becomes its owner member.
//
// Not idempotent: the backend has no idempotency key for project creation, so
// a duplicate call produces a duplicate side effect. Callers must not
// resubmit while a call is in flight.
func (c *Client) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	var project domain.Project
	if err := c.sendJSON(ctx, "create_project", http.MethodPost, "/projects/", req, authRequired, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// MyProjects lists the projects the authenticated account belongs to.
func (c *Client) MyProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.get(ctx, "my_projects", "/projects/mine", nil, authRequired, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ProjectIntegrations fetches a project's integrations map.
func (c *Client) ProjectIntegrations(ctx context.Context, projectID int64) (domain.Integrations, error) {
	var envelope domain.IntegrationsEnvelope
	path := "/projects/" + strconv.FormatInt(projectID, 10) + "/integrations"
	if err := c.get(ctx, "project_integrations", path, nil, authRequired, &envelope); err != nil {
		return nil, err
	}
	if envelope.Integrations == nil {
		envelope.Integrations = domain.Integrations{}
	}
	return envelope.Integrations, nil
}

// UpdateProjectIntegrations applies a category-keyed partial update: every
// category present in integrations replaces the server's entry for that
// category, other categories are untouched. Idempotent per category —
// repeating the same patch is a no-op.
func (c *Client) UpdateProjectIntegrations(ctx context.Context, projectID int64, integrations domain.Integrations) (domain.Integrations, error) {
	var envelope domain.IntegrationsEnvelope
	path := "/projects/" + strconv.FormatInt(projectID, 10) + "/integrations"
	err := c.sendJSON(ctx, "update_integrations", http.MethodPatch, path,
		domain.IntegrationsEnvelope{Integrations: integrations}, authRequired, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Integrations, nil
}

// InviteMember invites an email to a project with the given role. Owner-only
// on the backend. Not idempotent; see CreateProject.
func (c *Client) InviteMember(ctx context.Context, projectID int64, email, role string) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	path := "/projects/" + strconv.FormatInt(projectID, 10) + "/invite"
	err := c.sendJSON(ctx, "invite_member", http.MethodPost, path,
		domain.InviteRequest{Email: email, Role: role}, authRequired, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListTestSchedules fetches all scheduled sanity tests.
func (c *Client) ListTestSchedules(ctx context.Context) ([]domain.TestSchedule, error) {
	var schedules []domain.TestSchedule
	if err := c.get(ctx, "list_test_schedules", "/test_schedules/", nil, authOptional, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// CreateTestSchedule adds a scheduled test.
func (c *Client) CreateTestSchedule(ctx context.Context, req domain.TestScheduleRequest) (*domain.TestSchedule, error) {
	var schedule domain.TestSchedule
	if err := c.sendJSON(ctx, "create_test_schedule", http.MethodPost, "/test_schedules/", req, authOptional, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// UpdateTestSchedule replaces a scheduled test definition.
func (c *Client) UpdateTestSchedule(ctx context.Context, id int64, req domain.TestScheduleRequest) (*domain.TestSchedule, error) {
	var schedule domain.TestSchedule
	path := "/test_schedules/" + strconv.FormatInt(id, 10)
	if err := c.sendJSON(ctx, "update_test_schedule", http.MethodPut, path, req, authOptional, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// DeleteTestSchedule removes a scheduled test.
func (c *Client) DeleteTestSchedule(ctx context.Context, id int64) error {
	path := "/test_schedules/" + strconv.FormatInt(id, 10)
	return c.sendJSON(ctx, "delete_test_schedule", http.MethodDelete, path, nil, authOptional, nil)
}

// ListTestResults fetches recorded test run outcomes.
func (c *Client) ListTestResults(ctx context.Context) ([]domain.TestResult, error) {
	var results []domain.TestResult
	if err := c.get(ctx, "list_test_results", "/test_results", nil, authOptional, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// RecordTestResult stores the outcome of a test run. Used by the worker.
func (c *Client) RecordTestResult(ctx context.Context, result domain.TestResult) (*domain.TestResult, error) {
	var stored domain.TestResult
	if err := c.sendJSON(ctx, "record_test_result", http.MethodPost, "/test_results", result, authOptional, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
