package devserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/devserver"
	"github.com/echosysai/echosys-go/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := devserver.NewServer(devserver.Config{
		Logger:        zerolog.Nop(),
		Store:         devserver.NewSeededMemoryStore(),
		Auth:          devserver.NewAuthenticator(devserver.AuthConfig{SigningKey: "test-signing-key"}),
		AuthRateLimit: 1000,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// do issues a request with an optional bearer token and JSON body, returning
// the status code and raw body.
func do(t *testing.T, method, rawURL, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

// register creates an account and returns its bearer token.
func register(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	status, body := do(t, http.MethodPost, ts.URL+"/auth/register", "", map[string]string{
		"email":    email,
		"password": "pw-" + email,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, status, body)
	}
	var resp domain.TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token from register")
	}
	return resp.Token
}

func detailOf(t *testing.T, body []byte) string {
	t.Helper()
	var d struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatalf("decode detail body %q: %v", body, err)
	}
	return d.Detail
}

func TestLogin_FormEncoded(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "dev@example.com")

	form := url.Values{"username": {"dev@example.com"}, "password": {"pw-dev@example.com"}}
	resp, err := http.PostForm(ts.URL+"/auth/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tr domain.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.Token == "" || tr.TokenType != "bearer" {
		t.Errorf("unexpected token response: %+v", tr)
	}
	if tr.User.Email != "dev@example.com" {
		t.Errorf("expected user echoed back, got %+v", tr.User)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "dev@example.com")

	form := url.Values{"username": {"dev@example.com"}, "password": {"nope"}}
	resp, err := http.PostForm(ts.URL+"/auth/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if got := detailOf(t, body); got != "Incorrect email or password" {
		t.Errorf("unexpected detail %q", got)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "dev@example.com")

	status, body := do(t, http.MethodPost, ts.URL+"/auth/register", "", map[string]string{
		"email":    "dev@example.com",
		"password": "other",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if got := detailOf(t, body); got != "Email already registered" {
		t.Errorf("unexpected detail %q", got)
	}
}

func TestHealth_RequiresAuthAndAggregates(t *testing.T) {
	ts := newTestServer(t)

	status, _ := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	token := register(t, ts, "dev@example.com")
	for _, path := range []string{"/health", "/system_health"} {
		status, body := do(t, http.MethodGet, ts.URL+path, token, nil)
		if status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, status)
		}
		var health domain.SystemHealth
		if err := json.Unmarshal(body, &health); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		// Seed data: three models (two active), one open incident.
		if health.TotalModels != 3 || health.ActiveModels != 2 {
			t.Errorf("%s: unexpected model counts: %+v", path, health)
		}
		if health.OpenIncidents != 1 || health.SystemStatus != "degraded" {
			t.Errorf("%s: unexpected incident aggregate: %+v", path, health)
		}
	}
}

func TestIncident_NotFoundDetail(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/incidents/nope", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if got := detailOf(t, body); got != "Incident not found" {
		t.Errorf("unexpected detail %q", got)
	}
}

func TestChat_EchoesAnalysis(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "dev@example.com")

	status, body := do(t, http.MethodPost, ts.URL+"/chat", token, domain.ChatRequest{Message: "latency spike"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp domain.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "Analyzing your query about: latency spike" {
		t.Errorf("unexpected chat response %q", resp.Response)
	}
}

func TestCreateProject_ExistingNameJoinsAsMember(t *testing.T) {
	ts := newTestServer(t)
	owner := register(t, ts, "owner@example.com")
	joiner := register(t, ts, "joiner@example.com")

	status, body := do(t, http.MethodPost, ts.URL+"/projects/", owner, domain.CreateProjectRequest{Name: "alpha"})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", status, body)
	}
	var created domain.Project
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if created.RoleOf("owner@example.com") != domain.RoleOwner {
		t.Errorf("creator should be owner, got %+v", created.Members)
	}

	// Same name from another account joins instead of duplicating.
	status, body = do(t, http.MethodPost, ts.URL+"/projects/", joiner, domain.CreateProjectRequest{Name: "alpha"})
	if status != http.StatusOK {
		t.Fatalf("join: expected 200, got %d (%s)", status, body)
	}
	var joined domain.Project
	if err := json.Unmarshal(body, &joined); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if joined.ID != created.ID {
		t.Errorf("expected the same project, got %d and %d", created.ID, joined.ID)
	}
	if joined.RoleOf("joiner@example.com") != domain.RoleMember {
		t.Errorf("joiner should be member, got %+v", joined.Members)
	}

	// Both accounts see the project under /projects/mine.
	for _, token := range []string{owner, joiner} {
		status, body := do(t, http.MethodGet, ts.URL+"/projects/mine", token, nil)
		if status != http.StatusOK {
			t.Fatalf("mine: expected 200, got %d", status)
		}
		var projects []domain.Project
		if err := json.Unmarshal(body, &projects); err != nil {
			t.Fatalf("decode projects: %v", err)
		}
		if len(projects) != 1 || projects[0].Name != "alpha" {
			t.Errorf("unexpected project list: %+v", projects)
		}
	}
}

func TestInvite_OwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	owner := register(t, ts, "owner@example.com")
	member := register(t, ts, "member@example.com")

	_, body := do(t, http.MethodPost, ts.URL+"/projects/", owner, domain.CreateProjectRequest{Name: "alpha"})
	var project domain.Project
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	base := fmt.Sprintf("%s/projects/%d", ts.URL, project.ID)

	status, _ := do(t, http.MethodPost, base+"/invite", owner, domain.InviteRequest{Email: "member@example.com", Role: domain.RoleMember})
	if status != http.StatusCreated {
		t.Fatalf("owner invite: expected 201, got %d", status)
	}

	status, body = do(t, http.MethodPost, base+"/invite", member, domain.InviteRequest{Email: "third@example.com", Role: domain.RoleMember})
	if status != http.StatusForbidden {
		t.Fatalf("member invite: expected 403, got %d", status)
	}
	if got := detailOf(t, body); got != "Not authorized" {
		t.Errorf("unexpected detail %q", got)
	}
}

func TestIntegrations_MemberOnlyAndCategoryMerge(t *testing.T) {
	ts := newTestServer(t)
	owner := register(t, ts, "owner@example.com")
	outsider := register(t, ts, "outsider@example.com")

	_, body := do(t, http.MethodPost, ts.URL+"/projects/", owner, domain.CreateProjectRequest{Name: "alpha"})
	var project domain.Project
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	integrationsURL := fmt.Sprintf("%s/projects/%d/integrations", ts.URL, project.ID)

	status, body := do(t, http.MethodGet, integrationsURL, outsider, nil)
	if status != http.StatusForbidden {
		t.Fatalf("outsider read: expected 403, got %d", status)
	}
	if got := detailOf(t, body); got != "Not authorized" {
		t.Errorf("unexpected detail %q", got)
	}

	// First patch connects a project tool.
	status, _ = do(t, http.MethodPatch, integrationsURL, owner, domain.IntegrationsEnvelope{
		Integrations: domain.Integrations{domain.CategoryProject: {"github"}},
	})
	if status != http.StatusOK {
		t.Fatalf("first patch: expected 200, got %d", status)
	}

	// Second patch touches only the cloud category; project must survive.
	status, body = do(t, http.MethodPatch, integrationsURL, owner, domain.IntegrationsEnvelope{
		Integrations: domain.Integrations{domain.CategoryCloud: {"aws", "gcp"}},
	})
	if status != http.StatusOK {
		t.Fatalf("second patch: expected 200, got %d", status)
	}
	var envelope domain.IntegrationsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(envelope.Integrations[domain.CategoryProject]) != 1 {
		t.Errorf("project category clobbered: %v", envelope.Integrations)
	}
	if len(envelope.Integrations[domain.CategoryCloud]) != 2 {
		t.Errorf("cloud category missing: %v", envelope.Integrations)
	}

	status, body = do(t, http.MethodPatch, integrationsURL, owner, domain.IntegrationsEnvelope{
		Integrations: domain.Integrations{"warehouse": {"x"}},
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category: expected 422, got %d", status)
	}
	if !strings.Contains(detailOf(t, body), "warehouse") {
		t.Errorf("expected category named in detail, got %s", body)
	}
}

func TestTestSchedules_CRUD(t *testing.T) {
	ts := newTestServer(t)

	// One schedule comes from the seed data.
	status, body := do(t, http.MethodGet, ts.URL+"/test_schedules/", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	var schedules []domain.TestSchedule
	if err := json.Unmarshal(body, &schedules); err != nil {
		t.Fatalf("decode schedules: %v", err)
	}
	seeded := len(schedules)

	status, body = do(t, http.MethodPost, ts.URL+"/test_schedules/", "", domain.TestScheduleRequest{
		TestName:    "refusal probe",
		Instruction: "Ask a billing question",
		Frequency:   "daily",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", status, body)
	}
	var created domain.TestSchedule
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned schedule id")
	}

	updateURL := fmt.Sprintf("%s/test_schedules/%d", ts.URL, created.ID)
	status, body = do(t, http.MethodPut, updateURL, "", domain.TestScheduleRequest{
		TestName:    "refusal probe",
		Instruction: "Ask two billing questions",
		Frequency:   "hourly",
	})
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", status, body)
	}

	status, _ = do(t, http.MethodDelete, updateURL, "", nil)
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}

	status, body = do(t, http.MethodGet, ts.URL+"/test_schedules/", "", nil)
	if status != http.StatusOK {
		t.Fatalf("relist: expected 200, got %d", status)
	}
	if err := json.Unmarshal(body, &schedules); err != nil {
		t.Fatalf("decode schedules: %v", err)
	}
	if len(schedules) != seeded {
		t.Errorf("expected %d schedules after delete, got %d", seeded, len(schedules))
	}

	status, body = do(t, http.MethodDelete, updateURL, "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("double delete: expected 404, got %d", status)
	}
	if got := detailOf(t, body); got != "Test schedule not found" {
		t.Errorf("unexpected detail %q", got)
	}
}

func TestTestResults_RecordAndList(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodPost, ts.URL+"/test_results", "", domain.TestResult{
		TestName:    "refusal probe",
		Status:      domain.TestFailed,
		Details:     "model refused a billing question",
		Agent:       "gpt-support",
		Environment: "staging",
	})
	if status != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d (%s)", status, body)
	}
	var stored domain.TestResult
	if err := json.Unmarshal(body, &stored); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if stored.ID == "" || stored.RunDate.IsZero() {
		t.Errorf("expected assigned id and run date, got %+v", stored)
	}

	status, body = do(t, http.MethodGet, ts.URL+"/test_results", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	var results []domain.TestResult
	if err := json.Unmarshal(body, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0].Status != domain.TestFailed {
		t.Errorf("unexpected results: %+v", results)
	}
}
