// Package devserver is the local development backend: a small HTTP API
// serving the same routes and error shapes as the hosted EchoSys service, so
// the SDK, CLI, and worker can run against seeded data without real
// infrastructure.
package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/domain"
)

// Config holds server settings.
type Config struct {
	Logger        zerolog.Logger
	Store         Store
	Auth          *Authenticator
	AuthRateLimit int
}

// Server serves the development API.
type Server struct {
	logger        zerolog.Logger
	store         Store
	auth          *Authenticator
	authRateLimit int
}

// NewServer creates a development API server.
func NewServer(cfg Config) *Server {
	rate := cfg.AuthRateLimit
	if rate <= 0 {
		rate = 20
	}
	return &Server{
		logger:        cfg.Logger,
		store:         cfg.Store,
		auth:          cfg.Auth,
		authRateLimit: rate,
	}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recovery(s.logger))
	r.Use(chimiddleware.RealIP)

	requireAuth := RequireAuth(s.auth)

	// Auth endpoints (public) with strict per-IP rate limiting.
	r.Route("/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.authRateLimit, time.Minute))
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
	})

	// Observability endpoints. The health aggregate is served under both
	// names the frontend historically used.
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/health", s.handleHealth)
		r.Get("/system_health", s.handleHealth)
		r.Get("/models", s.handleListModels)
		r.Get("/incidents", s.handleListIncidents)
		r.Post("/chat", s.handleChat)
	})
	r.Get("/incidents/{incidentId}", s.handleGetIncident)
	r.Get("/logs", s.handleListLogs)
	r.Get("/traces", s.handleListTraces)

	// Projects (authenticated).
	r.Route("/projects", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", s.handleCreateProject)
		r.Get("/mine", s.handleMyProjects)
		r.Route("/{projectId}", func(r chi.Router) {
			r.Get("/integrations", s.handleGetIntegrations)
			r.Patch("/integrations", s.handlePatchIntegrations)
			r.Post("/invite", s.handleInvite)
		})
	})

	// Scheduled tests and their results (public, like the hosted sandbox).
	r.Route("/test_schedules", func(r chi.Router) {
		r.Get("/", s.handleListSchedules)
		r.Post("/", s.handleCreateSchedule)
		r.Put("/{scheduleId}", s.handleUpdateSchedule)
		r.Delete("/{scheduleId}", s.handleDeleteSchedule)
	})
	r.Get("/test_results", s.handleListResults)
	r.Post("/test_results", s.handleCreateResult)

	return r
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeDetail writes an error response in the backend's canonical shape,
// a JSON object with a single detail field.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// storeError maps a store failure onto an HTTP error response.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	s.logger.Error().Err(err).Msg("store operation failed")
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	account, err := s.store.AccountByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		s.storeError(w, err)
		return
	}
	if !CheckPassword(password, account.PasswordHash) {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	s.issueSession(w, http.StatusOK, account)
}

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        body.Email,
		PasswordHash: HashPassword(body.Password),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.storeError(w, err)
		return
	}

	s.issueSession(w, http.StatusCreated, &account)
}

func (s *Server) issueSession(w http.ResponseWriter, status int, account *Account) {
	token, expiresIn, err := s.auth.Issue(account.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("issuing access token failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, status, domain.TokenResponse{
		User: domain.User{
			ID:        account.ID,
			Email:     account.Email,
			CreatedAt: account.CreatedAt,
		},
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: expiresIn,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.Models(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	incidents, err := s.store.Incidents(r.Context(), "")
	if err != nil {
		s.storeError(w, err)
		return
	}

	health := domain.SystemHealth{TotalModels: len(models)}
	for _, m := range models {
		if m.Status == domain.ModelStatusActive {
			health.ActiveModels++
		}
	}
	for i := range incidents {
		in := &incidents[i]
		if in.Open() {
			health.OpenIncidents++
		}
		if in.RootCause != nil {
			if health.LastRCA == nil || in.CreatedAt.After(*health.LastRCA) {
				t := in.CreatedAt
				health.LastRCA = &t
			}
		}
	}
	health.SystemStatus = "healthy"
	if health.OpenIncidents > 0 {
		health.SystemStatus = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.Models(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.store.Incidents(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, incidents)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := s.store.Incident(r.Context(), chi.URLParam(r, "incidentId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Incident not found")
			return
		}
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, incident)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.Logs(r.Context(), r.URL.Query().Get("model_id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	traces, err := s.store.Traces(r.Context(), r.URL.Query().Get("model_id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, traces)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	respondJSON(w, http.StatusOK, domain.ChatResponse{
		Response: "Analyzing your query about: " + req.Message,
	})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	caller := CallerEmail(r.Context())

	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Name == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	// Creating a project whose name already exists joins the caller as a
	// member of the existing project instead of duplicating it.
	existing, err := s.store.ProjectByName(r.Context(), req.Name)
	if err == nil {
		if existing.RoleOf(caller) == "" {
			member := domain.ProjectMember{Email: caller, Role: domain.RoleMember}
			if err := s.store.AddMember(r.Context(), existing.ID, member); err != nil {
				s.storeError(w, err)
				return
			}
			existing.Members = append(existing.Members, member)
		}
		respondJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, ErrNotFound) {
		s.storeError(w, err)
		return
	}

	project := domain.Project{
		Name:        req.Name,
		Description: req.Description,
		ColorScheme: req.ColorScheme,
		OwnerID:     caller,
		Members: []domain.ProjectMember{
			{Email: caller, Role: domain.RoleOwner},
		},
		Integrations: req.Integrations.Clone(),
	}
	for _, m := range req.Members {
		if m.Email == caller {
			continue
		}
		if !domain.ValidRole(m.Role) {
			m.Role = domain.RoleMember
		}
		project.Members = append(project.Members, m)
	}
	if project.Integrations == nil {
		project.Integrations = domain.Integrations{}
	}

	if err := s.store.CreateProject(r.Context(), &project); err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleMyProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ProjectsByMember(r.Context(), CallerEmail(r.Context()))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	respondJSON(w, http.StatusOK, projects)
}

// memberProject loads a project and checks the caller is a member. Writes the
// error response and returns nil when access is denied.
func (s *Server) memberProject(w http.ResponseWriter, r *http.Request) *domain.Project {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid project id")
		return nil
	}

	project, err := s.store.Project(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Project not found")
			return nil
		}
		s.storeError(w, err)
		return nil
	}

	if project.RoleOf(CallerEmail(r.Context())) == "" {
		writeDetail(w, http.StatusForbidden, "Not authorized")
		return nil
	}
	return project
}

func (s *Server) handleGetIntegrations(w http.ResponseWriter, r *http.Request) {
	project := s.memberProject(w, r)
	if project == nil {
		return
	}

	integrations := project.Integrations
	if integrations == nil {
		integrations = domain.Integrations{}
	}
	respondJSON(w, http.StatusOK, domain.IntegrationsEnvelope{Integrations: integrations})
}

func (s *Server) handlePatchIntegrations(w http.ResponseWriter, r *http.Request) {
	project := s.memberProject(w, r)
	if project == nil {
		return
	}

	var envelope domain.IntegrationsEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	for category := range envelope.Integrations {
		if !domain.ValidCategory(category) {
			writeDetail(w, http.StatusUnprocessableEntity, "Unknown integration category: "+string(category))
			return
		}
	}

	merged := project.Integrations.Merge(envelope.Integrations)
	if err := s.store.SetIntegrations(r.Context(), project.ID, merged); err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.IntegrationsEnvelope{Integrations: merged})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	project := s.memberProject(w, r)
	if project == nil {
		return
	}
	if project.RoleOf(CallerEmail(r.Context())) != domain.RoleOwner {
		writeDetail(w, http.StatusForbidden, "Not authorized")
		return
	}

	var req domain.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Email == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	if !domain.ValidRole(req.Role) {
		writeDetail(w, http.StatusUnprocessableEntity, "Unknown role: "+req.Role)
		return
	}
	if project.RoleOf(req.Email) != "" {
		writeDetail(w, http.StatusBadRequest, "Already a member")
		return
	}

	member := domain.ProjectMember{Email: req.Email, Role: req.Role}
	if err := s.store.AddMember(r.Context(), project.ID, member); err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.TestSchedules(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.TestScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.TestName == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "test_name is required")
		return
	}

	schedule := scheduleFromRequest(0, req)
	if err := s.store.CreateTestSchedule(r.Context(), &schedule); err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, schedule)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "scheduleId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid schedule id")
		return
	}

	var req domain.TestScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	schedule := scheduleFromRequest(id, req)
	if err := s.store.UpdateTestSchedule(r.Context(), &schedule); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Test schedule not found")
			return
		}
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "scheduleId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid schedule id")
		return
	}

	if err := s.store.DeleteTestSchedule(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Test schedule not found")
			return
		}
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func scheduleFromRequest(id int64, req domain.TestScheduleRequest) domain.TestSchedule {
	return domain.TestSchedule{
		ID:           id,
		TestName:     req.TestName,
		Instruction:  req.Instruction,
		Date:         req.Date,
		Time:         req.Time,
		Frequency:    req.Frequency,
		Tags:         req.Tags,
		Agents:       req.Agents,
		Environments: req.Environments,
	}
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.TestResults(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	var result domain.TestResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if result.TestName == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "test_name is required")
		return
	}
	if result.RunDate.IsZero() {
		result.RunDate = time.Now().UTC()
	}
	if result.Status == "" {
		result.Status = domain.TestPending
	}

	if err := s.store.CreateTestResult(r.Context(), &result); err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
