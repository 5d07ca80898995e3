// Package domain defines the wire contracts exchanged with the EchoSys API.
//
// These are pure data shapes: the server is authoritative for every entity and
// the client only ever holds ephemeral cached copies. Validation beyond basic
// enum membership belongs to the server or the calling layer, not here.
package domain

import "time"

// SystemHealth is the read-only aggregate snapshot served by /health.
type SystemHealth struct {
	TotalModels   int        `json:"total_models"`
	ActiveModels  int        `json:"active_models"`
	OpenIncidents int        `json:"open_incidents"`
	SystemStatus  string     `json:"system_status"`
	LastRCA       *time.Time `json:"last_rca,omitempty"`
}

// Model is a deployed model as reported by the backend. Read-only.
type Model struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// ModelStatusActive is the status value counted as active in SystemHealth.
const ModelStatusActive = "active"

// Log is an append-only, immutable log record. A non-empty TraceID links the
// record to a Trace for correlation.
type Log struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	ModelID   string    `json:"model_id"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// Trace is an append-only, immutable execution trace.
type Trace struct {
	ID        string            `json:"id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	ModelID   string            `json:"model_id"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata"`
}

// Incident statuses. Transitions happen server-side; the client only displays
// them and optionally filters lists by status.
const (
	IncidentOpen          = "open"
	IncidentInvestigating = "investigating"
	IncidentResolved      = "resolved"
)

// Incident is a root-cause-analysis record attached to a model.
type Incident struct {
	ID          string     `json:"id"`
	ModelID     string     `json:"model_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Severity    string     `json:"severity"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	RootCause   *string    `json:"root_cause,omitempty"`
	Logs        []Log      `json:"logs"`
	Traces      []Trace    `json:"traces"`
}

// Open reports whether the incident still counts against open_incidents.
func (i *Incident) Open() bool {
	return i.Status != IncidentResolved
}

// ChatRequest and ChatResponse are the /chat exchange.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the analysis reply for a chat message.
type ChatResponse struct {
	Response string `json:"response"`
}
