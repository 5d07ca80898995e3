package optimistic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/echosysai/echosys-go/internal/domain"
)

// IntegrationsPatcher is the API surface the editor commits through.
type IntegrationsPatcher interface {
	UpdateProjectIntegrations(ctx context.Context, projectID int64, integrations domain.Integrations) (domain.Integrations, error)
}

// IntegrationEditor edits a project's integrations map optimistically. Each
// mutation patches only the affected category, so concurrent edits to other
// categories (or by other members) are not clobbered.
type IntegrationEditor struct {
	projectID int64
	api       IntegrationsPatcher
	gate      *Gate
	state     domain.Integrations
}

// NewIntegrationEditor creates an editor seeded with the project's current
// integrations (typically from Client.ProjectIntegrations).
func NewIntegrationEditor(projectID int64, api IntegrationsPatcher, current domain.Integrations) *IntegrationEditor {
	state := current.Clone()
	if state == nil {
		state = domain.Integrations{}
	}
	return &IntegrationEditor{
		projectID: projectID,
		api:       api,
		gate:      NewGate(),
		state:     state,
	}
}

// Current returns a copy of the local integrations state.
func (e *IntegrationEditor) Current() domain.Integrations {
	release := e.gate.Acquire(e.key())
	defer release()
	return e.state.Clone()
}

// AddTool connects a tool under a category.
func (e *IntegrationEditor) AddTool(ctx context.Context, category domain.Category, tool string) error {
	return e.mutate(ctx, category, func(tools []string) []string {
		for _, t := range tools {
			if t == tool {
				return tools
			}
		}
		return append(tools, tool)
	})
}

// RemoveTool disconnects a tool from a category. Removing the last tool keeps
// an empty (non-nil) slice locally so the committed patch replaces the
// category instead of dropping it.
func (e *IntegrationEditor) RemoveTool(ctx context.Context, category domain.Category, tool string) error {
	return e.mutate(ctx, category, func(tools []string) []string {
		kept := make([]string, 0, len(tools))
		for _, t := range tools {
			if t != tool {
				kept = append(kept, t)
			}
		}
		return kept
	})
}

func (e *IntegrationEditor) mutate(ctx context.Context, category domain.Category, change func([]string) []string) error {
	if !domain.ValidCategory(category) {
		return fmt.Errorf("unknown integration category %q", category)
	}

	release := e.gate.Acquire(e.key())
	defer release()

	return Run(ctx, &e.state,
		domain.Integrations.Clone,
		func(in domain.Integrations) domain.Integrations {
			in[category] = change(in[category])
			return in
		},
		func(ctx context.Context, next domain.Integrations) error {
			patch := domain.Integrations{category: next[category]}
			_, err := e.api.UpdateProjectIntegrations(ctx, e.projectID, patch)
			return err
		},
	)
}

func (e *IntegrationEditor) key() string {
	return "project/" + strconv.FormatInt(e.projectID, 10) + "/integrations"
}
