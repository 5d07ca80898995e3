package optimistic_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/echosysai/echosys-go/internal/domain"
	"github.com/echosysai/echosys-go/internal/optimistic"
)

func TestRun_CommitSuccessKeepsMutation(t *testing.T) {
	state := domain.Integrations{domain.CategoryProject: {"github"}}

	err := optimistic.Run(context.Background(), &state,
		domain.Integrations.Clone,
		func(in domain.Integrations) domain.Integrations {
			in[domain.CategoryCloud] = []string{"aws"}
			return in
		},
		func(ctx context.Context, next domain.Integrations) error {
			return nil
		},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !reflect.DeepEqual(state[domain.CategoryCloud], []string{"aws"}) {
		t.Errorf("expected mutation kept, got %v", state)
	}
}

func TestRun_CommitFailureRestoresExactSnapshot(t *testing.T) {
	state := domain.Integrations{
		domain.CategoryProject: {"github", "linear"},
		domain.CategoryEditor:  {},
	}
	want := state.Clone()

	commitErr := errors.New("backend rejected the patch")
	err := optimistic.Run(context.Background(), &state,
		domain.Integrations.Clone,
		func(in domain.Integrations) domain.Integrations {
			in[domain.CategoryProject] = []string{"github"}
			delete(in, domain.CategoryEditor)
			return in
		},
		func(ctx context.Context, next domain.Integrations) error {
			return commitErr
		},
	)
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error surfaced, got %v", err)
	}

	if !reflect.DeepEqual(state, want) {
		t.Errorf("rollback not exact: got %v, want %v", state, want)
	}
	// The empty editor slice must survive as empty and non-nil.
	if state[domain.CategoryEditor] == nil {
		t.Error("expected empty category restored as non-nil slice")
	}
}

func TestGate_SerializesSameKey(t *testing.T) {
	gate := optimistic.NewGate()

	release := gate.Acquire("project/1/integrations")

	acquired := make(chan struct{})
	go func() {
		r := gate.Acquire("project/1/integrations")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the first holds the key")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
}

func TestGate_IndependentKeysDoNotBlock(t *testing.T) {
	gate := optimistic.NewGate()

	release := gate.Acquire("project/1/integrations")
	defer release()

	done := make(chan struct{})
	go func() {
		r := gate.Acquire("project/2/integrations")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different key should not block")
	}
}

// fakePatcher records patches and optionally fails.
type fakePatcher struct {
	mu      sync.Mutex
	patches []domain.Integrations
	err     error
}

func (f *fakePatcher) UpdateProjectIntegrations(_ context.Context, _ int64, integrations domain.Integrations) (domain.Integrations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.patches = append(f.patches, integrations.Clone())
	return integrations, nil
}

func TestIntegrationEditor_AddPatchesOnlyTouchedCategory(t *testing.T) {
	patcher := &fakePatcher{}
	editor := optimistic.NewIntegrationEditor(7, patcher, domain.Integrations{
		domain.CategoryProject: {"github"},
		domain.CategoryCloud:   {"aws"},
	})

	if err := editor.AddTool(context.Background(), domain.CategoryProject, "linear"); err != nil {
		t.Fatalf("add tool: %v", err)
	}

	if len(patcher.patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(patcher.patches))
	}
	patch := patcher.patches[0]
	if _, ok := patch[domain.CategoryCloud]; ok {
		t.Error("patch must not carry untouched categories")
	}
	if !reflect.DeepEqual(patch[domain.CategoryProject], []string{"github", "linear"}) {
		t.Errorf("unexpected patch contents: %v", patch)
	}
}

func TestIntegrationEditor_AddIsIdempotent(t *testing.T) {
	patcher := &fakePatcher{}
	editor := optimistic.NewIntegrationEditor(7, patcher, nil)

	for i := 0; i < 2; i++ {
		if err := editor.AddTool(context.Background(), domain.CategoryEditor, "vscode"); err != nil {
			t.Fatalf("add tool: %v", err)
		}
	}

	current := editor.Current()
	if !reflect.DeepEqual(current[domain.CategoryEditor], []string{"vscode"}) {
		t.Errorf("expected single entry after duplicate add, got %v", current)
	}
}

func TestIntegrationEditor_RemoveLastToolKeepsEmptyCategory(t *testing.T) {
	patcher := &fakePatcher{}
	editor := optimistic.NewIntegrationEditor(7, patcher, domain.Integrations{
		domain.CategoryCloud: {"aws"},
	})

	if err := editor.RemoveTool(context.Background(), domain.CategoryCloud, "aws"); err != nil {
		t.Fatalf("remove tool: %v", err)
	}

	patch := patcher.patches[len(patcher.patches)-1]
	tools, ok := patch[domain.CategoryCloud]
	if !ok || tools == nil {
		t.Fatal("expected patch to replace the category with an empty slice, not drop it")
	}
	if len(tools) != 0 {
		t.Errorf("expected empty category, got %v", tools)
	}
}

func TestIntegrationEditor_FailedCommitRollsBack(t *testing.T) {
	patcher := &fakePatcher{err: errors.New("503 from backend")}
	editor := optimistic.NewIntegrationEditor(7, patcher, domain.Integrations{
		domain.CategoryProject: {"github"},
	})

	if err := editor.AddTool(context.Background(), domain.CategoryProject, "linear"); err == nil {
		t.Fatal("expected commit failure")
	}

	current := editor.Current()
	if !reflect.DeepEqual(current[domain.CategoryProject], []string{"github"}) {
		t.Errorf("expected state rolled back, got %v", current)
	}
}

func TestIntegrationEditor_RejectsUnknownCategory(t *testing.T) {
	editor := optimistic.NewIntegrationEditor(7, &fakePatcher{}, nil)

	if err := editor.AddTool(context.Background(), domain.Category("warehouse"), "x"); err == nil {
		t.Fatal("expected unknown category to be rejected")
	}
}
