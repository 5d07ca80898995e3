package domain_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/echosysai/echosys-go/internal/domain"
)

func TestIntegrationsClone_IsDeepAndExact(t *testing.T) {
	original := domain.Integrations{
		domain.CategoryProject: {"github", "linear"},
		domain.CategoryEditor:  {},
	}

	clone := original.Clone()
	if !reflect.DeepEqual(clone, original) {
		t.Fatalf("clone differs: got %v, want %v", clone, original)
	}
	if clone[domain.CategoryEditor] == nil {
		t.Error("empty slice must clone as empty, not nil")
	}

	// Mutating the clone must not leak into the original.
	clone[domain.CategoryProject][0] = "gitlab"
	clone[domain.CategoryCloud] = []string{"aws"}
	if original[domain.CategoryProject][0] != "github" {
		t.Error("clone shares backing array with original")
	}
	if _, ok := original[domain.CategoryCloud]; ok {
		t.Error("clone shares map with original")
	}
}

func TestIntegrationsClone_NilStaysNil(t *testing.T) {
	var in domain.Integrations
	if in.Clone() != nil {
		t.Error("expected nil clone of nil integrations")
	}
}

func TestIntegrationsMerge_ReplacesOnlyPatchedCategories(t *testing.T) {
	base := domain.Integrations{
		domain.CategoryProject: {"github"},
		domain.CategoryCloud:   {"aws"},
	}
	patch := domain.Integrations{
		domain.CategoryCloud: {"gcp"},
	}

	merged := base.Merge(patch)

	if !reflect.DeepEqual(merged[domain.CategoryCloud], []string{"gcp"}) {
		t.Errorf("patched category not replaced: %v", merged)
	}
	if !reflect.DeepEqual(merged[domain.CategoryProject], []string{"github"}) {
		t.Errorf("untouched category changed: %v", merged)
	}
	// Merge never mutates its receiver.
	if !reflect.DeepEqual(base[domain.CategoryCloud], []string{"aws"}) {
		t.Errorf("receiver mutated: %v", base)
	}
}

func TestIntegrationsMerge_IsIdempotent(t *testing.T) {
	base := domain.Integrations{domain.CategoryProject: {"github"}}
	patch := domain.Integrations{domain.CategoryProject: {"github", "linear"}}

	once := base.Merge(patch)
	twice := once.Merge(patch)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("applying the same patch twice diverged: %v vs %v", once, twice)
	}
}

func TestIntegrationsMerge_EmptyPatchSliceClearsCategory(t *testing.T) {
	base := domain.Integrations{domain.CategoryCloud: {"aws"}}
	merged := base.Merge(domain.Integrations{domain.CategoryCloud: {}})

	tools, ok := merged[domain.CategoryCloud]
	if !ok || tools == nil || len(tools) != 0 {
		t.Errorf("expected category kept as empty slice, got %v (present=%v)", tools, ok)
	}
}

func TestIntegrationsMerge_NilReceiver(t *testing.T) {
	var base domain.Integrations
	merged := base.Merge(domain.Integrations{domain.CategoryEditor: {"vscode"}})

	if !reflect.DeepEqual(merged[domain.CategoryEditor], []string{"vscode"}) {
		t.Errorf("unexpected merge from nil receiver: %v", merged)
	}
}

func TestRoleOf(t *testing.T) {
	project := domain.Project{Members: []domain.ProjectMember{
		{Email: "owner@example.com", Role: domain.RoleOwner},
		{Email: "member@example.com", Role: domain.RoleMember},
	}}

	if got := project.RoleOf("owner@example.com"); got != domain.RoleOwner {
		t.Errorf("expected owner, got %q", got)
	}
	if got := project.RoleOf("member@example.com"); got != domain.RoleMember {
		t.Errorf("expected member, got %q", got)
	}
	if got := project.RoleOf("stranger@example.com"); got != "" {
		t.Errorf("expected empty role for non-member, got %q", got)
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range domain.Categories() {
		if !domain.ValidCategory(c) {
			t.Errorf("category %q should be valid", c)
		}
	}
	if domain.ValidCategory("warehouse") {
		t.Error("unknown category should be invalid")
	}
}

func TestScheduleDue(t *testing.T) {
	now := time.Now()

	past := domain.TestSchedule{Date: now.Add(-time.Minute)}
	if !past.Due(now) {
		t.Error("past schedule should be due")
	}
	future := domain.TestSchedule{Date: now.Add(time.Minute)}
	if future.Due(now) {
		t.Error("future schedule should not be due")
	}
}

func TestScheduleDueAt(t *testing.T) {
	now := time.Now()

	oneShot := domain.TestSchedule{Date: now.Add(-time.Hour)}
	if !oneShot.DueAt(now, time.Time{}) {
		t.Error("one-shot schedule should be due before its first run")
	}
	if oneShot.DueAt(now, now.Add(-time.Minute)) {
		t.Error("one-shot schedule must not be due again after running")
	}

	hourly := domain.TestSchedule{Date: now.Add(-time.Hour), Frequency: "hourly"}
	if hourly.DueAt(now, now.Add(-time.Minute)) {
		t.Error("recurring schedule must wait out its interval")
	}
	if !hourly.DueAt(now, now.Add(-2*time.Hour)) {
		t.Error("recurring schedule should be due once its interval has elapsed")
	}

	future := domain.TestSchedule{Date: now.Add(time.Hour), Frequency: "hourly"}
	if future.DueAt(now, time.Time{}) {
		t.Error("nothing is due before its date")
	}
}

func TestScheduleRunInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"hourly": time.Hour,
		"Daily":  24 * time.Hour,
		"weekly": 7 * 24 * time.Hour,
		"once":   0,
		"":       0,
	}
	for frequency, want := range cases {
		s := domain.TestSchedule{Frequency: frequency}
		if got := s.RunInterval(); got != want {
			t.Errorf("frequency %q: expected interval %v, got %v", frequency, want, got)
		}
	}
}

func TestIncidentOpen(t *testing.T) {
	open := domain.Incident{Status: domain.IncidentInvestigating}
	if !open.Open() {
		t.Error("investigating incident should count as open")
	}
	resolved := domain.Incident{Status: domain.IncidentResolved}
	if resolved.Open() {
		t.Error("resolved incident should not count as open")
	}
}
