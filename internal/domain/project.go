package domain

// Member roles within a project. Exactly the creator starts as owner;
// everyone added afterwards is a member unless invited as owner.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// ValidRole reports whether role is one of the recognised membership roles.
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleMember
}

// Category is an integration category: a fixed grouping a project can connect
// external tools under.
type Category string

// The fixed set of integration categories.
const (
	CategoryProject       Category = "project"
	CategoryObservability Category = "observability"
	CategoryCloud         Category = "cloud"
	CategoryEditor        Category = "editor"
)

// Categories lists every valid integration category.
func Categories() []Category {
	return []Category{CategoryProject, CategoryObservability, CategoryCloud, CategoryEditor}
}

// ValidCategory reports whether c is a member of the fixed category set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryProject, CategoryObservability, CategoryCloud, CategoryEditor:
		return true
	}
	return false
}

// Integrations maps a category to the tool IDs connected under it. It is the
// sole collection the client mutates directly, via category-keyed PATCH: only
// the categories present in an update are replaced.
type Integrations map[Category][]string

// Clone returns a deep copy. Optimistic editing snapshots rely on this being
// exact, including empty (non-nil) tool slices.
func (in Integrations) Clone() Integrations {
	if in == nil {
		return nil
	}
	out := make(Integrations, len(in))
	for cat, tools := range in {
		cp := make([]string, len(tools))
		copy(cp, tools)
		out[cat] = cp
	}
	return out
}

// Merge applies a category-keyed partial update: every category present in
// patch replaces the corresponding entry, other categories are untouched.
// Applying the same patch twice yields the same result as applying it once.
func (in Integrations) Merge(patch Integrations) Integrations {
	out := in.Clone()
	if out == nil {
		out = make(Integrations, len(patch))
	}
	for cat, tools := range patch {
		cp := make([]string, len(tools))
		copy(cp, tools)
		out[cat] = cp
	}
	return out
}

// ProjectMember is a membership record on a project.
type ProjectMember struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Project is a team workspace. Owned server-side by the creating account.
type Project struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ColorScheme  string          `json:"color_scheme"`
	OwnerID      string          `json:"owner_id,omitempty"`
	Members      []ProjectMember `json:"members"`
	Integrations Integrations    `json:"integrations"`
}

// RoleOf returns the role the given email holds on the project, or "" when the
// email is not a member.
func (p *Project) RoleOf(email string) string {
	for _, m := range p.Members {
		if m.Email == email {
			return m.Role
		}
	}
	return ""
}

// CreateProjectRequest is the body for POST /projects/.
type CreateProjectRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ColorScheme  string          `json:"color_scheme"`
	Members      []ProjectMember `json:"members,omitempty"`
	Integrations Integrations    `json:"integrations,omitempty"`
}

// InviteRequest is the body for POST /projects/{id}/invite.
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IntegrationsEnvelope wraps the integrations map on the wire for both the
// GET response and the PATCH request body.
type IntegrationsEnvelope struct {
	Integrations Integrations `json:"integrations"`
}
