package perm

// Permission is a fine-grained capability granted through a role.
type Permission string

const (
	ProjectCreate        Permission = "project-create"
	ProjectModify        Permission = "project-modify"
	ProjectAll           Permission = "project-all"
	IssueCreate          Permission = "issue-create"
	IssueComment         Permission = "issue-comment"
	IssueModify          Permission = "issue-modify"
	IssueLockQuote       Permission = "issue-lock-quote"
	IssueViewLockedQuote Permission = "issue-view-locked-quote"
	Administration       Permission = "administration"
)

// Role groups permissions and carries an ordinal rank used for
// "at least as privileged as" comparisons (tag role limits).
type Role struct {
	ID   string
	Name string
	Rank int
}

// Built-in role identifiers.
const (
	RoleUser          = "user"
	RoleDeveloper     = "developer"
	RoleManager       = "manager"
	RoleAdministrator = "administrator"
)

// BuiltinRoles lists the default roles in rank order.
var BuiltinRoles = []Role{
	{ID: RoleUser, Name: "User", Rank: 1},
	{ID: RoleDeveloper, Name: "Developer", Rank: 2},
	{ID: RoleManager, Name: "Manager", Rank: 3},
	{ID: RoleAdministrator, Name: "Administrator", Rank: 4},
}

// Set is an immutable collection of granted permissions.
type Set map[Permission]struct{}

// Has reports whether the set grants perm. The wildcard of a resource
// family supersedes its narrower flags: a role holding project-all also
// passes checks for project-create and project-modify.
func (s Set) Has(p Permission) bool {
	if _, ok := s[p]; ok {
		return true
	}
	switch p {
	case ProjectCreate, ProjectModify:
		_, ok := s[ProjectAll]
		return ok
	}
	return false
}

// List returns the granted permissions. The order is unspecified.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

func newSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}
