package perm

import "sync"

// Registry maps roles to their granted permission sets. It is loaded once
// at process start and never mutated afterwards, so lookups are safe from
// any number of goroutines without synchronization.
type Registry struct {
	roles  map[string]Role
	grants map[string]Set
}

// NewRegistry builds a registry from explicit role and grant tables.
// Intended for tests and for installations with customised roles.
func NewRegistry(roles []Role, grants map[string][]Permission) *Registry {
	r := &Registry{
		roles:  make(map[string]Role, len(roles)),
		grants: make(map[string]Set, len(grants)),
	}
	for _, role := range roles {
		r.roles[role.ID] = role
	}
	for roleID, perms := range grants {
		r.grants[roleID] = newSet(perms...)
	}
	return r
}

// builtinGrants mirrors the default roles_permissions seed data.
var builtinGrants = map[string][]Permission{
	RoleUser: {
		IssueCreate,
		IssueComment,
	},
	RoleDeveloper: {
		IssueCreate,
		IssueComment,
		IssueModify,
		IssueViewLockedQuote,
	},
	RoleManager: {
		ProjectCreate,
		ProjectModify,
		IssueCreate,
		IssueComment,
		IssueModify,
		IssueLockQuote,
		IssueViewLockedQuote,
	},
	RoleAdministrator: {
		ProjectAll,
		IssueCreate,
		IssueComment,
		IssueModify,
		IssueLockQuote,
		IssueViewLockedQuote,
		Administration,
	},
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry with the built-in roles.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(BuiltinRoles, builtinGrants)
	})
	return defaultRegistry
}

// Granted returns the permission set for the given role. An unknown role
// resolves to the empty set, never an error.
func (r *Registry) Granted(roleID string) Set {
	if r == nil {
		return nil
	}
	return r.grants[roleID]
}

// Role returns the role record for the given identifier.
func (r *Registry) Role(roleID string) (Role, bool) {
	if r == nil {
		return Role{}, false
	}
	role, ok := r.roles[roleID]
	return role, ok
}

// Rank returns the ordinal rank for the role, or zero for an unknown role.
func (r *Registry) Rank(roleID string) int {
	role, ok := r.Role(roleID)
	if !ok {
		return 0
	}
	return role.Rank
}
