package perm

import (
	"reflect"
	"sort"
	"testing"
)

func TestDefaultRegistryStable(t *testing.T) {
	reg := Default()
	for _, role := range BuiltinRoles {
		first := reg.Granted(role.ID).List()
		second := reg.Granted(role.ID).List()
		sort.Slice(first, func(i, j int) bool { return first[i] < first[j] })
		sort.Slice(second, func(i, j int) bool { return second[i] < second[j] })
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("grants for %s changed between calls: %v vs %v", role.ID, first, second)
		}
	}
	if Default() != reg {
		t.Fatal("Default must return the same registry instance")
	}
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	reg := Default()
	set := reg.Granted("no-such-role")
	if len(set) != 0 {
		t.Fatalf("unknown role granted %v", set.List())
	}
	if set.Has(IssueComment) {
		t.Fatal("unknown role must not hold any permission")
	}
	if reg.Rank("no-such-role") != 0 {
		t.Fatal("unknown role must rank zero")
	}
}

func TestProjectAllSupersedes(t *testing.T) {
	reg := NewRegistry(BuiltinRoles, map[string][]Permission{
		RoleAdministrator: {ProjectAll},
	})
	set := reg.Granted(RoleAdministrator)
	if !set.Has(ProjectAll) {
		t.Fatal("project-all missing")
	}
	if !set.Has(ProjectModify) {
		t.Fatal("project-all must satisfy project-modify")
	}
	if !set.Has(ProjectCreate) {
		t.Fatal("project-all must satisfy project-create")
	}
	if set.Has(IssueModify) {
		t.Fatal("project-all must not leak into the issue family")
	}
}

func TestBuiltinGrants(t *testing.T) {
	tests := []struct {
		role string
		perm Permission
		want bool
	}{
		{RoleUser, IssueComment, true},
		{RoleUser, IssueModify, false},
		{RoleUser, ProjectModify, false},
		{RoleDeveloper, IssueModify, true},
		{RoleDeveloper, IssueLockQuote, false},
		{RoleManager, ProjectModify, true},
		{RoleManager, IssueLockQuote, true},
		{RoleManager, Administration, false},
		{RoleAdministrator, ProjectModify, true},
		{RoleAdministrator, Administration, true},
	}
	reg := Default()
	for _, tt := range tests {
		if got := reg.Granted(tt.role).Has(tt.perm); got != tt.want {
			t.Errorf("Granted(%s).Has(%s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
