package tracker

import (
	"testing"

	"tinytrack.org/internal/perm"
)

func testUser(id, role string) User {
	return User{ID: id, RoleID: role}
}

func testProject(vis Visibility, memberIDs ...string) Project {
	p := Project{ID: "p1", Visibility: vis, Status: ProjectOpen}
	for _, id := range memberIDs {
		p.Members = append(p.Members, Member{UserID: id})
	}
	return p
}

func TestCanViewProject(t *testing.T) {
	member := testUser("u1", perm.RoleUser)
	outsider := testUser("u2", perm.RoleManager)

	tests := []struct {
		name string
		eval *Evaluator
		user User
		proj Project
		want bool
	}{
		{"member of private project", NewEvaluator(nil, Settings{}), member, testProject(VisibilityPrivate, "u1"), true},
		{"non-member of private project", NewEvaluator(nil, Settings{}), outsider, testProject(VisibilityPrivate, "u1"), false},
		{"public project with access enabled", NewEvaluator(nil, Settings{PublicProjects: true}), outsider, testProject(VisibilityPublic, "u1"), true},
		{"public project with access disabled", NewEvaluator(nil, Settings{}), outsider, testProject(VisibilityPublic, "u1"), false},
		{"anonymous caller on public project", NewEvaluator(nil, Settings{PublicProjects: true}), User{}, testProject(VisibilityPublic, "u1"), true},
		{"anonymous caller on private project", NewEvaluator(nil, Settings{PublicProjects: true}), User{}, testProject(VisibilityPrivate, "u1"), false},
		{"deleted member denied", NewEvaluator(nil, Settings{}), User{ID: "u1", RoleID: perm.RoleUser, Deleted: true}, testProject(VisibilityPrivate, "u1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eval.CanViewProject(tt.user, tt.proj); got != tt.want {
				t.Fatalf("CanViewProject = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanEditProject(t *testing.T) {
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityPrivate, "u1", "m1", "a1")

	if eval.CanEditProject(testUser("u1", perm.RoleUser), proj) {
		t.Fatal("base role must not edit projects")
	}
	if !eval.CanEditProject(testUser("m1", perm.RoleManager), proj) {
		t.Fatal("manager holds project-modify")
	}
	// project-all supersedes project-modify even when the narrower flag is
	// not granted explicitly.
	reg := perm.NewRegistry(perm.BuiltinRoles, map[string][]perm.Permission{
		perm.RoleAdministrator: {perm.ProjectAll},
	})
	if !NewEvaluator(reg, Settings{}).CanEditProject(testUser("a1", perm.RoleAdministrator), proj) {
		t.Fatal("project-all must pass the project edit check")
	}
}

func TestCanViewIssueInternalProject(t *testing.T) {
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityInternal, "creator", "other", "dev")
	issue := Issue{ID: "i1", ProjectID: proj.ID, CreatedBy: "creator", Status: IssueOpen, Project: proj}

	if !eval.CanViewIssue(testUser("creator", perm.RoleUser), issue) {
		t.Fatal("creator must see own issue in internal project")
	}
	// A different base-role member never sees it, even though membership
	// would otherwise grant access.
	if eval.CanViewIssue(testUser("other", perm.RoleUser), issue) {
		t.Fatal("base-role non-creator must be denied in internal project")
	}
	if !eval.CanViewIssue(testUser("dev", perm.RoleDeveloper), issue) {
		t.Fatal("developer member must see internal issues")
	}
	if eval.CanViewIssue(testUser("stranger", perm.RoleDeveloper), issue) {
		t.Fatal("non-member must be denied")
	}
}

func TestCanViewIssueMembership(t *testing.T) {
	eval := NewEvaluator(nil, Settings{PublicProjects: true})
	proj := testProject(VisibilityPublic, "u1")
	issue := Issue{ID: "i1", ProjectID: proj.ID, CreatedBy: "u1", Project: proj}

	if !eval.CanViewIssue(testUser("u1", perm.RoleUser), issue) {
		t.Fatal("member must see the issue")
	}
	// Issue visibility requires membership regardless of the public
	// project branch on the project itself.
	if eval.CanViewIssue(testUser("u2", perm.RoleUser), issue) {
		t.Fatal("non-member must not see issues")
	}
}

func TestCanEditIssue(t *testing.T) {
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityPrivate, "creator", "dev", "viewer")
	base := Issue{ID: "i1", ProjectID: proj.ID, CreatedBy: "creator", Project: proj}

	restricted := base
	restricted.Tags = []Tag{{ID: "t1", Name: "locked-down", RoleLimit: 3}}

	limitAtRank := base
	limitAtRank.Tags = []Tag{{ID: "t2", Name: "user-ok", RoleLimit: 1}}

	tests := []struct {
		name  string
		user  User
		issue Issue
		want  bool
	}{
		{"creator without issue-modify", testUser("creator", perm.RoleUser), base, true},
		{"creator blocked by read-only tag", testUser("creator", perm.RoleUser), restricted, false},
		{"tag limit equal to rank keeps issue editable", testUser("creator", perm.RoleUser), limitAtRank, true},
		{"manager passes read-only tag", testUser("dev", perm.RoleManager), restricted, true},
		{"developer with issue-modify", testUser("dev", perm.RoleDeveloper), base, true},
		{"member without issue-modify or authorship", testUser("viewer", perm.RoleUser), base, false},
		{"non-member with issue-modify", testUser("stranger", perm.RoleDeveloper), base, false},
		{"deleted creator", User{ID: "creator", RoleID: perm.RoleUser, Deleted: true}, base, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.CanEditIssue(tt.user, tt.issue); got != tt.want {
				t.Fatalf("CanEditIssue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInternalProjectScenario(t *testing.T) {
	// User U (role user) creates issue I in internal project P with no
	// tags: U can view and edit; another base-role member cannot view.
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityInternal, "U", "W")
	issue := Issue{ID: "I", ProjectID: proj.ID, CreatedBy: "U", Status: IssueOpen, Project: proj}

	u := testUser("U", perm.RoleUser)
	w := testUser("W", perm.RoleUser)

	if !eval.CanViewIssue(u, issue) {
		t.Fatal("creator must view")
	}
	if !eval.CanEditIssue(u, issue) {
		t.Fatal("creator must edit")
	}
	if eval.CanViewIssue(w, issue) {
		t.Fatal("other base-role member must not view")
	}
}

func TestCanViewQuote(t *testing.T) {
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityPrivate, "u1", "dev")

	unlocked := Issue{ID: "i1", TimeQuote: 3600, Project: proj}
	locked := Issue{ID: "i2", TimeQuote: 3600, LockQuote: true, Project: proj}
	noQuote := Issue{ID: "i3", Project: proj}

	if !eval.CanViewQuote(testUser("u1", perm.RoleUser), unlocked) {
		t.Fatal("unlocked quote is visible to any user")
	}
	if eval.CanViewQuote(testUser("u1", perm.RoleUser), locked) {
		t.Fatal("locked quote requires issue-view-locked-quote")
	}
	if !eval.CanViewQuote(testUser("dev", perm.RoleDeveloper), locked) {
		t.Fatal("developer holds issue-view-locked-quote")
	}
	if eval.CanViewQuote(testUser("dev", perm.RoleDeveloper), noQuote) {
		t.Fatal("zero quote is never visible")
	}
	if eval.CanViewQuote(User{}, unlocked) {
		t.Fatal("anonymous caller never sees quotes")
	}
}

func TestMemberRoleOverride(t *testing.T) {
	// A membership role override grants project-scoped permissions beyond
	// the user's global role.
	eval := NewEvaluator(nil, Settings{})
	proj := Project{
		ID:         "p1",
		Visibility: VisibilityPrivate,
		Members: []Member{
			{UserID: "u1", RoleID: perm.RoleManager},
		},
	}
	issue := Issue{ID: "i1", ProjectID: proj.ID, CreatedBy: "someone-else", Project: proj}

	if !eval.CanEditProject(testUser("u1", perm.RoleUser), proj) {
		t.Fatal("override to manager must grant project-modify here")
	}
	if !eval.CanEditIssue(testUser("u1", perm.RoleUser), issue) {
		t.Fatal("override to manager must grant issue-modify here")
	}
}

func TestCanDispatch(t *testing.T) {
	eval := NewEvaluator(nil, Settings{})
	proj := testProject(VisibilityPrivate, "creator", "viewer")
	issue := Issue{ID: "i1", ProjectID: proj.ID, CreatedBy: "creator", Project: proj}

	creator := testUser("creator", perm.RoleUser)
	viewer := testUser("viewer", perm.RoleUser)

	tests := []struct {
		name string
		perm perm.Permission
		user User
		res  Resource
		want bool
	}{
		{"issue-comment routes to edit for creator", perm.IssueComment, creator, IssueResource{issue}, true},
		{"issue-comment routes to edit for plain member", perm.IssueComment, viewer, IssueResource{issue}, false},
		{"issue-lock-quote routes to edit", perm.IssueLockQuote, viewer, IssueResource{issue}, false},
		{"view-class permission routes to view", perm.IssueViewLockedQuote, viewer, IssueResource{issue}, true},
		{"project-modify routes to edit", perm.ProjectModify, viewer, ProjectResource{proj}, false},
		{"view-class permission on project", perm.Administration, viewer, ProjectResource{proj}, true},
		{"nil resource denied", perm.IssueComment, creator, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Can(tt.perm, tt.user, tt.res); got != tt.want {
				t.Fatalf("Can(%s) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}
