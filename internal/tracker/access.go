package tracker

import (
	"tinytrack.org/internal/obs"
	"tinytrack.org/internal/perm"
)

// Settings carries installation-wide toggles consulted by the evaluator.
type Settings struct {
	// PublicProjects enables anonymous read access to public projects.
	PublicProjects bool
}

// Evaluator answers whether a user may see or modify tracker resources.
// Every decision is a pure function over the inputs: absence of permission
// is expressed as false, never as an error, and the caller is responsible
// for translating a deny into an access-denied response. The evaluator
// holds only immutable state and is safe for concurrent use.
type Evaluator struct {
	reg      *perm.Registry
	settings Settings
}

// NewEvaluator constructs an evaluator. A nil registry falls back to the
// built-in role grants.
func NewEvaluator(reg *perm.Registry, settings Settings) *Evaluator {
	if reg == nil {
		reg = perm.Default()
	}
	return &Evaluator{reg: reg, settings: settings}
}

// granted resolves the permission set for a user acting inside a project,
// honouring the membership role override. Deleted users resolve to no
// permissions at all.
func (e *Evaluator) granted(u User, p Project) perm.Set {
	if u.Deleted {
		return nil
	}
	return e.reg.Granted(p.MemberRole(u))
}

// CanViewProject reports whether the user may see the project. True when
// the project is public and public access is enabled, or when the user is
// a member.
func (e *Evaluator) CanViewProject(u User, p Project) bool {
	allowed := e.canViewProject(u, p)
	obs.AuthzDecision("project-view", allowed)
	return allowed
}

func (e *Evaluator) canViewProject(u User, p Project) bool {
	if u.Deleted {
		return false
	}
	if p.Visibility == VisibilityPublic && e.settings.PublicProjects {
		return true
	}
	return p.IsMember(u.ID)
}

// CanEditProject reports whether the user may modify the project. Holding
// project-all satisfies the narrower project-modify.
func (e *Evaluator) CanEditProject(u User, p Project) bool {
	allowed := e.granted(u, p).Has(perm.ProjectModify)
	obs.AuthzDecision("project-edit", allowed)
	return allowed
}

// CanCreateProject reports whether the user may create new projects.
func (e *Evaluator) CanCreateProject(u User) bool {
	if u.Deleted {
		return false
	}
	return e.reg.Granted(u.RoleID).Has(perm.ProjectCreate)
}

// CanViewIssue reports whether the user may see the issue. An internal
// project hides issues from base-role members who did not create them;
// non-members are always denied.
func (e *Evaluator) CanViewIssue(u User, issue Issue) bool {
	allowed := e.canViewIssue(u, issue)
	obs.AuthzDecision("issue-view", allowed)
	return allowed
}

func (e *Evaluator) canViewIssue(u User, issue Issue) bool {
	if u.Deleted {
		return false
	}
	p := issue.Project
	if p.IsPrivateInternal() && e.isBaseRole(u, p) && !issue.IsCreatedBy(u.ID) {
		return false
	}
	if !p.IsMember(u.ID) {
		return false
	}
	return true
}

// CanEditIssue reports whether the user may modify the issue: either the
// creator while no read-only tag is attached, or any viewer holding
// issue-modify.
func (e *Evaluator) CanEditIssue(u User, issue Issue) bool {
	allowed := e.canEditIssue(u, issue)
	obs.AuthzDecision("issue-edit", allowed)
	return allowed
}

func (e *Evaluator) canEditIssue(u User, issue Issue) bool {
	if u.Deleted {
		return false
	}
	if issue.IsCreatedBy(u.ID) && !e.HasReadOnlyTag(u, issue) {
		return true
	}
	return e.canViewIssue(u, issue) && e.granted(u, issue.Project).Has(perm.IssueModify)
}

// HasReadOnlyTag reports whether the issue carries a tag whose role limit
// exceeds the user's role rank. The limit is directional: a tag limited to
// the user's own rank leaves the issue editable.
func (e *Evaluator) HasReadOnlyTag(u User, issue Issue) bool {
	rank := e.reg.Rank(issue.Project.MemberRole(u))
	for _, tag := range issue.Tags {
		if tag.RoleLimit > 0 && tag.RoleLimit > rank {
			return true
		}
	}
	return false
}

// CanViewQuote reports whether the user may see the issue's time quote:
// a quote must be set, and a locked quote additionally requires
// issue-view-locked-quote.
func (e *Evaluator) CanViewQuote(u User, issue Issue) bool {
	if u.ID == "" || u.Deleted {
		return false
	}
	if !issue.HasQuote() {
		return false
	}
	return !issue.LockQuote || e.granted(u, issue.Project).Has(perm.IssueViewLockedQuote)
}

// editPermissions route Can to the edit check; everything else routes to
// the view check.
var editPermissions = map[perm.Permission]struct{}{
	perm.ProjectCreate:  {},
	perm.ProjectModify:  {},
	perm.IssueComment:   {},
	perm.IssueModify:    {},
	perm.IssueLockQuote: {},
}

// Can reports whether the user may perform the action identified by the
// permission on the resource, without the caller re-deriving the edit/view
// classification at each call site.
func (e *Evaluator) Can(p perm.Permission, u User, res Resource) bool {
	if res == nil {
		return false
	}
	if _, ok := editPermissions[p]; ok {
		return res.allowEdit(e, u)
	}
	return res.allowView(e, u)
}

// IsAdmin reports whether the user's global role carries the
// administration permission.
func (e *Evaluator) IsAdmin(u User) bool {
	if u.Deleted {
		return false
	}
	return e.reg.Granted(u.RoleID).Has(perm.Administration)
}

func (e *Evaluator) isBaseRole(u User, p Project) bool {
	return p.MemberRole(u) == perm.RoleUser
}

// Resource is an access-controlled entity. Projects and issues implement
// it distinctly; the evaluator's Can dispatches through it.
type Resource interface {
	allowView(e *Evaluator, u User) bool
	allowEdit(e *Evaluator, u User) bool
}

// ProjectResource adapts a project for generic permission checks.
type ProjectResource struct {
	Project Project
}

func (r ProjectResource) allowView(e *Evaluator, u User) bool {
	return e.canViewProject(u, r.Project)
}

func (r ProjectResource) allowEdit(e *Evaluator, u User) bool {
	return e.granted(u, r.Project).Has(perm.ProjectModify)
}

// IssueResource adapts an issue for generic permission checks.
type IssueResource struct {
	Issue Issue
}

func (r IssueResource) allowView(e *Evaluator, u User) bool {
	return e.canViewIssue(u, r.Issue)
}

func (r IssueResource) allowEdit(e *Evaluator, u User) bool {
	return e.canEditIssue(u, r.Issue)
}
