package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/ids"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/perm"
	"tinytrack.org/internal/stream"
)

// Service orchestrates tracker operations. Every mutating call follows the
// same explicit sequence: authorize, mutate, record the activity, fan out
// notifications. An activity write failure aborts the operation and
// surfaces; a fan-out failure surfaces too, but entries already committed
// for earlier recipients stay in the queue.
type Service struct {
	eval     *Evaluator
	users    UserStore
	projects ProjectStore
	issues   IssueStore
	comments CommentStore
	notes    NoteStore
	tags     TagStore
	recorder *activity.Recorder
	fanout   *notify.Fanout
	stream   *stream.Stream
	now      func() time.Time
}

// Deps bundles the service's collaborators.
type Deps struct {
	Evaluator *Evaluator
	Users     UserStore
	Projects  ProjectStore
	Issues    IssueStore
	Comments  CommentStore
	Notes     NoteStore
	Tags      TagStore
	Recorder  *activity.Recorder
	Fanout    *notify.Fanout
	// Stream is optional; when set, recorded activities are broadcast to
	// live feed subscribers.
	Stream *stream.Stream
}

// NewService constructs the orchestration service. All dependencies are
// required.
func NewService(d Deps) (*Service, error) {
	if d.Evaluator == nil || d.Users == nil || d.Projects == nil || d.Issues == nil ||
		d.Comments == nil || d.Notes == nil || d.Tags == nil || d.Recorder == nil || d.Fanout == nil {
		return nil, fmt.Errorf("%w: all service dependencies are required", ErrInvalidInput)
	}
	return &Service{
		eval:     d.Evaluator,
		users:    d.Users,
		projects: d.Projects,
		issues:   d.Issues,
		comments: d.Comments,
		notes:    d.Notes,
		tags:     d.Tags,
		recorder: d.Recorder,
		fanout:   d.Fanout,
		stream:   d.Stream,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// record appends the activity and broadcasts it to live subscribers.
func (s *Service) record(ctx context.Context, t activity.Type, projectID, itemID, actorID, actionID string) (activity.Activity, error) {
	act, err := s.recorder.Record(ctx, t, projectID, itemID, actorID, actionID)
	if err != nil {
		return activity.Activity{}, err
	}
	if s.stream != nil {
		s.stream.Publish(stream.Event{Activity: act})
	}
	return act, nil
}

// Evaluator exposes the access evaluator for boundary layers that need
// read-side checks without going through a mutating operation.
func (s *Service) Evaluator() *Evaluator { return s.eval }

// ---- projects ----

// CreateProjectInput carries the fields of a new project.
type CreateProjectInput struct {
	Name            string
	Visibility      Visibility
	DefaultAssignee string
	MemberIDs       []string
}

// CreateProject creates a project with the actor as its first member.
func (s *Service) CreateProject(ctx context.Context, actor User, in CreateProjectInput) (Project, error) {
	if !s.eval.CanCreateProject(actor) {
		return Project{}, ErrAccessDenied
	}
	if strings.TrimSpace(in.Name) == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	ts := s.now()
	p := Project{
		ID:              ids.New(),
		Name:            strings.TrimSpace(in.Name),
		Visibility:      in.Visibility,
		Status:          ProjectOpen,
		DefaultAssignee: in.DefaultAssignee,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	p.Members = append(p.Members, Member{UserID: actor.ID, CreatedAt: ts})
	for _, id := range in.MemberIDs {
		if id == "" || id == actor.ID || p.IsMember(id) {
			continue
		}
		p.Members = append(p.Members, Member{UserID: id, CreatedAt: ts})
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// UpdateProjectInput carries editable project fields.
type UpdateProjectInput struct {
	Name            string
	Visibility      *Visibility
	DefaultAssignee *string
	KanbanTagIDs    []string
}

// UpdateProject applies the given changes to the project.
func (s *Service) UpdateProject(ctx context.Context, actor User, projectID string, in UpdateProjectInput) (Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if !s.eval.CanEditProject(actor, p) {
		return Project{}, ErrAccessDenied
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if in.DefaultAssignee != nil {
		p.DefaultAssignee = *in.DefaultAssignee
	}
	if in.KanbanTagIDs != nil {
		p.KanbanTagIDs = in.KanbanTagIDs
	}
	p.UpdatedAt = s.now()
	if err := s.projects.Update(ctx, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// ArchiveProject closes the project for new work. Archived projects keep
// their data and can be reopened.
func (s *Service) ArchiveProject(ctx context.Context, actor User, projectID string) error {
	return s.setProjectStatus(ctx, actor, projectID, ProjectArchived)
}

// ReopenProject brings an archived project back.
func (s *Service) ReopenProject(ctx context.Context, actor User, projectID string) error {
	return s.setProjectStatus(ctx, actor, projectID, ProjectOpen)
}

func (s *Service) setProjectStatus(ctx context.Context, actor User, projectID string, status ProjectStatus) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.eval.CanEditProject(actor, p) {
		return ErrAccessDenied
	}
	if p.Status == status {
		return nil
	}
	p.Status = status
	p.UpdatedAt = s.now()
	return s.projects.Update(ctx, p)
}

// DeleteProject removes a project and everything hanging off it: issues,
// comments, notes, the activity trail and any queued notifications.
func (s *Service) DeleteProject(ctx context.Context, actor User, projectID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.eval.granted(actor, p).Has(perm.ProjectAll) {
		return ErrAccessDenied
	}

	issues, err := s.issues.ListForProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, is := range issues {
		if err := s.comments.DeleteForIssue(ctx, is.ID); err != nil {
			return err
		}
		if err := s.fanout.DeleteForTarget(ctx, notify.TargetIssue, is.ID); err != nil {
			return err
		}
	}
	notes, err := s.notes.ListForProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if err := s.fanout.DeleteForTarget(ctx, notify.TargetNote, n.ID); err != nil {
			return err
		}
	}
	if err := s.issues.DeleteForProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.notes.DeleteForProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.recorder.DeleteForProject(ctx, projectID); err != nil {
		return err
	}
	return s.projects.Delete(ctx, projectID)
}

// GetProject returns the project if the actor may view it.
func (s *Service) GetProject(ctx context.Context, actor User, projectID string) (Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if !s.eval.CanViewProject(actor, p) {
		return Project{}, ErrAccessDenied
	}
	return p, nil
}

// ListProjects returns the projects visible to the actor.
func (s *Service) ListProjects(ctx context.Context, actor User) ([]Project, error) {
	all, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Project, 0, len(all))
	for _, p := range all {
		if s.eval.CanViewProject(actor, p) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// AddMember adds a user to the project.
func (s *Service) AddMember(ctx context.Context, actor User, projectID string, m Member) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.eval.CanEditProject(actor, p) {
		return ErrAccessDenied
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if p.IsMember(m.UserID) {
		return nil
	}
	m.CreatedAt = s.now()
	return s.projects.AddMember(ctx, projectID, m)
}

// RemoveMember removes a user from the project.
func (s *Service) RemoveMember(ctx context.Context, actor User, projectID, userID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !s.eval.CanEditProject(actor, p) {
		return ErrAccessDenied
	}
	return s.projects.RemoveMember(ctx, projectID, userID)
}

// SetMemberNotify stores a member's per-project notification preference.
// Members may change their own preference; changing someone else's requires
// project edit rights.
func (s *Service) SetMemberNotify(ctx context.Context, actor User, projectID, userID string, pref notify.Preference) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if actor.ID != userID && !s.eval.CanEditProject(actor, p) {
		return ErrAccessDenied
	}
	if !p.IsMember(userID) {
		return fmt.Errorf("%w: user %s is not a member", ErrNotFound, userID)
	}
	switch pref {
	case notify.PrefNone, notify.PrefOwn, notify.PrefAll:
	default:
		return fmt.Errorf("%w: unknown notification preference %q", ErrInvalidInput, pref)
	}
	return s.projects.SetMemberNotify(ctx, projectID, userID, string(pref))
}

// ---- issues ----

// CreateIssueInput carries the fields of a new issue.
type CreateIssueInput struct {
	Title      string
	Body       string
	AssignedTo string
	TimeQuote  int64
	TagIDs     []string
}

// CreateIssue opens a new issue in the project. An empty assignee falls
// back to the project's default assignee.
func (s *Service) CreateIssue(ctx context.Context, actor User, projectID string, in CreateIssueInput) (Issue, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Issue{}, err
	}
	if !s.eval.Can(perm.IssueCreate, actor, ProjectResource{Project: p}) {
		return Issue{}, ErrAccessDenied
	}
	if p.Status == ProjectArchived {
		return Issue{}, ErrArchived
	}
	if strings.TrimSpace(in.Title) == "" {
		return Issue{}, fmt.Errorf("%w: issue title is required", ErrInvalidInput)
	}
	assignee := in.AssignedTo
	if assignee == "" {
		assignee = p.DefaultAssignee
	}
	ts := s.now()
	is := Issue{
		ID:         ids.New(),
		ProjectID:  p.ID,
		Title:      strings.TrimSpace(in.Title),
		Body:       in.Body,
		Status:     IssueOpen,
		CreatedBy:  actor.ID,
		AssignedTo: assignee,
		TimeQuote:  in.TimeQuote,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		Project:    p,
	}
	if len(in.TagIDs) > 0 {
		tags, err := s.resolveTags(ctx, actor, p, in.TagIDs)
		if err != nil {
			return Issue{}, err
		}
		is.Tags = tags
	}
	if err := s.issues.Create(ctx, is); err != nil {
		return Issue{}, err
	}
	if len(in.TagIDs) > 0 {
		if err := s.issues.SetTags(ctx, is.ID, in.TagIDs); err != nil {
			return Issue{}, err
		}
	}
	act, err := s.record(ctx, activity.TypeIssueCreated, p.ID, is.ID, actor.ID, assignee)
	if err != nil {
		return Issue{}, err
	}
	if err := s.fanOutIssue(ctx, act, p, is); err != nil {
		return is, err
	}
	return is, nil
}

// GetIssue returns the issue if the actor may view it. The quote fields
// are blanked when the actor may not see them.
func (s *Service) GetIssue(ctx context.Context, actor User, issueID string) (Issue, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	if !s.eval.CanViewIssue(actor, is) {
		return Issue{}, ErrAccessDenied
	}
	if is.HasQuote() && !s.eval.CanViewQuote(actor, is) {
		is.TimeQuote = 0
	}
	return is, nil
}

// ListIssues returns the project's issues the actor may view.
func (s *Service) ListIssues(ctx context.Context, actor User, projectID string) ([]Issue, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanViewProject(actor, p) {
		return nil, ErrAccessDenied
	}
	all, err := s.issues.ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	visible := make([]Issue, 0, len(all))
	for _, is := range all {
		is.Project = p
		if !s.eval.CanViewIssue(actor, is) {
			continue
		}
		if is.HasQuote() && !s.eval.CanViewQuote(actor, is) {
			is.TimeQuote = 0
		}
		visible = append(visible, is)
	}
	return visible, nil
}

// ReassignIssue hands the issue to another member and notifies.
func (s *Service) ReassignIssue(ctx context.Context, actor User, issueID, assigneeID string) (Issue, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	if !s.eval.CanEditIssue(actor, is) {
		return Issue{}, ErrAccessDenied
	}
	if assigneeID != "" && !is.Project.IsMember(assigneeID) {
		return Issue{}, fmt.Errorf("%w: assignee must be a project member", ErrInvalidInput)
	}
	if is.AssignedTo == assigneeID {
		return is, nil
	}
	is.AssignedTo = assigneeID
	is.UpdatedBy = actor.ID
	is.UpdatedAt = s.now()
	if err := s.issues.Update(ctx, is); err != nil {
		return Issue{}, err
	}
	act, err := s.record(ctx, activity.TypeIssueReassigned, is.ProjectID, is.ID, actor.ID, assigneeID)
	if err != nil {
		return Issue{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return is, err
	}
	return is, nil
}

// CloseIssue closes an open issue.
func (s *Service) CloseIssue(ctx context.Context, actor User, issueID string) (Issue, error) {
	return s.setIssueStatus(ctx, actor, issueID, IssueClosed, activity.TypeIssueClosed)
}

// ReopenIssue reopens a closed issue.
func (s *Service) ReopenIssue(ctx context.Context, actor User, issueID string) (Issue, error) {
	return s.setIssueStatus(ctx, actor, issueID, IssueOpen, activity.TypeIssueReopened)
}

func (s *Service) setIssueStatus(ctx context.Context, actor User, issueID string, status IssueStatus, t activity.Type) (Issue, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	if !s.eval.CanEditIssue(actor, is) {
		return Issue{}, ErrAccessDenied
	}
	if is.Status == status {
		return Issue{}, fmt.Errorf("%w: issue already in requested state", ErrInvalidInput)
	}
	ts := s.now()
	is.Status = status
	is.UpdatedBy = actor.ID
	is.UpdatedAt = ts
	if status == IssueClosed {
		is.ClosedBy = actor.ID
		is.ClosedAt = &ts
	} else {
		is.ClosedBy = ""
		is.ClosedAt = nil
	}
	if err := s.issues.Update(ctx, is); err != nil {
		return Issue{}, err
	}
	act, err := s.record(ctx, t, is.ProjectID, is.ID, actor.ID, "")
	if err != nil {
		return Issue{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return is, err
	}
	return is, nil
}

// UpdateTags replaces the issue's tag set. Applying a role-limited tag
// requires the actor's effective rank to meet the limit.
func (s *Service) UpdateTags(ctx context.Context, actor User, issueID string, tagIDs []string) (Issue, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	if !s.eval.CanEditIssue(actor, is) {
		return Issue{}, ErrAccessDenied
	}
	tags, err := s.resolveTags(ctx, actor, is.Project, tagIDs)
	if err != nil {
		return Issue{}, err
	}
	if err := s.issues.SetTags(ctx, is.ID, tagIDs); err != nil {
		return Issue{}, err
	}
	is.Tags = tags
	is.UpdatedBy = actor.ID
	is.UpdatedAt = s.now()
	if err := s.issues.Update(ctx, is); err != nil {
		return Issue{}, err
	}
	act, err := s.record(ctx, activity.TypeTagsUpdated, is.ProjectID, is.ID, actor.ID, "")
	if err != nil {
		return Issue{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return is, err
	}
	return is, nil
}

// resolveTags loads and validates a tag selection: every id must exist,
// reference a non-group tag, and any role limit must be within the actor's
// effective rank.
func (s *Service) resolveTags(ctx context.Context, actor User, p Project, tagIDs []string) ([]Tag, error) {
	tags, err := s.tags.GetMany(ctx, tagIDs)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, fmt.Errorf("%w: unknown tag in selection", ErrNotFound)
	}
	rank := s.eval.reg.Rank(p.MemberRole(actor))
	for _, t := range tags {
		if t.Group {
			return nil, fmt.Errorf("%w: tag group %s cannot be applied directly", ErrInvalidInput, t.Name)
		}
		if t.RoleLimit > 0 && t.RoleLimit > rank {
			return nil, fmt.Errorf("%w: tag %s requires a higher role", ErrAccessDenied, t.Name)
		}
	}
	return tags, nil
}

// LockQuote hides the issue's time quote behind issue-view-locked-quote.
func (s *Service) LockQuote(ctx context.Context, actor User, issueID string) (Issue, error) {
	return s.setQuoteLock(ctx, actor, issueID, true, activity.TypeQuoteLocked)
}

// UnlockQuote makes the issue's time quote visible to everyone again.
func (s *Service) UnlockQuote(ctx context.Context, actor User, issueID string) (Issue, error) {
	return s.setQuoteLock(ctx, actor, issueID, false, activity.TypeQuoteUnlocked)
}

func (s *Service) setQuoteLock(ctx context.Context, actor User, issueID string, locked bool, t activity.Type) (Issue, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	// Locking requires the dedicated permission on top of edit rights.
	if !s.eval.granted(actor, is.Project).Has(perm.IssueLockQuote) || !s.eval.CanEditIssue(actor, is) {
		return Issue{}, ErrAccessDenied
	}
	if is.LockQuote == locked {
		return is, nil
	}
	is.LockQuote = locked
	is.UpdatedBy = actor.ID
	is.UpdatedAt = s.now()
	if err := s.issues.Update(ctx, is); err != nil {
		return Issue{}, err
	}
	act, err := s.record(ctx, t, is.ProjectID, is.ID, actor.ID, "")
	if err != nil {
		return Issue{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return is, err
	}
	return is, nil
}

// DeleteIssue removes an issue with its comments, activity trail and
// queued notifications.
func (s *Service) DeleteIssue(ctx context.Context, actor User, issueID string) error {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return err
	}
	if !s.eval.CanEditProject(actor, is.Project) {
		return ErrAccessDenied
	}
	if err := s.comments.DeleteForIssue(ctx, is.ID); err != nil {
		return err
	}
	if err := s.recorder.DeleteForItem(ctx, is.ProjectID, is.ID); err != nil {
		return err
	}
	if err := s.fanout.DeleteForTarget(ctx, notify.TargetIssue, is.ID); err != nil {
		return err
	}
	return s.issues.Delete(ctx, issueID)
}

// ---- comments ----

// CommentOnIssue adds a comment to the issue. Commenting is an edit-class
// action: plain viewers without issue-modify or authorship are denied.
func (s *Service) CommentOnIssue(ctx context.Context, actor User, issueID, body string) (Comment, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Comment{}, err
	}
	if !s.eval.Can(perm.IssueComment, actor, IssueResource{Issue: is}) {
		return Comment{}, ErrAccessDenied
	}
	if strings.TrimSpace(body) == "" {
		return Comment{}, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	ts := s.now()
	c := Comment{
		ID:        ids.New(),
		IssueID:   is.ID,
		ProjectID: is.ProjectID,
		Body:      body,
		CreatedBy: actor.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return Comment{}, err
	}
	act, err := s.record(ctx, activity.TypeIssueCommented, is.ProjectID, is.ID, actor.ID, c.ID)
	if err != nil {
		return Comment{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return c, err
	}
	return c, nil
}

// UpdateComment edits a comment's body. The author may edit their own
// comment; anyone else needs issue edit rights.
func (s *Service) UpdateComment(ctx context.Context, actor User, commentID, body string) (Comment, error) {
	c, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	is, err := s.issues.Get(ctx, c.IssueID)
	if err != nil {
		return Comment{}, err
	}
	if c.CreatedBy != actor.ID && !s.eval.CanEditIssue(actor, is) {
		return Comment{}, ErrAccessDenied
	}
	if strings.TrimSpace(body) == "" {
		return Comment{}, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}
	c.Body = body
	c.UpdatedAt = s.now()
	if err := s.comments.Update(ctx, c); err != nil {
		return Comment{}, err
	}
	act, err := s.record(ctx, activity.TypeCommentUpdated, is.ProjectID, is.ID, actor.ID, c.ID)
	if err != nil {
		return Comment{}, err
	}
	if err := s.fanOutIssue(ctx, act, is.Project, is); err != nil {
		return c, err
	}
	return c, nil
}

// DeleteComment removes a comment and records the deletion on the issue's
// trail.
func (s *Service) DeleteComment(ctx context.Context, actor User, commentID string) error {
	c, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return err
	}
	is, err := s.issues.Get(ctx, c.IssueID)
	if err != nil {
		return err
	}
	if c.CreatedBy != actor.ID && !s.eval.CanEditIssue(actor, is) {
		return ErrAccessDenied
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return err
	}
	_, err = s.record(ctx, activity.TypeCommentDeleted, is.ProjectID, is.ID, actor.ID, c.ID)
	return err
}

// ListComments returns the issue's comments in creation order.
func (s *Service) ListComments(ctx context.Context, actor User, issueID string) ([]Comment, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanViewIssue(actor, is) {
		return nil, ErrAccessDenied
	}
	return s.comments.ListForIssue(ctx, issueID)
}

// ---- notes ----

// AddNote attaches a free-form note to the project.
func (s *Service) AddNote(ctx context.Context, actor User, projectID, body string) (Note, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Note{}, err
	}
	if !p.IsMember(actor.ID) || actor.Deleted {
		return Note{}, ErrAccessDenied
	}
	if p.Status == ProjectArchived {
		return Note{}, ErrArchived
	}
	if strings.TrimSpace(body) == "" {
		return Note{}, fmt.Errorf("%w: note body is required", ErrInvalidInput)
	}
	ts := s.now()
	n := Note{
		ID:        ids.New(),
		ProjectID: p.ID,
		Body:      body,
		CreatedBy: actor.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return Note{}, err
	}
	act, err := s.record(ctx, activity.TypeNoteAdded, p.ID, n.ID, actor.ID, "")
	if err != nil {
		return Note{}, err
	}
	if err := s.fanOutNote(ctx, act, p, n); err != nil {
		return n, err
	}
	return n, nil
}

// UpdateNote edits a note's body. The author may edit their own note;
// anyone else needs project edit rights.
func (s *Service) UpdateNote(ctx context.Context, actor User, noteID, body string) (Note, error) {
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	p, err := s.projects.Get(ctx, n.ProjectID)
	if err != nil {
		return Note{}, err
	}
	if n.CreatedBy != actor.ID && !s.eval.CanEditProject(actor, p) {
		return Note{}, ErrAccessDenied
	}
	if strings.TrimSpace(body) == "" {
		return Note{}, fmt.Errorf("%w: note body is required", ErrInvalidInput)
	}
	n.Body = body
	n.UpdatedAt = s.now()
	if err := s.notes.Update(ctx, n); err != nil {
		return Note{}, err
	}
	act, err := s.record(ctx, activity.TypeNoteUpdated, p.ID, n.ID, actor.ID, "")
	if err != nil {
		return Note{}, err
	}
	if err := s.fanOutNote(ctx, act, p, n); err != nil {
		return n, err
	}
	return n, nil
}

// DeleteNote removes a note. The prior trail for the note is dropped and a
// single deletion entry replaces it, so members still learn the note went
// away while the dead references are gone.
func (s *Service) DeleteNote(ctx context.Context, actor User, noteID string) error {
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return err
	}
	p, err := s.projects.Get(ctx, n.ProjectID)
	if err != nil {
		return err
	}
	if n.CreatedBy != actor.ID && !s.eval.CanEditProject(actor, p) {
		return ErrAccessDenied
	}
	if err := s.notes.Delete(ctx, noteID); err != nil {
		return err
	}
	if err := s.recorder.DeleteForItem(ctx, p.ID, n.ID); err != nil {
		return err
	}
	if err := s.fanout.DeleteForTarget(ctx, notify.TargetNote, n.ID); err != nil {
		return err
	}
	act, err := s.record(ctx, activity.TypeNoteDeleted, p.ID, n.ID, actor.ID, "")
	if err != nil {
		return err
	}
	return s.fanOutNote(ctx, act, p, n)
}

// ListNotes returns the project's notes.
func (s *Service) ListNotes(ctx context.Context, actor User, projectID string) ([]Note, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanViewProject(actor, p) {
		return nil, ErrAccessDenied
	}
	return s.notes.ListForProject(ctx, projectID)
}

// ---- activity feeds ----

// ProjectActivity returns the project's recent activity, newest first.
func (s *Service) ProjectActivity(ctx context.Context, actor User, projectID string, limit int) ([]activity.Activity, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanViewProject(actor, p) {
		return nil, ErrAccessDenied
	}
	return s.recorder.ListForProject(ctx, projectID, limit)
}

// IssueActivity returns the issue's trail in chronological order.
func (s *Service) IssueActivity(ctx context.Context, actor User, issueID string) ([]activity.Activity, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanViewIssue(actor, is) {
		return nil, ErrAccessDenied
	}
	return s.recorder.ListForItem(ctx, is.ProjectID, is.ID)
}

// ---- fan-out candidate computation ----

// fanOutIssue computes the recipient candidates for an issue event and
// enqueues notifications. Candidates are the project's members with their
// effective preference and their relation to the issue resolved.
func (s *Service) fanOutIssue(ctx context.Context, act activity.Activity, p Project, is Issue) error {
	authors, err := s.comments.Authors(ctx, is.ID)
	if err != nil {
		return err
	}
	participated := make(map[string]struct{}, len(authors))
	for _, id := range authors {
		participated[id] = struct{}{}
	}
	candidates := s.memberCandidates(ctx, p, func(c *notify.Candidate) {
		c.Creator = is.IsCreatedBy(c.UserID)
		c.Assignee = is.AssignedTo != "" && is.AssignedTo == c.UserID
		_, c.Participant = participated[c.UserID]
	})
	_, err = s.fanout.Fanout(ctx, act, candidates)
	return err
}

// fanOutNote enqueues notifications for a note event. Notes have no
// assignee or comment thread; authorship is the only relation.
func (s *Service) fanOutNote(ctx context.Context, act activity.Activity, p Project, n Note) error {
	candidates := s.memberCandidates(ctx, p, func(c *notify.Candidate) {
		c.Creator = n.CreatedBy == c.UserID
	})
	_, err := s.fanout.Fanout(ctx, act, candidates)
	return err
}

func (s *Service) memberCandidates(ctx context.Context, p Project, relate func(*notify.Candidate)) []notify.Candidate {
	candidates := make([]notify.Candidate, 0, len(p.Members))
	for _, m := range p.Members {
		u, err := s.users.Get(ctx, m.UserID)
		if err != nil {
			// A membership row pointing at a vanished account must not sink
			// the whole fan-out.
			continue
		}
		c := notify.Candidate{
			UserID:     u.ID,
			Deleted:    u.Deleted,
			Preference: p.MemberNotify(u),
		}
		relate(&c)
		candidates = append(candidates, c)
	}
	return candidates
}
