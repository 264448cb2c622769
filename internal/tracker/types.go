package tracker

import (
	"errors"
	"time"

	"tinytrack.org/internal/notify"
)

// Visibility controls who may see a project and its issues.
type Visibility int

const (
	// VisibilityPublic projects are viewable without membership when the
	// installation enables public project access.
	VisibilityPublic Visibility = 0
	// VisibilityPrivate projects are viewable by members only.
	VisibilityPrivate Visibility = 1
	// VisibilityInternal projects additionally hide issues from base-role
	// members who did not create them.
	VisibilityInternal Visibility = 2
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus int

const (
	ProjectArchived ProjectStatus = 0
	ProjectOpen     ProjectStatus = 1
)

// IssueStatus is the lifecycle state of an issue.
type IssueStatus int

const (
	IssueClosed IssueStatus = 0
	IssueOpen   IssueStatus = 1
)

// User is a tracker account. Soft-deleted users keep their rows for audit
// attribution but are excluded from recipient computation and every
// permission check denies them.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstname"`
	LastName  string     `json:"lastname"`
	RoleID    string            `json:"role_id"`
	Deleted   bool              `json:"deleted"`
	Notify    notify.Preference `json:"notify"`
	// PasswordHash never leaves the server.
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins the user's name parts for display.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Member is a user's membership in a project. RoleID optionally overrides
// the user's global role inside this project; Notify overrides the user's
// global notification preference.
type Member struct {
	UserID    string            `json:"user_id"`
	RoleID    string            `json:"role_id,omitempty"`
	Notify    notify.Preference `json:"notify,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Project is a container of issues and notes.
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Visibility      Visibility    `json:"visibility"`
	Status          ProjectStatus `json:"status"`
	DefaultAssignee string        `json:"default_assignee,omitempty"`
	Members         []Member      `json:"members"`
	// KanbanTagIDs is the ordered list of status tags shown as board columns.
	KanbanTagIDs []string  `json:"kanban_tag_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsMember reports whether the user belongs to the project.
func (p Project) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberNotify resolves the notification preference for a member,
// falling back to the user's global preference when the membership does
// not override it.
func (p Project) MemberNotify(u User) notify.Preference {
	for _, m := range p.Members {
		if m.UserID == u.ID && m.Notify != "" {
			return m.Notify
		}
	}
	if u.Notify != "" {
		return u.Notify
	}
	return notify.PrefAll
}

// MemberRole resolves the effective role of a member inside the project.
func (p Project) MemberRole(u User) string {
	for _, m := range p.Members {
		if m.UserID == u.ID && m.RoleID != "" {
			return m.RoleID
		}
	}
	return u.RoleID
}

// IsPrivateInternal reports whether the project restricts issue visibility
// for base-role members.
func (p Project) IsPrivateInternal() bool { return p.Visibility == VisibilityInternal }

// Tag labels issues. A tag with ParentID zero is a group (e.g. "type")
// owning child tags (e.g. "bug", "feature"). RoleLimit, when positive,
// is the minimum role rank required to apply the tag; issues carrying it
// become read-only to lower-ranked creators.
type Tag struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	BgColor   string    `json:"bgcolor,omitempty"`
	RoleLimit int       `json:"role_limit,omitempty"`
	Group     bool      `json:"group"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Built-in tag group names.
const (
	TagGroupStatus     = "status"
	TagGroupType       = "type"
	TagGroupResolution = "resolution"
)

// Issue is a project issue with its eager-loaded relations.
type Issue struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Status     IssueStatus `json:"status"`
	CreatedBy  string      `json:"created_by"`
	UpdatedBy  string      `json:"updated_by,omitempty"`
	AssignedTo string      `json:"assigned_to,omitempty"`
	ClosedBy   string      `json:"closed_by,omitempty"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	// TimeQuote is the estimated time allocation in seconds.
	TimeQuote int64 `json:"time_quote"`
	// LockQuote hides the quote from users without issue-view-locked-quote.
	LockQuote bool      `json:"lock_quote"`
	Tags      []Tag     `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Project is the owning project, loaded alongside the issue.
	Project Project `json:"-"`
}

// IsOpen reports whether the issue is open.
func (i Issue) IsOpen() bool { return i.Status == IssueOpen }

// IsCreatedBy reports whether the user created the issue.
func (i Issue) IsCreatedBy(userID string) bool {
	return userID != "" && i.CreatedBy == userID
}

// HasQuote reports whether a time quote is set.
func (i Issue) HasQuote() bool { return i.TimeQuote > 0 }

// Comment is a discussion entry on an issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	ProjectID string    `json:"project_id"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a free-form project document.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound     = errors.New("tracker: not found")
	ErrInvalidInput = errors.New("tracker: invalid input")
	ErrAccessDenied = errors.New("tracker: access denied")
	ErrArchived     = errors.New("tracker: project archived")
)
