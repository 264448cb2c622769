package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tinytrack.org/internal/notify"
)

// InMemory implements every tracker store interface over mutex-guarded
// maps. It backs tests and the demo configuration; production uses the
// Postgres stores.
type InMemory struct {
	mu       sync.RWMutex
	users    map[string]User
	projects map[string]Project
	issues   map[string]Issue
	// issueTags keeps the tag selection per issue; the tag rows themselves
	// live in the tags map.
	issueTags map[string][]string
	comments  map[string]Comment
	notes     map[string]Note
	tags      map[string]Tag
}

// NewInMemory returns an empty in-memory store set.
func NewInMemory() *InMemory {
	return &InMemory{
		users:     make(map[string]User),
		projects:  make(map[string]Project),
		issues:    make(map[string]Issue),
		issueTags: make(map[string][]string),
		comments:  make(map[string]Comment),
		notes:     make(map[string]Note),
		tags:      make(map[string]Tag),
	}
}

// ---- UserStore ----

func (m *InMemory) Create(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s exists", ErrInvalidInput, u.ID)
	}
	for _, other := range m.users {
		if other.Email == u.Email {
			return fmt.Errorf("%w: email %s taken", ErrInvalidInput, u.Email)
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *InMemory) Get(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, nil
}

func (m *InMemory) GetByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: user %s", ErrNotFound, email)
}

func (m *InMemory) Update(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, u.ID)
	}
	m.users[u.ID] = u
	return nil
}

func (m *InMemory) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	u.Deleted = true
	m.users[id] = u
	return nil
}

func (m *InMemory) List(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- ProjectStore ----

func (m *InMemory) CreateProject(ctx context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("%w: project %s exists", ErrInvalidInput, p.ID)
	}
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return cloneProject(p), nil
}

func (m *InMemory) UpdateProject(ctx context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.projects[p.ID]
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, p.ID)
	}
	// Membership changes go through AddMember and friends.
	p.Members = prev.Members
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *InMemory) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	delete(m.projects, id)
	return nil
}

func (m *InMemory) ListProjects(ctx context.Context) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) AddMember(ctx context.Context, projectID string, mem Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	if p.IsMember(mem.UserID) {
		return nil
	}
	p.Members = append(p.Members, mem)
	m.projects[projectID] = p
	return nil
}

func (m *InMemory) RemoveMember(ctx context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	kept := p.Members[:0:0]
	for _, mem := range p.Members {
		if mem.UserID != userID {
			kept = append(kept, mem)
		}
	}
	p.Members = kept
	m.projects[projectID] = p
	return nil
}

func (m *InMemory) SetMemberNotify(ctx context.Context, projectID, userID string, pref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	for i, mem := range p.Members {
		if mem.UserID == userID {
			p.Members[i].Notify = notify.Preference(pref)
			m.projects[projectID] = p
			return nil
		}
	}
	return fmt.Errorf("%w: member %s", ErrNotFound, userID)
}

// ---- IssueStore ----

func (m *InMemory) CreateIssue(ctx context.Context, i Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[i.ID]; ok {
		return fmt.Errorf("%w: issue %s exists", ErrInvalidInput, i.ID)
	}
	i.Project = Project{}
	i.Tags = nil
	m.issues[i.ID] = i
	return nil
}

func (m *InMemory) GetIssue(ctx context.Context, id string) (Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.issues[id]
	if !ok {
		return Issue{}, fmt.Errorf("%w: issue %s", ErrNotFound, id)
	}
	return m.hydrateIssue(i), nil
}

// hydrateIssue attaches the owning project and the tag rows; callers hold
// at least the read lock.
func (m *InMemory) hydrateIssue(i Issue) Issue {
	if p, ok := m.projects[i.ProjectID]; ok {
		i.Project = cloneProject(p)
	}
	for _, tagID := range m.issueTags[i.ID] {
		if t, ok := m.tags[tagID]; ok {
			i.Tags = append(i.Tags, t)
		}
	}
	return i
}

func (m *InMemory) UpdateIssue(ctx context.Context, i Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[i.ID]; !ok {
		return fmt.Errorf("%w: issue %s", ErrNotFound, i.ID)
	}
	i.Project = Project{}
	i.Tags = nil
	m.issues[i.ID] = i
	return nil
}

func (m *InMemory) DeleteIssue(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[id]; !ok {
		return fmt.Errorf("%w: issue %s", ErrNotFound, id)
	}
	delete(m.issues, id)
	delete(m.issueTags, id)
	return nil
}

func (m *InMemory) ListIssuesForProject(ctx context.Context, projectID string) ([]Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Issue
	for _, i := range m.issues {
		if i.ProjectID == projectID {
			out = append(out, m.hydrateIssue(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) SetIssueTags(ctx context.Context, issueID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[issueID]; !ok {
		return fmt.Errorf("%w: issue %s", ErrNotFound, issueID)
	}
	m.issueTags[issueID] = append([]string(nil), tagIDs...)
	return nil
}

func (m *InMemory) DeleteIssuesForProject(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, i := range m.issues {
		if i.ProjectID == projectID {
			delete(m.issues, id)
			delete(m.issueTags, id)
		}
	}
	return nil
}

// ---- CommentStore ----

func (m *InMemory) CreateComment(ctx context.Context, c Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; ok {
		return fmt.Errorf("%w: comment %s exists", ErrInvalidInput, c.ID)
	}
	m.comments[c.ID] = c
	return nil
}

func (m *InMemory) GetComment(ctx context.Context, id string) (Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return Comment{}, fmt.Errorf("%w: comment %s", ErrNotFound, id)
	}
	return c, nil
}

func (m *InMemory) UpdateComment(ctx context.Context, c Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; !ok {
		return fmt.Errorf("%w: comment %s", ErrNotFound, c.ID)
	}
	m.comments[c.ID] = c
	return nil
}

func (m *InMemory) DeleteComment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return fmt.Errorf("%w: comment %s", ErrNotFound, id)
	}
	delete(m.comments, id)
	return nil
}

func (m *InMemory) ListCommentsForIssue(ctx context.Context, issueID string) ([]Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Comment
	for _, c := range m.comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) CommentAuthors(ctx context.Context, issueID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range m.comments {
		if c.IssueID != issueID {
			continue
		}
		if _, ok := seen[c.CreatedBy]; ok {
			continue
		}
		seen[c.CreatedBy] = struct{}{}
		out = append(out, c.CreatedBy)
	}
	sort.Strings(out)
	return out, nil
}

func (m *InMemory) DeleteCommentsForIssue(ctx context.Context, issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.comments {
		if c.IssueID == issueID {
			delete(m.comments, id)
		}
	}
	return nil
}

// ---- NoteStore ----

func (m *InMemory) CreateNote(ctx context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[n.ID]; ok {
		return fmt.Errorf("%w: note %s exists", ErrInvalidInput, n.ID)
	}
	m.notes[n.ID] = n
	return nil
}

func (m *InMemory) GetNote(ctx context.Context, id string) (Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	return n, nil
}

func (m *InMemory) UpdateNote(ctx context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[n.ID]; !ok {
		return fmt.Errorf("%w: note %s", ErrNotFound, n.ID)
	}
	m.notes[n.ID] = n
	return nil
}

func (m *InMemory) DeleteNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	delete(m.notes, id)
	return nil
}

func (m *InMemory) ListNotesForProject(ctx context.Context, projectID string) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Note
	for _, n := range m.notes {
		if n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) DeleteNotesForProject(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notes {
		if n.ProjectID == projectID {
			delete(m.notes, id)
		}
	}
	return nil
}

// ---- TagStore ----

func (m *InMemory) CreateTag(ctx context.Context, t Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tags[t.ID]; ok {
		return fmt.Errorf("%w: tag %s exists", ErrInvalidInput, t.ID)
	}
	m.tags[t.ID] = t
	return nil
}

func (m *InMemory) GetTag(ctx context.Context, id string) (Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tags[id]
	if !ok {
		return Tag{}, fmt.Errorf("%w: tag %s", ErrNotFound, id)
	}
	return t, nil
}

func (m *InMemory) GetTags(ctx context.Context, ids []string) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *InMemory) UpdateTag(ctx context.Context, t Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tags[t.ID]; !ok {
		return fmt.Errorf("%w: tag %s", ErrNotFound, t.ID)
	}
	m.tags[t.ID] = t
	return nil
}

func (m *InMemory) ListTags(ctx context.Context) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tag, 0, len(m.tags))
	for _, t := range m.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) ListTagGroup(ctx context.Context, groupName string) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var groupID string
	for _, t := range m.tags {
		if t.Group && t.Name == groupName {
			groupID = t.ID
			break
		}
	}
	if groupID == "" {
		return nil, fmt.Errorf("%w: tag group %s", ErrNotFound, groupName)
	}
	var out []Tag
	for _, t := range m.tags {
		if t.ParentID == groupID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneProject(p Project) Project {
	p.Members = append([]Member(nil), p.Members...)
	p.KanbanTagIDs = append([]string(nil), p.KanbanTagIDs...)
	return p
}

// The store interfaces share method names, so InMemory implements
// UserStore directly and exposes the remaining stores through thin views.

// Projects returns the ProjectStore view.
func (m *InMemory) Projects() ProjectStore { return memProjects{m} }

// Issues returns the IssueStore view.
func (m *InMemory) Issues() IssueStore { return memIssues{m} }

// Comments returns the CommentStore view.
func (m *InMemory) Comments() CommentStore { return memComments{m} }

// Notes returns the NoteStore view.
func (m *InMemory) Notes() NoteStore { return memNotes{m} }

// Tags returns the TagStore view.
func (m *InMemory) Tags() TagStore { return memTags{m} }

type memProjects struct{ m *InMemory }

func (s memProjects) Create(ctx context.Context, p Project) error { return s.m.CreateProject(ctx, p) }
func (s memProjects) Get(ctx context.Context, id string) (Project, error) {
	return s.m.GetProject(ctx, id)
}
func (s memProjects) Update(ctx context.Context, p Project) error { return s.m.UpdateProject(ctx, p) }
func (s memProjects) Delete(ctx context.Context, id string) error { return s.m.DeleteProject(ctx, id) }
func (s memProjects) List(ctx context.Context) ([]Project, error) { return s.m.ListProjects(ctx) }
func (s memProjects) AddMember(ctx context.Context, projectID string, mem Member) error {
	return s.m.AddMember(ctx, projectID, mem)
}
func (s memProjects) RemoveMember(ctx context.Context, projectID, userID string) error {
	return s.m.RemoveMember(ctx, projectID, userID)
}
func (s memProjects) SetMemberNotify(ctx context.Context, projectID, userID string, pref string) error {
	return s.m.SetMemberNotify(ctx, projectID, userID, pref)
}

type memIssues struct{ m *InMemory }

func (s memIssues) Create(ctx context.Context, i Issue) error { return s.m.CreateIssue(ctx, i) }
func (s memIssues) Get(ctx context.Context, id string) (Issue, error) {
	return s.m.GetIssue(ctx, id)
}
func (s memIssues) Update(ctx context.Context, i Issue) error { return s.m.UpdateIssue(ctx, i) }
func (s memIssues) Delete(ctx context.Context, id string) error {
	return s.m.DeleteIssue(ctx, id)
}
func (s memIssues) ListForProject(ctx context.Context, projectID string) ([]Issue, error) {
	return s.m.ListIssuesForProject(ctx, projectID)
}
func (s memIssues) SetTags(ctx context.Context, issueID string, tagIDs []string) error {
	return s.m.SetIssueTags(ctx, issueID, tagIDs)
}
func (s memIssues) DeleteForProject(ctx context.Context, projectID string) error {
	return s.m.DeleteIssuesForProject(ctx, projectID)
}

type memComments struct{ m *InMemory }

func (s memComments) Create(ctx context.Context, c Comment) error { return s.m.CreateComment(ctx, c) }
func (s memComments) Get(ctx context.Context, id string) (Comment, error) {
	return s.m.GetComment(ctx, id)
}
func (s memComments) Update(ctx context.Context, c Comment) error { return s.m.UpdateComment(ctx, c) }
func (s memComments) Delete(ctx context.Context, id string) error { return s.m.DeleteComment(ctx, id) }
func (s memComments) ListForIssue(ctx context.Context, issueID string) ([]Comment, error) {
	return s.m.ListCommentsForIssue(ctx, issueID)
}
func (s memComments) Authors(ctx context.Context, issueID string) ([]string, error) {
	return s.m.CommentAuthors(ctx, issueID)
}
func (s memComments) DeleteForIssue(ctx context.Context, issueID string) error {
	return s.m.DeleteCommentsForIssue(ctx, issueID)
}

type memNotes struct{ m *InMemory }

func (s memNotes) Create(ctx context.Context, n Note) error { return s.m.CreateNote(ctx, n) }
func (s memNotes) Get(ctx context.Context, id string) (Note, error) {
	return s.m.GetNote(ctx, id)
}
func (s memNotes) Update(ctx context.Context, n Note) error   { return s.m.UpdateNote(ctx, n) }
func (s memNotes) Delete(ctx context.Context, id string) error { return s.m.DeleteNote(ctx, id) }
func (s memNotes) ListForProject(ctx context.Context, projectID string) ([]Note, error) {
	return s.m.ListNotesForProject(ctx, projectID)
}
func (s memNotes) DeleteForProject(ctx context.Context, projectID string) error {
	return s.m.DeleteNotesForProject(ctx, projectID)
}

type memTags struct{ m *InMemory }

func (s memTags) Create(ctx context.Context, t Tag) error { return s.m.CreateTag(ctx, t) }
func (s memTags) Get(ctx context.Context, id string) (Tag, error) {
	return s.m.GetTag(ctx, id)
}
func (s memTags) GetMany(ctx context.Context, ids []string) ([]Tag, error) {
	return s.m.GetTags(ctx, ids)
}
func (s memTags) Update(ctx context.Context, t Tag) error { return s.m.UpdateTag(ctx, t) }
func (s memTags) List(ctx context.Context) ([]Tag, error) { return s.m.ListTags(ctx) }
func (s memTags) ListGroup(ctx context.Context, groupName string) ([]Tag, error) {
	return s.m.ListTagGroup(ctx, groupName)
}
