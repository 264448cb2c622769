package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/tracker"
)

// Projects implements tracker.ProjectStore. Get and List load memberships
// alongside the project row.
type Projects struct {
	db *sql.DB
}

func (s *Projects) Create(ctx context.Context, p tracker.Project) error {
	kanban, err := json.Marshal(p.KanbanTagIDs)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into projects (id, name, visibility, status, default_assignee, kanban_tag_ids, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Name, int(p.Visibility), int(p.Status), nullIfEmpty(p.DefaultAssignee), kanban, p.CreatedAt, p.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: project %s", tracker.ErrInvalidInput, p.ID)
		}
		return err
	}
	for _, m := range p.Members {
		if _, err := tx.ExecContext(ctx, `
			insert into project_members (project_id, user_id, role_id, notify, created_at)
			values ($1, $2, $3, $4, $5)
		`, p.ID, m.UserID, m.RoleID, string(m.Notify), m.CreatedAt); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: member %s", tracker.ErrNotFound, m.UserID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Projects) Get(ctx context.Context, id string) (tracker.Project, error) {
	p, err := s.scanProject(ctx, s.db.QueryRowContext(ctx, `
		select id, name, visibility, status, coalesce(default_assignee, ''), kanban_tag_ids, created_at, updated_at
		from projects where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Project{}, fmt.Errorf("%w: project %s", tracker.ErrNotFound, id)
	}
	if err != nil {
		return tracker.Project{}, err
	}
	p.Members, err = s.members(ctx, p.ID)
	if err != nil {
		return tracker.Project{}, err
	}
	return p, nil
}

func (s *Projects) scanProject(ctx context.Context, row interface{ Scan(...any) error }) (tracker.Project, error) {
	var (
		p          tracker.Project
		visibility int
		status     int
		kanban     []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &visibility, &status, &p.DefaultAssignee, &kanban, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return tracker.Project{}, err
	}
	p.Visibility = tracker.Visibility(visibility)
	p.Status = tracker.ProjectStatus(status)
	if len(kanban) > 0 {
		if err := json.Unmarshal(kanban, &p.KanbanTagIDs); err != nil {
			return tracker.Project{}, fmt.Errorf("decode kanban order: %w", err)
		}
	}
	return p, nil
}

func (s *Projects) members(ctx context.Context, projectID string) ([]tracker.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, notify, created_at
		from project_members
		where project_id = $1
		order by created_at, user_id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []tracker.Member
	for rows.Next() {
		var (
			m    tracker.Member
			pref string
		)
		if err := rows.Scan(&m.UserID, &m.RoleID, &pref, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Notify = notify.Preference(pref)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Projects) Update(ctx context.Context, p tracker.Project) error {
	kanban, err := json.Marshal(p.KanbanTagIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update projects
		set name = $2, visibility = $3, status = $4, default_assignee = $5, kanban_tag_ids = $6, updated_at = now()
		where id = $1
	`, p.ID, p.Name, int(p.Visibility), int(p.Status), nullIfEmpty(p.DefaultAssignee), kanban)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Projects) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Projects) List(ctx context.Context) ([]tracker.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, visibility, status, coalesce(default_assignee, ''), kanban_tag_ids, created_at, updated_at
		from projects order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []tracker.Project
	for rows.Next() {
		p, err := s.scanProject(ctx, rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Members, err = s.members(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *Projects) AddMember(ctx context.Context, projectID string, m tracker.Member) error {
	_, err := s.db.ExecContext(ctx, `
		insert into project_members (project_id, user_id, role_id, notify, created_at)
		values ($1, $2, $3, $4, $5)
		on conflict (project_id, user_id) do nothing
	`, projectID, m.UserID, m.RoleID, string(m.Notify), m.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: project or user", tracker.ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *Projects) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from project_members where project_id = $1 and user_id = $2
	`, projectID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Projects) SetMemberNotify(ctx context.Context, projectID, userID string, pref string) error {
	res, err := s.db.ExecContext(ctx, `
		update project_members set notify = $3 where project_id = $1 and user_id = $2
	`, projectID, userID, pref)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}
