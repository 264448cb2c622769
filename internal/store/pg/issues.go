package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tinytrack.org/internal/tracker"
)

// Issues implements tracker.IssueStore. Get loads the issue with its tags
// and the owning project (members included).
type Issues struct {
	db *sql.DB
}

const issueColumns = `id, project_id, title, body, status, created_by, coalesce(updated_by, ''),
	coalesce(assigned_to, ''), coalesce(closed_by, ''), closed_at, time_quote, lock_quote, created_at, updated_at`

func scanIssue(row interface{ Scan(...any) error }) (tracker.Issue, error) {
	var (
		i      tracker.Issue
		status int
	)
	err := row.Scan(&i.ID, &i.ProjectID, &i.Title, &i.Body, &status, &i.CreatedBy, &i.UpdatedBy,
		&i.AssignedTo, &i.ClosedBy, &i.ClosedAt, &i.TimeQuote, &i.LockQuote, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return tracker.Issue{}, err
	}
	i.Status = tracker.IssueStatus(status)
	return i, nil
}

func (s *Issues) Create(ctx context.Context, i tracker.Issue) error {
	_, err := s.db.ExecContext(ctx, `
		insert into issues (id, project_id, title, body, status, created_by, assigned_to, time_quote, lock_quote, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, i.ID, i.ProjectID, i.Title, i.Body, int(i.Status), i.CreatedBy, nullIfEmpty(i.AssignedTo), i.TimeQuote, i.LockQuote, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: issue %s", tracker.ErrInvalidInput, i.ID)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: project %s", tracker.ErrNotFound, i.ProjectID)
			}
		}
		return err
	}
	return nil
}

func (s *Issues) Get(ctx context.Context, id string) (tracker.Issue, error) {
	i, err := scanIssue(s.db.QueryRowContext(ctx, `select `+issueColumns+` from issues where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Issue{}, fmt.Errorf("%w: issue %s", tracker.ErrNotFound, id)
	}
	if err != nil {
		return tracker.Issue{}, err
	}
	if i.Tags, err = s.tagsFor(ctx, i.ID); err != nil {
		return tracker.Issue{}, err
	}
	projects := &Projects{db: s.db}
	if i.Project, err = projects.Get(ctx, i.ProjectID); err != nil {
		return tracker.Issue{}, err
	}
	return i, nil
}

func (s *Issues) tagsFor(ctx context.Context, issueID string) ([]tracker.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		select t.id, coalesce(t.parent_id, ''), t.name, coalesce(t.bgcolor, ''), t.role_limit, t.is_group, t.created_at, t.updated_at
		from issue_tags it
		join tags t on t.id = it.tag_id
		where it.issue_id = $1
		order by t.name
	`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []tracker.Tag
	for rows.Next() {
		var t tracker.Tag
		if err := rows.Scan(&t.ID, &t.ParentID, &t.Name, &t.BgColor, &t.RoleLimit, &t.Group, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Issues) Update(ctx context.Context, i tracker.Issue) error {
	res, err := s.db.ExecContext(ctx, `
		update issues
		set title = $2, body = $3, status = $4, updated_by = $5, assigned_to = $6,
		    closed_by = $7, closed_at = $8, time_quote = $9, lock_quote = $10, updated_at = now()
		where id = $1
	`, i.ID, i.Title, i.Body, int(i.Status), nullIfEmpty(i.UpdatedBy), nullIfEmpty(i.AssignedTo),
		nullIfEmpty(i.ClosedBy), i.ClosedAt, i.TimeQuote, i.LockQuote)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Issues) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from issues where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Issues) ListForProject(ctx context.Context, projectID string) ([]tracker.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+issueColumns+` from issues where project_id = $1 order by created_at desc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []tracker.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for idx := range issues {
		if issues[idx].Tags, err = s.tagsFor(ctx, issues[idx].ID); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

func (s *Issues) SetTags(ctx context.Context, issueID string, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from issue_tags where issue_id = $1`, issueID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into issue_tags (issue_id, tag_id) values ($1, $2)
		`, issueID, tagID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: tag %s", tracker.ErrNotFound, tagID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Issues) DeleteForProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `delete from issues where project_id = $1`, projectID)
	return err
}
