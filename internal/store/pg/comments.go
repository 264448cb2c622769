package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tinytrack.org/internal/tracker"
)

// Comments implements tracker.CommentStore.
type Comments struct {
	db *sql.DB
}

func (s *Comments) Create(ctx context.Context, c tracker.Comment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into comments (id, issue_id, project_id, body, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.IssueID, c.ProjectID, c.Body, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: issue %s", tracker.ErrNotFound, c.IssueID)
		}
		return err
	}
	return nil
}

func (s *Comments) Get(ctx context.Context, id string) (tracker.Comment, error) {
	var c tracker.Comment
	err := s.db.QueryRowContext(ctx, `
		select id, issue_id, project_id, body, created_by, created_at, updated_at
		from comments where id = $1
	`, id).Scan(&c.ID, &c.IssueID, &c.ProjectID, &c.Body, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Comment{}, fmt.Errorf("%w: comment %s", tracker.ErrNotFound, id)
	}
	return c, err
}

func (s *Comments) Update(ctx context.Context, c tracker.Comment) error {
	res, err := s.db.ExecContext(ctx, `
		update comments set body = $2, updated_at = now() where id = $1
	`, c.ID, c.Body)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Comments) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from comments where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Comments) ListForIssue(ctx context.Context, issueID string) ([]tracker.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, issue_id, project_id, body, created_by, created_at, updated_at
		from comments where issue_id = $1 order by created_at
	`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []tracker.Comment
	for rows.Next() {
		var c tracker.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.ProjectID, &c.Body, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Comments) Authors(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct created_by from comments where issue_id = $1
	`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		authors = append(authors, id)
	}
	return authors, rows.Err()
}

func (s *Comments) DeleteForIssue(ctx context.Context, issueID string) error {
	_, err := s.db.ExecContext(ctx, `delete from comments where issue_id = $1`, issueID)
	return err
}
