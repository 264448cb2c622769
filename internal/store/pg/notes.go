package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tinytrack.org/internal/tracker"
)

// Notes implements tracker.NoteStore.
type Notes struct {
	db *sql.DB
}

func (s *Notes) Create(ctx context.Context, n tracker.Note) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notes (id, project_id, body, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.ProjectID, n.Body, n.CreatedBy, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: project %s", tracker.ErrNotFound, n.ProjectID)
		}
		return err
	}
	return nil
}

func (s *Notes) Get(ctx context.Context, id string) (tracker.Note, error) {
	var n tracker.Note
	err := s.db.QueryRowContext(ctx, `
		select id, project_id, body, created_by, created_at, updated_at
		from notes where id = $1
	`, id).Scan(&n.ID, &n.ProjectID, &n.Body, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Note{}, fmt.Errorf("%w: note %s", tracker.ErrNotFound, id)
	}
	return n, err
}

func (s *Notes) Update(ctx context.Context, n tracker.Note) error {
	res, err := s.db.ExecContext(ctx, `
		update notes set body = $2, updated_at = now() where id = $1
	`, n.ID, n.Body)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Notes) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from notes where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Notes) ListForProject(ctx context.Context, projectID string) ([]tracker.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, project_id, body, created_by, created_at, updated_at
		from notes where project_id = $1 order by created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []tracker.Note
	for rows.Next() {
		var n tracker.Note
		if err := rows.Scan(&n.ID, &n.ProjectID, &n.Body, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Notes) DeleteForProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `delete from notes where project_id = $1`, projectID)
	return err
}
