package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tinytrack.org/internal/tracker"
)

// Tags implements tracker.TagStore.
type Tags struct {
	db *sql.DB
}

const tagColumns = `id, coalesce(parent_id, ''), name, coalesce(bgcolor, ''), role_limit, is_group, created_at, updated_at`

func scanTag(row interface{ Scan(...any) error }) (tracker.Tag, error) {
	var t tracker.Tag
	err := row.Scan(&t.ID, &t.ParentID, &t.Name, &t.BgColor, &t.RoleLimit, &t.Group, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Tags) Create(ctx context.Context, t tracker.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tags (id, parent_id, name, bgcolor, role_limit, is_group, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, nullIfEmpty(t.ParentID), t.Name, nullIfEmpty(t.BgColor), t.RoleLimit, t.Group, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: tag %s", tracker.ErrInvalidInput, t.ID)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: tag group %s", tracker.ErrNotFound, t.ParentID)
			}
		}
		return err
	}
	return nil
}

func (s *Tags) Get(ctx context.Context, id string) (tracker.Tag, error) {
	t, err := scanTag(s.db.QueryRowContext(ctx, `select `+tagColumns+` from tags where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Tag{}, fmt.Errorf("%w: tag %s", tracker.ErrNotFound, id)
	}
	return t, err
}

func (s *Tags) GetMany(ctx context.Context, ids []string) ([]tracker.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `select `+tagColumns+` from tags where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []tracker.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Tags) Update(ctx context.Context, t tracker.Tag) error {
	res, err := s.db.ExecContext(ctx, `
		update tags set parent_id = $2, name = $3, bgcolor = $4, role_limit = $5, is_group = $6, updated_at = now()
		where id = $1
	`, t.ID, nullIfEmpty(t.ParentID), t.Name, nullIfEmpty(t.BgColor), t.RoleLimit, t.Group)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Tags) List(ctx context.Context) ([]tracker.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `select ` + tagColumns + ` from tags order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []tracker.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Tags) ListGroup(ctx context.Context, groupName string) ([]tracker.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+tagColumns+` from tags
		where parent_id = (select id from tags where is_group and name = $1)
		order by name
	`, groupName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []tracker.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
