package pg

import (
	"context"
	"database/sql"

	"tinytrack.org/internal/activity"
)

// Activities implements activity.Store.
type Activities struct {
	db *sql.DB
}

func (s *Activities) Append(ctx context.Context, a activity.Activity) error {
	_, err := s.db.ExecContext(ctx, `
		insert into activities (id, type, project_id, item_id, action_id, actor_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, string(a.Type), a.ProjectID, a.ItemID, nullIfEmpty(a.ActionID), a.ActorID, a.CreatedAt)
	return err
}

func (s *Activities) DeleteForItem(ctx context.Context, projectID, itemID string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from activities where project_id = $1 and item_id = $2
	`, projectID, itemID)
	return err
}

func (s *Activities) DeleteForProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `delete from activities where project_id = $1`, projectID)
	return err
}

func (s *Activities) ListForProject(ctx context.Context, projectID string, limit int) ([]activity.Activity, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, type, project_id, item_id, coalesce(action_id, ''), actor_id, created_at
		from activities
		where project_id = $1
		order by id desc
		limit $2
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (s *Activities) ListForItem(ctx context.Context, projectID, itemID string) ([]activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, type, project_id, item_id, coalesce(action_id, ''), actor_id, created_at
		from activities
		where project_id = $1 and item_id = $2
		order by id
	`, projectID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

func collectActivities(rows *sql.Rows) ([]activity.Activity, error) {
	var out []activity.Activity
	for rows.Next() {
		var (
			a activity.Activity
			t string
		)
		if err := rows.Scan(&a.ID, &t, &a.ProjectID, &a.ItemID, &a.ActionID, &a.ActorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = activity.Type(t)
		out = append(out, a)
	}
	return out, rows.Err()
}
