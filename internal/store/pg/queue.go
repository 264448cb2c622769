package pg

import (
	"context"
	"database/sql"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/notify"
)

// Queue implements notify.Store. Deduplication rides on a partial unique
// index over (target_type, target_id, event_type, recipient_id) where
// status = 'pending', so the conditional insert is atomic in the database
// and delivered entries never suppress new events.
type Queue struct {
	db *sql.DB
}

func (s *Queue) InsertIfAbsent(ctx context.Context, key notify.Key, entry notify.QueueEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into notifications (id, target_type, target_id, event_type, recipient_id, status, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (target_type, target_id, event_type, recipient_id) where status = 'pending' do nothing
	`, entry.ID, string(key.TargetType), key.TargetID, string(key.EventType), key.RecipientID, string(entry.Status), entry.CreatedAt)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Queue) ListPending(ctx context.Context, limit int) ([]notify.QueueEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, target_type, target_id, event_type, recipient_id, status, created_at
		from notifications
		where status = 'pending'
		order by id
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []notify.QueueEntry
	for rows.Next() {
		var (
			e          notify.QueueEntry
			target     string
			event      string
			statusText string
		)
		if err := rows.Scan(&e.ID, &target, &e.TargetID, &event, &e.RecipientID, &statusText, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TargetType = notify.TargetType(target)
		e.EventType = activity.Type(event)
		e.Status = notify.Status(statusText)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Queue) MarkSent(ctx context.Context, id string) error {
	return s.transition(ctx, id, notify.StatusSent)
}

func (s *Queue) MarkFailed(ctx context.Context, id string) error {
	return s.transition(ctx, id, notify.StatusFailed)
}

func (s *Queue) transition(ctx context.Context, id string, status notify.Status) error {
	res, err := s.db.ExecContext(ctx, `
		update notifications set status = $2 where id = $1 and status = 'pending'
	`, id, string(status))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return notify.ErrNotFound
	}
	return nil
}

func (s *Queue) DeleteForTarget(ctx context.Context, target notify.TargetType, targetID string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from notifications where target_type = $1 and target_id = $2
	`, string(target), targetID)
	return err
}
