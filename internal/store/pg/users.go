package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/tracker"
)

// Users implements tracker.UserStore.
type Users struct {
	db *sql.DB
}

const userColumns = `id, email, firstname, lastname, role_id, deleted, notify, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (tracker.User, error) {
	var (
		u    tracker.User
		pref string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.RoleID, &u.Deleted, &pref, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return tracker.User{}, err
	}
	u.Notify = notify.Preference(pref)
	return u, nil
}

func (s *Users) Create(ctx context.Context, u tracker.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, firstname, lastname, role_id, deleted, notify, password_hash, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.RoleID, u.Deleted, string(u.Notify), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: user %s", tracker.ErrInvalidInput, u.Email)
		}
		return err
	}
	return nil
}

func (s *Users) Get(ctx context.Context, id string) (tracker.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.User{}, fmt.Errorf("%w: user %s", tracker.ErrNotFound, id)
	}
	return u, err
}

func (s *Users) GetByEmail(ctx context.Context, email string) (tracker.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.User{}, fmt.Errorf("%w: user %s", tracker.ErrNotFound, email)
	}
	return u, err
}

func (s *Users) Update(ctx context.Context, u tracker.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set email = $2, firstname = $3, lastname = $4, role_id = $5, deleted = $6,
		    notify = $7, password_hash = $8, updated_at = now()
		where id = $1
	`, u.ID, u.Email, u.FirstName, u.LastName, u.RoleID, u.Deleted, string(u.Notify), u.PasswordHash)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: user %s", tracker.ErrInvalidInput, u.Email)
		}
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Users) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update users set deleted = true, updated_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, tracker.ErrNotFound)
}

func (s *Users) List(ctx context.Context) ([]tracker.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []tracker.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireAffected(res sql.Result, notFound error) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return notFound
	}
	return nil
}
