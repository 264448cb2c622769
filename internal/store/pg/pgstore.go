// Package pg implements the tracker store interfaces over PostgreSQL
// using database/sql with the pgx driver.
package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/tracker"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store owns the connection pool and hands out the per-entity store views.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and tunes the pool.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// Tune overrides the default pool limits.
func (s *Store) Tune(maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		s.db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		s.db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		s.db.SetConnMaxLifetime(maxLifetime)
	}
}

// NewWithDB wraps an existing connection, used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Users returns the user store view.
func (s *Store) Users() tracker.UserStore { return &Users{db: s.db} }

// Projects returns the project store view.
func (s *Store) Projects() tracker.ProjectStore { return &Projects{db: s.db} }

// Issues returns the issue store view.
func (s *Store) Issues() tracker.IssueStore { return &Issues{db: s.db} }

// Comments returns the comment store view.
func (s *Store) Comments() tracker.CommentStore { return &Comments{db: s.db} }

// Notes returns the note store view.
func (s *Store) Notes() tracker.NoteStore { return &Notes{db: s.db} }

// Tags returns the tag store view.
func (s *Store) Tags() tracker.TagStore { return &Tags{db: s.db} }

// Activities returns the activity log store.
func (s *Store) Activities() activity.Store { return &Activities{db: s.db} }

// Queue returns the notification queue store.
func (s *Store) Queue() notify.Store { return &Queue{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
