package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/tracker"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestUsersGet(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, email, firstname, lastname, role_id, deleted, notify, password_hash, created_at, updated_at from users where id =").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "firstname", "lastname", "role_id", "deleted", "notify", "password_hash", "created_at", "updated_at"}).
			AddRow("u1", "dev@example.test", "Dev", "One", "developer", false, "all", "hash", now, now))

	u, err := store.Users().Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Email != "dev@example.test" || u.RoleID != "developer" || u.Notify != notify.PrefAll {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUsersGetNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("select id, email, .* from users where id =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users().Get(context.Background(), "missing")
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUsersCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Users().Create(context.Background(), tracker.User{ID: "u1", Email: "dup@example.test"})
	if !errors.Is(err, tracker.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestProjectsCreateInsertsMembers(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("insert into projects").
		WithArgs("p1", "core", 1, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into project_members").
		WithArgs("p1", "u1", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := tracker.Project{
		ID:         "p1",
		Name:       "core",
		Visibility: tracker.VisibilityPrivate,
		Status:     tracker.ProjectOpen,
		Members:    []tracker.Member{{UserID: "u1", CreatedAt: now}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.Projects().Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIssuesSetTagsReplacesSelection(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("delete from issue_tags where issue_id =").
		WithArgs("i1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("insert into issue_tags").
		WithArgs("i1", "type-bug").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Issues().SetTags(context.Background(), "i1", []string{"type-bug"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueueInsertIfAbsent(t *testing.T) {
	store, mock := newMock(t)
	entry := notify.QueueEntry{
		ID:          "q1",
		TargetType:  notify.TargetIssue,
		TargetID:    "i1",
		EventType:   activity.TypeIssueCommented,
		RecipientID: "u1",
		Status:      notify.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	key := notify.Key{TargetType: entry.TargetType, TargetID: entry.TargetID, EventType: entry.EventType, RecipientID: entry.RecipientID}

	mock.ExpectExec("insert into notifications").
		WithArgs("q1", "issue", "i1", "issue-commented", "u1", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := store.Queue().InsertIfAbsent(context.Background(), key, entry)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	// A conflicting pending entry makes the insert a no-op.
	mock.ExpectExec("insert into notifications").
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = store.Queue().InsertIfAbsent(context.Background(), key, entry)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("duplicate insert reported as inserted")
	}
}

func TestQueueTransitionNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("update notifications set status =").
		WithArgs("missing", "sent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Queue().MarkSent(context.Background(), "missing"); !errors.Is(err, notify.ErrNotFound) {
		t.Fatalf("err = %v, want notify.ErrNotFound", err)
	}
}

func TestActivitiesAppendAndList(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into activities").
		WithArgs("a1", "issue-created", "p1", "i1", sqlmock.AnyArg(), "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := store.Activities().Append(context.Background(), activity.Activity{
		ID: "a1", Type: activity.TypeIssueCreated, ProjectID: "p1", ItemID: "i1", ActorID: "u1", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	mock.ExpectQuery("select id, type, project_id, item_id, coalesce").
		WithArgs("p1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "project_id", "item_id", "action_id", "actor_id", "created_at"}).
			AddRow("a1", "issue-created", "p1", "i1", "", "u1", now))
	acts, err := store.Activities().ListForProject(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("ListForProject: %v", err)
	}
	if len(acts) != 1 || acts[0].Type != activity.TypeIssueCreated {
		t.Fatalf("unexpected activities: %+v", acts)
	}
}
