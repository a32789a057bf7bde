package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_id", "kind", "revision", "fields", "created_at", "updated_at"})
}

func TestRecordRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnRows(recordRows().
			AddRow("rec-1", "class-1", "assignment", int64(1), []byte(`{"title":"Essay"}`), now, now))

	record, err := repo.Create(context.Background(), "class-1", models.RecordKindAssignment,
		models.FieldPatch{"title": "Essay"})
	require.NoError(t, err)
	require.Equal(t, "rec-1", record.ID)
	require.Equal(t, int64(1), record.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateFieldsBumpsRevision(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE records")).
		WillReturnRows(recordRows().
			AddRow("rec-1", "class-1", "assignment", int64(4), []byte(`{"title":"Essay v2"}`), now, now))

	record, err := repo.UpdateFields(context.Background(), models.RecordKindAssignment, "rec-1",
		models.FieldPatch{"title": "Essay v2"}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), record.Revision)
	require.JSONEq(t, `{"title":"Essay v2"}`, string(record.Fields))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateMissingRecord(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE records")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateFields(context.Background(), models.RecordKindAssignment, "ghost",
		models.FieldPatch{"title": "nope"}, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateGuardsExpectedRevision(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND revision = $5")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "assignment", "rec-1", int64(2)).
		WillReturnError(sql.ErrNoRows)

	expected := int64(2)
	_, err := repo.UpdateFields(context.Background(), models.RecordKindAssignment, "rec-1",
		models.FieldPatch{"title": "late edit"}, &expected)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, kind, revision, fields")).
		WithArgs("class-1", "submission").
		WillReturnRows(recordRows().
			AddRow("rec-2", "class-1", "submission", int64(2), []byte(`{"student_id":"s1"}`), now, now))

	list, err := repo.List(context.Background(), models.RecordFilter{
		ClassID: "class-1",
		Kind:    models.RecordKindSubmission,
	}, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "rec-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM records")).
		WithArgs("event", "rec-3").
		WillReturnRows(recordRows().
			AddRow("rec-3", "class-1", "event", int64(7), []byte(`{}`), now, now))

	record, err := repo.Delete(context.Background(), models.RecordKindEvent, "rec-3")
	require.NoError(t, err)
	require.Equal(t, "class-1", record.ClassID)
	require.NoError(t, mock.ExpectationsWereMet())
}
