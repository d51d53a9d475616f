package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack-id/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryUpsertAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO teacher_availability").
		WithArgs(sqlmock.AnyArg(), "teacher-1", "MONDAY", "block-1", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cell := models.Availability{
		TeacherID: "teacher-1",
		DayOfWeek: models.DayMonday,
		BlockID:   "block-1",
		Available: false,
	}
	require.NoError(t, repo.Upsert(context.Background(), &cell))
	assert.NotEmpty(t, cell.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "day_of_week", "block_id", "available", "created_at", "updated_at"}).
		AddRow("cell-1", "teacher-1", "MONDAY", "block-1", false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_availability WHERE teacher_id = $1 AND day_of_week = $2 AND block_id = $3")).
		WithArgs("teacher-1", "MONDAY", "block-1").
		WillReturnRows(rows)

	found, err := repo.Find(context.Background(), "teacher-1", models.DayMonday, "block-1")
	require.NoError(t, err)
	assert.False(t, found.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryFindUnsetCell(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("FROM teacher_availability").
		WithArgs("teacher-1", "MONDAY", "block-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "teacher-1", models.DayMonday, "block-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAvailabilityRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "day_of_week", "block_id", "available", "created_at", "updated_at"}).
		AddRow("cell-1", "teacher-1", "MONDAY", "block-1", false, now, now).
		AddRow("cell-2", "teacher-1", "FRIDAY", "block-2", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_availability WHERE teacher_id = $1")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	cells, err := repo.ListByTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, models.DayFriday, cells[1].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}
