package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack-id/timetable-api/internal/models"
)

func assignmentRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "group_id", "day_of_week", "block_id", "subject_id", "teacher_id", "created_at", "updated_at"}).
		AddRow("asg-1", "group-10a", "MONDAY", "block-1", "subj-math", "teacher-1", now, now)
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WithArgs(sqlmock.AnyArg(), "group-10a", "MONDAY", "block-1", "subj-math", "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := models.Assignment{
		GroupID:   "group-10a",
		DayOfWeek: models.DayMonday,
		BlockID:   "block-1",
		SubjectID: "subj-math",
		TeacherID: "teacher-1",
	}
	require.NoError(t, repo.Create(context.Background(), nil, &assignment))
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindBySlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE day_of_week = $1 AND block_id = $2")).
		WithArgs("MONDAY", "block-1").
		WillReturnRows(assignmentRows(time.Now()))

	assignments, err := repo.FindBySlot(context.Background(), nil, models.DayMonday, "block-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "asg-1", assignments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCountByGroupSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments WHERE group_id = $1 AND subject_id = $2")).
		WithArgs("group-10a", "subj-math").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByGroupSubject(context.Background(), nil, "group-10a", "subj-math")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAssignmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("DELETE FROM assignments").
		WithArgs("asg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "asg-1"))

	mock.ExpectExec("DELETE FROM assignments").
		WithArgs("asg-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), "asg-gone")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestIsUniqueViolation(t *testing.T) {
	pqErr := &pq.Error{Code: "23505"}
	assert.True(t, IsUniqueViolation(pqErr))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create assignment: %w", pqErr)))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}
