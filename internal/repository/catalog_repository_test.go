package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepositoryFindTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "active", "created_at", "updated_at"}).
		AddRow("teacher-1", "Dewi Lestari", nil, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = $1")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	teacher, err := repo.FindTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "Dewi Lestari", teacher.FullName)
	assert.Nil(t, teacher.Email)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = $1")).
		WithArgs("teacher-gone").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindTeacher(context.Background(), "teacher-gone")
	assert.True(t, IsNoRows(err))
}

func TestCatalogRepositoryListBlocksOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "label", "start_time", "end_time", "position", "created_at"}).
		AddRow("block-1", "1", "07:00", "07:45", 1, now).
		AddRow("block-2", "2", "07:45", "08:30", 2, now)
	mock.ExpectQuery("FROM blocks ORDER BY position ASC").WillReturnRows(rows)

	blocks, err := repo.ListBlocks(context.Background())
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 1, blocks[0].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListSubjects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "weekly_hours", "joint_with", "created_at", "updated_at"}).
		AddRow("subj-math", "Mathematics", 4, nil, now, now).
		AddRow("subj-pe", "Physical Education", 2, "group-10b", now, now)
	mock.ExpectQuery("FROM subjects ORDER BY name ASC").WillReturnRows(rows)

	subjects, err := repo.ListSubjects(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Nil(t, subjects[0].JointWith)
	require.NotNil(t, subjects[1].JointWith)
	assert.Equal(t, "group-10b", *subjects[1].JointWith)
}
