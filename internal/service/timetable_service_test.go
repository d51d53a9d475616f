package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack-id/timetable-api/internal/models"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

// assignmentRepoStub keeps assignments in memory but hands out real
// transactions from an sqlmock connection so the commit/rollback flow in the
// service runs unchanged.
type assignmentRepoStub struct {
	db          *sqlx.DB
	mock        sqlmock.Sqlmock
	assignments map[string]*models.Assignment
	writeErr    error
	nextID      int
}

func newAssignmentRepoStub(t *testing.T) (*assignmentRepoStub, func()) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(false))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	return &assignmentRepoStub{
		db:          sqlx.NewDb(db, "sqlmock"),
		mock:        mock,
		assignments: make(map[string]*models.Assignment),
	}, func() { db.Close() }
}

func (s *assignmentRepoStub) BeginSerializable(ctx context.Context) (*sqlx.Tx, error) {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()
	return s.db.BeginTxx(ctx, nil)
}

func (s *assignmentRepoStub) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := s.assignments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) FindBySlot(ctx context.Context, exec sqlx.ExtContext, day models.Day, blockID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.DayOfWeek == day && a.BlockID == blockID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *assignmentRepoStub) CountByGroupSubject(ctx context.Context, exec sqlx.ExtContext, groupID, subjectID string) (int, error) {
	count := 0
	for _, a := range s.assignments {
		if a.GroupID == groupID && a.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

func (s *assignmentRepoStub) ListByGroup(ctx context.Context, groupID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.GroupID == groupID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *assignmentRepoStub) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		out = append(out, *a)
	}
	return out, nil
}

func (s *assignmentRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if assignment.ID == "" {
		// Skip IDs already taken by fixture-seeded rows; the real
		// repository hands out fresh UUIDs so it never collides.
		for {
			s.nextID++
			assignment.ID = fmt.Sprintf("asg-%d", s.nextID)
			if _, taken := s.assignments[assignment.ID]; !taken {
				break
			}
		}
	}
	copied := *assignment
	s.assignments[assignment.ID] = &copied
	return nil
}

func (s *assignmentRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	copied := *assignment
	s.assignments[assignment.ID] = &copied
	return nil
}

func (s *assignmentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.assignments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.assignments, id)
	return nil
}

type timetableFixture struct {
	svc          *TimetableService
	repo         *assignmentRepoStub
	catalog      *catalogStub
	availability *availabilityRepoStub
}

func newTimetableFixture(t *testing.T, opts ...TimetableServiceOption) (*timetableFixture, func()) {
	repo, cleanup := newAssignmentRepoStub(t)
	catalog := newCatalogStub()
	catalog.groups["group-10b"] = &models.Group{ID: "group-10b", Name: "10B", Level: "10"}
	catalog.teachers["teacher-2"] = &models.Teacher{ID: "teacher-2", FullName: "Budi Santoso", Active: true}
	catalog.subjects["subj-history"] = &models.Subject{ID: "subj-history", Name: "History", WeeklyHours: 2}

	availabilityRepo := newAvailabilityRepoStub()
	availability := NewAvailabilityService(availabilityRepo, catalog, nil, nil)
	svc := NewTimetableService(repo, catalog, availability, nil, nil, opts...)
	return &timetableFixture{svc: svc, repo: repo, catalog: catalog, availability: availabilityRepo}, cleanup
}

func createReq() CreateAssignmentRequest {
	return CreateAssignmentRequest{
		GroupID:   "group-10a",
		DayOfWeek: models.DayMonday,
		BlockID:   "block-1",
		SubjectID: "subj-math",
		TeacherID: "teacher-1",
	}
}

func TestTimetableServiceCreate(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	req := createReq()
	req.DayOfWeek = "monday"
	result, err := fx.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Assignment)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, models.DayMonday, result.Assignment.DayOfWeek)

	stored, ok := fx.repo.assignments[result.Assignment.ID]
	require.True(t, ok)
	assert.Equal(t, "subj-math", stored.SubjectID)
}

func TestTimetableServiceCreateSlotOccupied(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-history", TeacherID: "teacher-2",
	}

	_, err := fx.svc.Create(context.Background(), createReq())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotOccupied.Code, appErrors.FromError(err).Code)
	assert.Len(t, fx.repo.assignments, 1)
}

func TestTimetableServiceCreateTeacherDoubleBooked(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10b", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-history", TeacherID: "teacher-1",
	}

	_, err := fx.svc.Create(context.Background(), createReq())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherDoubleBooked.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceCreateJointSubjectPair(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.catalog.subjects["subj-math"].JointWith = strPtr("group-10b")
	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10b", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}

	result, err := fx.svc.Create(context.Background(), createReq())
	require.NoError(t, err)
	assert.Len(t, fx.repo.assignments, 2)
	assert.Empty(t, result.Warnings)
}

func TestTimetableServiceCreateTeacherUnavailable(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.availability.cells[availabilityCellKey{"teacher-1", models.DayMonday, "block-1"}] = &models.Availability{
		TeacherID: "teacher-1", DayOfWeek: models.DayMonday, BlockID: "block-1", Available: false,
	}

	_, err := fx.svc.Create(context.Background(), createReq())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherUnavailable.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceCreateUnknownSubject(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	req := createReq()
	req.SubjectID = "subj-missing"
	_, err := fx.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownReference.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceQuotaSoftWarning(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.catalog.subjects["subj-math"].WeeklyHours = 1
	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayTuesday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}

	result, err := fx.svc.Create(context.Background(), createReq())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Len(t, fx.repo.assignments, 2)
}

func TestTimetableServiceQuotaHardRejection(t *testing.T) {
	fx, cleanup := newTimetableFixture(t, WithQuotaHard(true))
	defer cleanup()

	fx.catalog.subjects["subj-math"].WeeklyHours = 1
	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayTuesday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}

	_, err := fx.svc.Create(context.Background(), createReq())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErrors.FromError(err).Code)
	assert.Len(t, fx.repo.assignments, 1)
}

func TestTimetableServiceCreateUniqueViolationBackstop(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.writeErr = &pq.Error{Code: "23505"}
	_, err := fx.svc.Create(context.Background(), createReq())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotOccupied.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceUpdateNotFound(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	_, err := fx.svc.Update(context.Background(), "asg-missing", UpdateAssignmentRequest{
		SubjectID: "subj-math",
		TeacherID: "teacher-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceUpdateKeepsSlot(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}

	result, err := fx.svc.Update(context.Background(), "asg-1", UpdateAssignmentRequest{
		SubjectID: "subj-history",
		TeacherID: "teacher-2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DayMonday, result.Assignment.DayOfWeek)
	assert.Equal(t, "block-1", result.Assignment.BlockID)
	assert.Equal(t, "teacher-2", fx.repo.assignments["asg-1"].TeacherID)
	assert.Len(t, fx.repo.assignments, 1)
}

func TestTimetableServiceDelete(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.assignments["asg-1"] = &models.Assignment{ID: "asg-1", GroupID: "group-10a"}
	require.NoError(t, fx.svc.Delete(context.Background(), "asg-1"))
	assert.Empty(t, fx.repo.assignments)

	err := fx.svc.Delete(context.Background(), "asg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceListAllShapesCells(t *testing.T) {
	fx, cleanup := newTimetableFixture(t)
	defer cleanup()

	fx.repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}
	fx.repo.assignments["asg-2"] = &models.Assignment{
		ID: "asg-2", GroupID: "group-10b", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-history", TeacherID: "teacher-2",
	}

	cells, err := fx.svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Len(t, cells[0].ByGroup, 2)
	assert.Equal(t, "asg-1", cells[0].ByGroup["group-10a"].ID)
}
