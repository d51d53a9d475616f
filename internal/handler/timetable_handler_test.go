package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack-id/timetable-api/internal/models"
	"github.com/edutrack-id/timetable-api/internal/service"
)

type assignmentRepoMock struct {
	assignments map[string]*models.Assignment
}

func newAssignmentRepoMock() *assignmentRepoMock {
	return &assignmentRepoMock{assignments: make(map[string]*models.Assignment)}
}

func (m *assignmentRepoMock) BeginSerializable(ctx context.Context) (*sqlx.Tx, error) {
	return nil, errors.New("transactions not supported in this mock")
}

func (m *assignmentRepoMock) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *assignmentRepoMock) FindBySlot(ctx context.Context, exec sqlx.ExtContext, day models.Day, blockID string) ([]models.Assignment, error) {
	return nil, nil
}

func (m *assignmentRepoMock) CountByGroupSubject(ctx context.Context, exec sqlx.ExtContext, groupID, subjectID string) (int, error) {
	return 0, nil
}

func (m *assignmentRepoMock) ListByGroup(ctx context.Context, groupID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.GroupID == groupID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *assignmentRepoMock) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.assignments {
		out = append(out, *a)
	}
	return out, nil
}

func (m *assignmentRepoMock) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *assignmentRepoMock) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *assignmentRepoMock) Delete(ctx context.Context, id string) error {
	if _, ok := m.assignments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.assignments, id)
	return nil
}

func newTimetableTestHandler(repo *assignmentRepoMock) *TimetableHandler {
	availability := service.NewAvailabilityService(&availabilityRepoMock{}, catalogMock{}, nil, nil)
	svc := service.NewTimetableService(repo, catalogMock{}, availability, nil, nil)
	return NewTimetableHandler(svc)
}

func TestTimetableHandlerCreateInvalidBody(t *testing.T) {
	handler := newTimetableTestHandler(newAssignmentRepoMock())

	c, w := newAvailabilityTestContext(t, http.MethodPost, "/assignments", []byte(`{broken`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerCreateUnknownGroup(t *testing.T) {
	handler := newTimetableTestHandler(newAssignmentRepoMock())

	body, _ := json.Marshal(map[string]string{
		"group_id":    "group-gone",
		"day_of_week": "MONDAY",
		"block_id":    "block-1",
		"subject_id":  "subj-math",
		"teacher_id":  "teacher-1",
	})
	c, w := newAvailabilityTestContext(t, http.MethodPost, "/assignments", body)
	handler.Create(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTimetableHandlerGet(t *testing.T) {
	repo := newAssignmentRepoMock()
	repo.assignments["asg-1"] = &models.Assignment{
		ID: "asg-1", GroupID: "group-10a", DayOfWeek: models.DayMonday,
		BlockID: "block-1", SubjectID: "subj-math", TeacherID: "teacher-1",
	}
	handler := newTimetableTestHandler(repo)

	c, w := newAvailabilityTestContext(t, http.MethodGet, "/assignments/asg-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newAvailabilityTestContext(t, http.MethodGet, "/assignments/asg-gone", nil)
	c.Params = gin.Params{{Key: "id", Value: "asg-gone"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerDelete(t *testing.T) {
	repo := newAssignmentRepoMock()
	repo.assignments["asg-1"] = &models.Assignment{ID: "asg-1", GroupID: "group-10a"}
	handler := newTimetableTestHandler(repo)

	c, w := newAvailabilityTestContext(t, http.MethodDelete, "/assignments/asg-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "asg-1"}}
	handler.Delete(c)
	// gin's test context defers writing a status-only response until the
	// header is flushed; real serving does this at the end of the chain.
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.assignments)
}
