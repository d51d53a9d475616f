package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack-id/timetable-api/internal/models"
	"github.com/edutrack-id/timetable-api/internal/service"
	"github.com/edutrack-id/timetable-api/pkg/response"
)

type availabilityRepoMock struct {
	cells []models.Availability
}

func (m *availabilityRepoMock) Upsert(ctx context.Context, cell *models.Availability) error {
	m.cells = append(m.cells, *cell)
	return nil
}

func (m *availabilityRepoMock) Find(ctx context.Context, teacherID string, day models.Day, blockID string) (*models.Availability, error) {
	for i := range m.cells {
		if m.cells[i].TeacherID == teacherID && m.cells[i].DayOfWeek == day && m.cells[i].BlockID == blockID {
			return &m.cells[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *availabilityRepoMock) ListByTeacher(ctx context.Context, teacherID string) ([]models.Availability, error) {
	return m.cells, nil
}

type catalogMock struct{}

func (catalogMock) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return []models.Teacher{{ID: "teacher-1", FullName: "Dewi Lestari"}}, nil
}

func (catalogMock) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	if id != "teacher-1" {
		return nil, sql.ErrNoRows
	}
	return &models.Teacher{ID: id, FullName: "Dewi Lestari"}, nil
}

func (catalogMock) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	return []models.Subject{{ID: "subj-math", Name: "Mathematics", WeeklyHours: 4}}, nil
}

func (catalogMock) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	if id != "subj-math" {
		return nil, sql.ErrNoRows
	}
	return &models.Subject{ID: id, Name: "Mathematics", WeeklyHours: 4}, nil
}

func (catalogMock) ListGroups(ctx context.Context) ([]models.Group, error) {
	return []models.Group{{ID: "group-10a", Name: "10A", Level: "10"}}, nil
}

func (catalogMock) FindGroup(ctx context.Context, id string) (*models.Group, error) {
	if id != "group-10a" {
		return nil, sql.ErrNoRows
	}
	return &models.Group{ID: id, Name: "10A", Level: "10"}, nil
}

func (catalogMock) ListBlocks(ctx context.Context) ([]models.Block, error) {
	return []models.Block{
		{ID: "block-1", Label: "1", Position: 1},
		{ID: "block-2", Label: "2", Position: 2},
	}, nil
}

func (catalogMock) FindBlock(ctx context.Context, id string) (*models.Block, error) {
	if id != "block-1" && id != "block-2" {
		return nil, sql.ErrNoRows
	}
	return &models.Block{ID: id}, nil
}

func newAvailabilityTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAvailabilityHandlerSetInvalidBody(t *testing.T) {
	svc := service.NewAvailabilityService(&availabilityRepoMock{}, catalogMock{}, nil, nil)
	handler := NewAvailabilityHandler(svc)

	c, w := newAvailabilityTestContext(t, http.MethodPut, "/teachers/teacher-1/availability", []byte(`not json`))
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.Set(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerSetAndWeek(t *testing.T) {
	repo := &availabilityRepoMock{}
	svc := service.NewAvailabilityService(repo, catalogMock{}, nil, nil)
	handler := NewAvailabilityHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"day_of_week": "MONDAY",
		"block_id":    "block-1",
		"available":   false,
	})
	c, w := newAvailabilityTestContext(t, http.MethodPut, "/teachers/teacher-1/availability", body)
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.Set(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.cells, 1)

	c, w = newAvailabilityTestContext(t, http.MethodGet, "/teachers/teacher-1/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.Week(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var week models.TeacherWeek
	require.NoError(t, json.Unmarshal(payload, &week))
	assert.Len(t, week.Cells, 10)
}

func TestAvailabilityHandlerWeekUnknownTeacher(t *testing.T) {
	svc := service.NewAvailabilityService(&availabilityRepoMock{}, catalogMock{}, nil, nil)
	handler := NewAvailabilityHandler(svc)

	c, w := newAvailabilityTestContext(t, http.MethodGet, "/teachers/teacher-gone/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "teacher-gone"}}

	handler.Week(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
