package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrack-id/timetable-api/internal/models"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

type availabilityRepository interface {
	Upsert(ctx context.Context, cell *models.Availability) error
	Find(ctx context.Context, teacherID string, day models.Day, blockID string) (*models.Availability, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Availability, error)
}

type catalogStore interface {
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	FindGroup(ctx context.Context, id string) (*models.Group, error)
	ListBlocks(ctx context.Context) ([]models.Block, error)
	FindBlock(ctx context.Context, id string) (*models.Block, error)
}

// SetAvailabilityRequest marks one teacher/day/block cell.
type SetAvailabilityRequest struct {
	DayOfWeek models.Day `json:"day_of_week" validate:"required"`
	BlockID   string     `json:"block_id" validate:"required"`
	Available *bool      `json:"available" validate:"required"`
}

// AvailabilityService manages per-teacher availability. Cells are stored
// sparsely: absence of a row means available.
type AvailabilityService struct {
	repo      availabilityRepository
	catalog   catalogStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, catalog catalogStore, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, catalog: catalog, validator: validate, logger: logger}
}

// SetAvailable upserts one availability cell. The operation is idempotent.
func (s *AvailabilityService) SetAvailable(ctx context.Context, teacherID string, req SetAvailabilityRequest) (*models.Availability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.checkReferences(ctx, teacherID, req.DayOfWeek, req.BlockID); err != nil {
		return nil, err
	}

	cell := models.Availability{
		TeacherID: teacherID,
		DayOfWeek: req.DayOfWeek,
		BlockID:   req.BlockID,
		Available: *req.Available,
	}
	if err := s.repo.Upsert(ctx, &cell); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability")
	}
	return &cell, nil
}

// IsAvailable returns the availability of (teacher, day, block), defaulting
// to true when no cell was ever stored.
func (s *AvailabilityService) IsAvailable(ctx context.Context, teacherID string, day models.Day, blockID string) (bool, error) {
	cell, err := s.repo.Find(ctx, teacherID, day, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	return cell.Available, nil
}

// ListForTeacher renders the teacher's full week grid. Every (day, block)
// cell appears in the result; cells without a stored row are reported as
// available rather than omitted.
func (s *AvailabilityService) ListForTeacher(ctx context.Context, teacherID string) (*models.TeacherWeek, error) {
	if _, err := s.catalog.FindTeacher(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnknownReference, "unknown teacher")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	blocks, err := s.catalog.ListBlocks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocks")
	}
	stored, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	type cellKey struct {
		day   models.Day
		block string
	}
	overrides := make(map[cellKey]bool, len(stored))
	for _, cell := range stored {
		overrides[cellKey{cell.DayOfWeek, cell.BlockID}] = cell.Available
	}

	week := &models.TeacherWeek{TeacherID: teacherID}
	for _, day := range models.Days {
		for _, block := range blocks {
			available := true
			if v, ok := overrides[cellKey{day, block.ID}]; ok {
				available = v
			}
			week.Cells = append(week.Cells, models.AvailabilityCell{
				DayOfWeek: day,
				BlockID:   block.ID,
				Available: available,
			})
		}
	}
	return week, nil
}

func (s *AvailabilityService) checkReferences(ctx context.Context, teacherID string, day models.Day, blockID string) error {
	if !models.ValidDay(day) {
		return appErrors.Clone(appErrors.ErrUnknownReference, "unknown day of week")
	}
	if _, err := s.catalog.FindTeacher(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnknownReference, "unknown teacher")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if _, err := s.catalog.FindBlock(ctx, blockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnknownReference, "unknown block")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block")
	}
	return nil
}
