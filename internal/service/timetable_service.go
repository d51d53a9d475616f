package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edutrack-id/timetable-api/internal/models"
	"github.com/edutrack-id/timetable-api/internal/repository"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

type assignmentRepository interface {
	BeginSerializable(ctx context.Context) (*sqlx.Tx, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindBySlot(ctx context.Context, exec sqlx.ExtContext, day models.Day, blockID string) ([]models.Assignment, error)
	CountByGroupSubject(ctx context.Context, exec sqlx.ExtContext, groupID, subjectID string) (int, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Assignment, error)
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Assignment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type availabilityChecker interface {
	IsAvailable(ctx context.Context, teacherID string, day models.Day, blockID string) (bool, error)
}

type gridCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateAssignmentRequest describes payload for creating an assignment.
type CreateAssignmentRequest struct {
	GroupID   string     `json:"group_id" validate:"required"`
	DayOfWeek models.Day `json:"day_of_week" validate:"required"`
	BlockID   string     `json:"block_id" validate:"required"`
	SubjectID string     `json:"subject_id" validate:"required"`
	TeacherID string     `json:"teacher_id" validate:"required"`
}

// UpdateAssignmentRequest rewrites the subject/teacher pair of a slot.
type UpdateAssignmentRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// AssignmentResult pairs the stored row with any advisory warnings.
type AssignmentResult struct {
	Assignment *models.Assignment
	Warnings   []string
}

// TimetableService coordinates the live grid: every write runs the conflict
// rules inside a serializable transaction so two editors cannot both claim
// the same slot.
type TimetableService struct {
	repo         assignmentRepository
	catalog      catalogStore
	availability availabilityChecker
	cache        gridCache
	metrics      *MetricsService
	quotaHard    bool
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
}

// TimetableServiceOption configures the service.
type TimetableServiceOption func(*TimetableService)

// WithQuotaHard upgrades the weekly-hour quota to a hard rejection.
func WithQuotaHard(hard bool) TimetableServiceOption {
	return func(s *TimetableService) { s.quotaHard = hard }
}

// WithGridCache attaches a cache for rendered grids.
func WithGridCache(cache gridCache, ttl time.Duration) TimetableServiceOption {
	return func(s *TimetableService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithTimetableMetrics records rejection counters.
func WithTimetableMetrics(metrics *MetricsService) TimetableServiceOption {
	return func(s *TimetableService) { s.metrics = metrics }
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(repo assignmentRepository, catalog catalogStore, availability availabilityChecker, validate *validator.Validate, logger *zap.Logger, opts ...TimetableServiceOption) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimetableService{
		repo:         repo,
		catalog:      catalog,
		availability: availability,
		cacheTTL:     5 * time.Minute,
		validator:    validate,
		logger:       logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create inserts a new assignment after running the conflict rules.
func (s *TimetableService) Create(ctx context.Context, req CreateAssignmentRequest) (*AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	proposed := models.Assignment{
		GroupID:   req.GroupID,
		DayOfWeek: models.Day(strings.ToUpper(string(req.DayOfWeek))),
		BlockID:   req.BlockID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
	}
	subject, err := s.checkReferences(ctx, &proposed)
	if err != nil {
		return nil, err
	}

	warnings, err := s.writeValidated(ctx, &proposed, subject, "", func(tx *sqlx.Tx) error {
		return s.repo.Create(ctx, tx, &proposed)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateGrids(ctx)
	return &AssignmentResult{Assignment: &proposed, Warnings: warnings}, nil
}

// Update re-validates the slot as if it were freed and re-filled, ignoring
// the row being replaced so it cannot conflict with itself.
func (s *TimetableService) Update(ctx context.Context, id string, req UpdateAssignmentRequest) (*AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	updated := models.Assignment{
		ID:        existing.ID,
		GroupID:   existing.GroupID,
		DayOfWeek: existing.DayOfWeek,
		BlockID:   existing.BlockID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		CreatedAt: existing.CreatedAt,
	}
	subject, err := s.checkReferences(ctx, &updated)
	if err != nil {
		return nil, err
	}

	warnings, err := s.writeValidated(ctx, &updated, subject, existing.ID, func(tx *sqlx.Tx) error {
		return s.repo.Update(ctx, tx, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateGrids(ctx)
	return &AssignmentResult{Assignment: &updated, Warnings: warnings}, nil
}

// Delete removes an assignment. Freeing a slot can never violate an
// invariant, so only existence is checked.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.invalidateGrids(ctx)
	return nil
}

// Get loads a single assignment.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// ListByGroup returns the assignments owned by one group.
func (s *TimetableService) ListByGroup(ctx context.Context, groupID string) ([]models.Assignment, error) {
	if _, err := s.catalog.FindGroup(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnknownReference, "unknown group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	key := fmt.Sprintf(repository.CacheKeyGroupGrid, groupID)
	var cached []models.Assignment
	if s.cache != nil && s.cache.Get(ctx, key, &cached) == nil {
		return cached, nil
	}

	assignments, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group assignments")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, assignments, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache group grid", zap.Error(err))
		}
	}
	return assignments, nil
}

// ListAll returns the full grid shaped as (day, block) cells holding the
// per-group entries, ready for rendering.
func (s *TimetableService) ListAll(ctx context.Context) ([]models.GridCell, error) {
	var cached []models.GridCell
	if s.cache != nil && s.cache.Get(ctx, repository.CacheKeyGridAll, &cached) == nil {
		return cached, nil
	}

	assignments, err := s.repo.ListAll(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	cellIndex := make(map[models.SlotKey]int)
	var cells []models.GridCell
	for _, a := range assignments {
		key := a.SlotKey()
		idx, ok := cellIndex[key]
		if !ok {
			idx = len(cells)
			cellIndex[key] = idx
			cells = append(cells, models.GridCell{
				DayOfWeek: a.DayOfWeek,
				BlockID:   a.BlockID,
				ByGroup:   make(map[string]models.Assignment),
			})
		}
		cells[idx].ByGroup[a.GroupID] = a
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, repository.CacheKeyGridAll, cells, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache grid", zap.Error(err))
		}
	}
	return cells, nil
}

// writeValidated runs the conflict rules and the write inside one
// serializable transaction. The DB unique index on (group, day, block) acts
// as a backstop if two transactions race past the scan.
func (s *TimetableService) writeValidated(ctx context.Context, proposed *models.Assignment, subject *models.Subject, ignoreID string, write func(tx *sqlx.Tx) error) ([]string, error) {
	available, err := s.availability.IsAvailable(ctx, proposed.TeacherID, proposed.DayOfWeek, proposed.BlockID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginSerializable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.repo.FindBySlot(ctx, tx, proposed.DayOfWeek, proposed.BlockID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan slot")
	}

	if err := CheckConflicts(ConflictInput{
		Proposed:         *proposed,
		Subject:          subject,
		TeacherAvailable: available,
		ExistingAtSlot:   existing,
		IgnoreID:         ignoreID,
	}); err != nil {
		s.countRejection(err)
		return nil, err
	}

	weeklyCount, err := s.repo.CountByGroupSubject(ctx, tx, proposed.GroupID, proposed.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weekly hours")
	}
	if ignoreID != "" {
		// The replaced row may already count against the same subject.
		if prev, err := s.repo.FindByID(ctx, ignoreID); err == nil && prev.SubjectID == proposed.SubjectID {
			weeklyCount--
		}
	}

	var warnings []string
	if QuotaExceeded(subject, weeklyCount) {
		if s.quotaHard {
			s.countRejection(appErrors.ErrQuotaExceeded)
			return nil, appErrors.Clone(appErrors.ErrQuotaExceeded,
				fmt.Sprintf("subject quota is %d hours per week", subject.WeeklyHours))
		}
		warnings = append(warnings, fmt.Sprintf("weekly hour quota for subject exceeded (%d allowed)", subject.WeeklyHours))
	}

	if err := write(tx); err != nil {
		if repository.IsUniqueViolation(err) {
			s.countRejection(appErrors.ErrSlotOccupied)
			return nil, appErrors.Clone(appErrors.ErrSlotOccupied, "slot was claimed by a concurrent edit")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assignment")
	}

	if err := tx.Commit(); err != nil {
		if repository.IsUniqueViolation(err) {
			s.countRejection(appErrors.ErrSlotOccupied)
			return nil, appErrors.Clone(appErrors.ErrSlotOccupied, "slot was claimed by a concurrent edit")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment")
	}
	return warnings, nil
}

func (s *TimetableService) checkReferences(ctx context.Context, proposed *models.Assignment) (*models.Subject, error) {
	if !models.ValidDay(proposed.DayOfWeek) {
		return nil, appErrors.Clone(appErrors.ErrUnknownReference, "unknown day of week")
	}
	if _, err := s.catalog.FindGroup(ctx, proposed.GroupID); err != nil {
		return nil, s.referenceError(err, "unknown group", "failed to load group")
	}
	subject, err := s.catalog.FindSubject(ctx, proposed.SubjectID)
	if err != nil {
		return nil, s.referenceError(err, "unknown subject", "failed to load subject")
	}
	if _, err := s.catalog.FindTeacher(ctx, proposed.TeacherID); err != nil {
		return nil, s.referenceError(err, "unknown teacher", "failed to load teacher")
	}
	if _, err := s.catalog.FindBlock(ctx, proposed.BlockID); err != nil {
		return nil, s.referenceError(err, "unknown block", "failed to load block")
	}
	return subject, nil
}

func (s *TimetableService) referenceError(err error, unknownMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrUnknownReference, unknownMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}

func (s *TimetableService) invalidateGrids(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "timetable:grid:*"); err != nil {
		s.logger.Warn("failed to invalidate grid cache", zap.Error(err))
	}
}

func (s *TimetableService) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.CountRejection(appErrors.FromError(err).Code)
}
