package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edutrack-id/timetable-api/internal/models"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

// CatalogService exposes the read-only reference data the timetable consumes.
type CatalogService struct {
	repo   catalogStore
	logger *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(repo catalogStore, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// ListTeachers returns the active teacher roster.
func (s *CatalogService) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.ListTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// ListSubjects returns the subject catalog with quotas and joint linkage.
func (s *CatalogService) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// ListGroups returns the group roster.
func (s *CatalogService) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// ListBlocks returns the fixed block list in school-day order.
func (s *CatalogService) ListBlocks(ctx context.Context) ([]models.Block, error) {
	blocks, err := s.repo.ListBlocks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	return blocks, nil
}
