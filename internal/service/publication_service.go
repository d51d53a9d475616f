package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edutrack-id/timetable-api/internal/dto"
	"github.com/edutrack-id/timetable-api/internal/models"
	"github.com/edutrack-id/timetable-api/internal/repository"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

type publicationStore interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
	CreateRequest(ctx context.Context, req *models.PublishRequest) error
	HasPending(ctx context.Context) (bool, error)
	FindRequestByID(ctx context.Context, id string) (*models.PublishRequest, error)
	LockRequest(ctx context.Context, tx *sqlx.Tx, id string) (*models.PublishRequest, error)
	ListPending(ctx context.Context) ([]models.PublishRequest, error)
	ReviewRequest(ctx context.Context, exec sqlx.ExtContext, id string, status models.PublishRequestStatus, reviewedBy string, reviewedAt time.Time, reason *string) error
	CreateSnapshot(ctx context.Context, exec sqlx.ExtContext, snapshot *models.Snapshot, assignments []models.Assignment) error
	ListSnapshots(ctx context.Context) ([]models.Snapshot, error)
	FindSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*models.Snapshot, error)
	ListSnapshotAssignments(ctx context.Context, snapshotID string) ([]models.SnapshotAssignment, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

type assignmentLister interface {
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Assignment, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PublicationService runs the request/approval workflow that gates which
// timetable is official. Approval freezes the live grid into an immutable
// snapshot; the grid itself keeps evolving afterwards.
type PublicationService struct {
	repo        publicationStore
	assignments assignmentLister
	audit       auditLogger
	cache       gridCache
	metrics     *MetricsService
	logger      *zap.Logger

	allowConcurrent bool
	cacheTTL        time.Duration
}

// PublicationServiceOption configures the service.
type PublicationServiceOption func(*PublicationService)

// WithConcurrentRequests permits multiple PENDING requests at once.
func WithConcurrentRequests(allow bool) PublicationServiceOption {
	return func(s *PublicationService) { s.allowConcurrent = allow }
}

// WithSnapshotCache attaches a cache for published snapshot payloads.
func WithSnapshotCache(cache gridCache, ttl time.Duration) PublicationServiceOption {
	return func(s *PublicationService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithPublicationMetrics records review outcome counters.
func WithPublicationMetrics(metrics *MetricsService) PublicationServiceOption {
	return func(s *PublicationService) { s.metrics = metrics }
}

// NewPublicationService constructs the service.
func NewPublicationService(repo publicationStore, assignments assignmentLister, audit auditLogger, logger *zap.Logger, opts ...PublicationServiceOption) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PublicationService{
		repo:        repo,
		assignments: assignments,
		audit:       audit,
		logger:      logger,
		cacheTTL:    5 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit creates a PENDING publish request. Unless configured otherwise, a
// second submission while one is pending is rejected.
func (s *PublicationService) Submit(ctx context.Context, requestedBy string) (*models.PublishRequest, error) {
	if strings.TrimSpace(requestedBy) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester is required")
	}
	if !s.allowConcurrent {
		pending, err := s.repo.HasPending(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
		}
		if pending {
			return nil, appErrors.ErrRequestAlreadyPending
		}
	}

	request := &models.PublishRequest{
		Status:      models.PublishRequestPending,
		RequestedBy: requestedBy,
	}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		// Partial unique index on PENDING status backstops a submit race.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrRequestAlreadyPending
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create publish request")
	}

	s.emitAudit(ctx, requestedBy, models.AuditActionPublishSubmit, request.ID, request)
	return request, nil
}

// Approve freezes the current assignment set into a new snapshot and marks
// the request APPROVED, all in one transaction. A concurrent reviewer of the
// same request observes INVALID_STATE.
func (s *PublicationService) Approve(ctx context.Context, requestID, reviewedBy, description string) (*models.Snapshot, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	request, err := s.repo.LockRequest(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publish request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publish request")
	}
	if request.Status != models.PublishRequestPending {
		return nil, appErrors.ErrInvalidState
	}

	assignments, err := s.assignments.ListAll(ctx, tx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current grid")
	}

	if description == "" {
		description = "Timetable published " + time.Now().UTC().Format("2006-01-02")
	}
	snapshot := &models.Snapshot{Description: description, CreatedBy: reviewedBy}
	if err := s.repo.CreateSnapshot(ctx, tx, snapshot, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to freeze snapshot")
	}

	now := time.Now().UTC()
	if err := s.repo.ReviewRequest(ctx, tx, requestID, models.PublishRequestApproved, reviewedBy, now, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidState
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publish request")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
	}

	s.invalidateSnapshots(ctx)
	s.metrics.CountPublishReview(string(models.PublishRequestApproved))
	s.emitAudit(ctx, reviewedBy, models.AuditActionPublishReview, requestID, map[string]interface{}{
		"status":      models.PublishRequestApproved,
		"snapshot_id": snapshot.ID,
	})
	s.logger.Info("timetable published",
		zap.String("request_id", requestID),
		zap.String("snapshot_id", snapshot.ID),
		zap.Int("assignments", len(assignments)))
	return snapshot, nil
}

// Reject marks a PENDING request REJECTED with an optional reason. The live
// grid is untouched and no snapshot is produced.
func (s *PublicationService) Reject(ctx context.Context, requestID, reviewedBy, reason string) (*models.PublishRequest, error) {
	request, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publish request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publish request")
	}
	if request.Status != models.PublishRequestPending {
		return nil, appErrors.ErrInvalidState
	}

	now := time.Now().UTC()
	var reasonPtr *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonPtr = &trimmed
	}
	if err := s.repo.ReviewRequest(ctx, nil, requestID, models.PublishRequestRejected, reviewedBy, now, reasonPtr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidState
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publish request")
	}

	request.Status = models.PublishRequestRejected
	request.ReviewedBy = &reviewedBy
	request.ReviewedAt = &now
	request.Reason = reasonPtr

	s.metrics.CountPublishReview(string(models.PublishRequestRejected))
	s.emitAudit(ctx, reviewedBy, models.AuditActionPublishReview, requestID, map[string]interface{}{
		"status": models.PublishRequestRejected,
		"reason": reason,
	})
	return request, nil
}

// DeleteSnapshot removes a published view. Request history and the live grid
// are unaffected.
func (s *PublicationService) DeleteSnapshot(ctx context.Context, snapshotID, deletedBy string) error {
	if err := s.repo.DeleteSnapshot(ctx, snapshotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete snapshot")
	}
	s.invalidateSnapshots(ctx)
	s.emitAudit(ctx, deletedBy, models.AuditActionSnapshotDelete, snapshotID, nil)
	return nil
}

// ListPending returns requests awaiting review, oldest first.
func (s *PublicationService) ListPending(ctx context.Context) ([]models.PublishRequest, error) {
	requests, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}

// ListSnapshots returns snapshot headers most-recent-first.
func (s *PublicationService) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	snapshots, err := s.repo.ListSnapshots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list snapshots")
	}
	return snapshots, nil
}

// GetSnapshot returns a snapshot with its frozen rows. The latest snapshot
// is the published view students and parents read, so it is cached.
func (s *PublicationService) GetSnapshot(ctx context.Context, id string) (*dto.SnapshotDetail, error) {
	var cached dto.SnapshotDetail
	cacheKey := repository.CacheKeyLatestSnapshot + ":" + id
	if s.cache != nil && s.cache.Get(ctx, cacheKey, &cached) == nil {
		return &cached, nil
	}

	snapshot, err := s.repo.FindSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	rows, err := s.repo.ListSnapshotAssignments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot assignments")
	}

	detail := &dto.SnapshotDetail{Snapshot: *snapshot, Assignments: rows}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, detail, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache snapshot", zap.Error(err))
		}
	}
	return detail, nil
}

// ListUnpublishedGroups returns the groups whose live grid differs from the
// latest snapshot, used to prompt "you have unpublished changes".
func (s *PublicationService) ListUnpublishedGroups(ctx context.Context) ([]dto.UnpublishedGroup, error) {
	live, err := s.assignments.ListAll(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current grid")
	}

	latest, err := s.repo.LatestSnapshot(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest snapshot")
	}

	published := make(map[string]map[string]struct{})
	if latest != nil {
		rows, err := s.repo.ListSnapshotAssignments(ctx, latest.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot assignments")
		}
		for _, row := range rows {
			key := entryKey(row.DayOfWeek, row.BlockID, row.SubjectID, row.TeacherID)
			if published[row.GroupID] == nil {
				published[row.GroupID] = make(map[string]struct{})
			}
			published[row.GroupID][key] = struct{}{}
		}
	}

	current := make(map[string]map[string]struct{})
	for _, a := range live {
		key := entryKey(a.DayOfWeek, a.BlockID, a.SubjectID, a.TeacherID)
		if current[a.GroupID] == nil {
			current[a.GroupID] = make(map[string]struct{})
		}
		current[a.GroupID][key] = struct{}{}
	}

	var out []dto.UnpublishedGroup
	seen := make(map[string]struct{})
	for groupID, entries := range current {
		if !sameEntries(entries, published[groupID]) {
			out = append(out, dto.UnpublishedGroup{GroupID: groupID})
			seen[groupID] = struct{}{}
		}
	}
	// Groups fully cleared since the last snapshot also count as changed.
	for groupID := range published {
		if _, ok := current[groupID]; ok {
			continue
		}
		if _, ok := seen[groupID]; !ok {
			out = append(out, dto.UnpublishedGroup{GroupID: groupID})
		}
	}
	return out, nil
}

func entryKey(day models.Day, blockID, subjectID, teacherID string) string {
	return string(day) + "|" + blockID + "|" + subjectID + "|" + teacherID
}

func sameEntries(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for key := range a {
		if _, ok := b[key]; !ok {
			return false
		}
	}
	return true
}

func (s *PublicationService) invalidateSnapshots(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, repository.CacheKeyLatestSnapshot+"*"); err != nil {
		s.logger.Warn("failed to invalidate snapshot cache", zap.Error(err))
	}
}

func (s *PublicationService) emitAudit(ctx context.Context, actorID, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var values []byte
	if payload != nil {
		values, _ = json.Marshal(payload)
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "timetable",
		ResourceID: &resourceID,
		NewValues:  values,
		IPAddress:  "system",
		UserAgent:  "publication-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
