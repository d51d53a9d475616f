package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrack-id/timetable-api/internal/models"
)

const publishRequestColumns = "id, status, requested_by, requested_at, reviewed_by, reviewed_at, reason"

// PublicationRepository persists publish requests, snapshots and the frozen
// assignment rows inside each snapshot.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository constructs the repository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

func (r *PublicationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Begin opens a transaction for the approve path, which must read the grid
// and write the snapshot atomically.
func (r *PublicationRepository) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publication tx: %w", err)
	}
	return tx, nil
}

// CreateRequest inserts a new PENDING publish request.
func (r *PublicationRepository) CreateRequest(ctx context.Context, req *models.PublishRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.PublishRequestPending
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	const query = `INSERT INTO publish_requests (id, status, requested_by, requested_at)
		VALUES (:id, :status, :requested_by, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create publish request: %w", err)
	}
	return nil
}

// HasPending reports whether any PENDING request exists.
func (r *PublicationRepository) HasPending(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM publish_requests WHERE status = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, models.PublishRequestPending); err != nil {
		return false, fmt.Errorf("check pending publish requests: %w", err)
	}
	return exists, nil
}

// FindRequestByID loads a publish request by id.
func (r *PublicationRepository) FindRequestByID(ctx context.Context, id string) (*models.PublishRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM publish_requests WHERE id = $1", publishRequestColumns)
	var req models.PublishRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// LockRequest loads a publish request inside the transaction, blocking
// concurrent reviewers of the same request until commit.
func (r *PublicationRepository) LockRequest(ctx context.Context, tx *sqlx.Tx, id string) (*models.PublishRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM publish_requests WHERE id = $1 FOR UPDATE", publishRequestColumns)
	var req models.PublishRequest
	if err := tx.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending returns PENDING requests oldest-first.
func (r *PublicationRepository) ListPending(ctx context.Context) ([]models.PublishRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM publish_requests WHERE status = $1 ORDER BY requested_at ASC", publishRequestColumns)
	var requests []models.PublishRequest
	if err := r.db.SelectContext(ctx, &requests, query, models.PublishRequestPending); err != nil {
		return nil, fmt.Errorf("list pending publish requests: %w", err)
	}
	return requests, nil
}

// ReviewRequest flips a PENDING request to its reviewed status. The status
// guard in the WHERE clause makes the second concurrent reviewer observe
// sql.ErrNoRows instead of overwriting the first decision.
func (r *PublicationRepository) ReviewRequest(ctx context.Context, exec sqlx.ExtContext, id string, status models.PublishRequestStatus, reviewedBy string, reviewedAt time.Time, reason *string) error {
	const query = `UPDATE publish_requests
		SET status = $1, reviewed_by = $2, reviewed_at = $3, reason = $4
		WHERE id = $5 AND status = $6`
	result, err := r.exec(exec).ExecContext(ctx, query, status, reviewedBy, reviewedAt, reason, id, models.PublishRequestPending)
	if err != nil {
		return fmt.Errorf("review publish request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish request rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateSnapshot freezes the provided assignment set as a new snapshot. The
// child rows are written once and never updated afterwards.
func (r *PublicationRepository) CreateSnapshot(ctx context.Context, exec sqlx.ExtContext, snapshot *models.Snapshot, assignments []models.Assignment) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const insertSnapshot = `INSERT INTO snapshots (id, description, created_by, created_at)
		VALUES (:id, :description, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertSnapshot, snapshot); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	const insertRow = `INSERT INTO snapshot_assignments (id, snapshot_id, group_id, day_of_week, block_id, subject_id, teacher_id)
		VALUES (:id, :snapshot_id, :group_id, :day_of_week, :block_id, :subject_id, :teacher_id)`
	for _, a := range assignments {
		row := models.SnapshotAssignment{
			ID:         uuid.NewString(),
			SnapshotID: snapshot.ID,
			GroupID:    a.GroupID,
			DayOfWeek:  a.DayOfWeek,
			BlockID:    a.BlockID,
			SubjectID:  a.SubjectID,
			TeacherID:  a.TeacherID,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insertRow, &row); err != nil {
			return fmt.Errorf("insert snapshot assignment: %w", err)
		}
	}
	return nil
}

// ListSnapshots returns snapshots most-recent-first.
func (r *PublicationRepository) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	const query = `SELECT id, description, created_by, created_at FROM snapshots ORDER BY created_at DESC`
	var snapshots []models.Snapshot
	if err := r.db.SelectContext(ctx, &snapshots, query); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// FindSnapshot loads a snapshot header by id.
func (r *PublicationRepository) FindSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	const query = `SELECT id, description, created_by, created_at FROM snapshots WHERE id = $1`
	var snapshot models.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query, id); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LatestSnapshot returns the most recent snapshot header, or sql.ErrNoRows
// when nothing has been published yet.
func (r *PublicationRepository) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	const query = `SELECT id, description, created_by, created_at FROM snapshots ORDER BY created_at DESC LIMIT 1`
	var snapshot models.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListSnapshotAssignments returns the frozen rows of one snapshot.
func (r *PublicationRepository) ListSnapshotAssignments(ctx context.Context, snapshotID string) ([]models.SnapshotAssignment, error) {
	const query = `SELECT id, snapshot_id, group_id, day_of_week, block_id, subject_id, teacher_id
		FROM snapshot_assignments WHERE snapshot_id = $1 ORDER BY day_of_week ASC, block_id ASC, group_id ASC`
	var rows []models.SnapshotAssignment
	if err := r.db.SelectContext(ctx, &rows, query, snapshotID); err != nil {
		return nil, fmt.Errorf("list snapshot assignments: %w", err)
	}
	return rows, nil
}

// DeleteSnapshot removes a snapshot and its frozen rows. The live grid and
// the request history are untouched.
func (r *PublicationRepository) DeleteSnapshot(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM snapshot_assignments WHERE snapshot_id = $1`, id); err != nil {
		return fmt.Errorf("delete snapshot assignments: %w", err)
	}

	var result sql.Result
	result, err = tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = fmt.Errorf("snapshot rows affected: %w", raErr)
		return err
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete snapshot: %w", err)
	}
	return nil
}
