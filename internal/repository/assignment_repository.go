package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edutrack-id/timetable-api/internal/models"
)

const assignmentColumns = "id, group_id, day_of_week, block_id, subject_id, teacher_id, created_at, updated_at"

// AssignmentRepository provides persistence for timetable assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginSerializable opens a serializable transaction so the conflict scan and
// the write cannot interleave with a concurrent editor.
func (r *AssignmentRepository) BeginSerializable(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin assignment tx: %w", err)
	}
	return tx, nil
}

// FindByID loads an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE id = $1", assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindBySlot returns every assignment, across all groups, occupying the given
// (day, block) slot. Used by the conflict validation pass.
func (r *AssignmentRepository) FindBySlot(ctx context.Context, exec sqlx.ExtContext, day models.Day, blockID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE day_of_week = $1 AND block_id = $2", assignmentColumns)
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, day, blockID); err != nil {
		return nil, fmt.Errorf("find assignments by slot: %w", err)
	}
	return assignments, nil
}

// CountByGroupSubject returns the number of weekly rows for a (group, subject)
// pair, used to check the subject's weekly-hour quota.
func (r *AssignmentRepository) CountByGroupSubject(ctx context.Context, exec sqlx.ExtContext, groupID, subjectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE group_id = $1 AND subject_id = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, groupID, subjectID); err != nil {
		return 0, fmt.Errorf("count assignments by group and subject: %w", err)
	}
	return count, nil
}

// ListByGroup returns the assignments owned by a group ordered by day/block.
func (r *AssignmentRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE group_id = $1 ORDER BY day_of_week ASC, block_id ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, groupID); err != nil {
		return nil, fmt.Errorf("list assignments by group: %w", err)
	}
	return assignments, nil
}

// ListAll returns the full live grid.
func (r *AssignmentRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments ORDER BY day_of_week ASC, block_id ASC, group_id ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Create stores a new assignment using the provided executor.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, group_id, day_of_week, block_id, subject_id, teacher_id, created_at, updated_at)
		VALUES (:id, :group_id, :day_of_week, :block_id, :subject_id, :teacher_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update rewrites the subject/teacher pair of an existing assignment.
func (r *AssignmentRepository) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET subject_id = :subject_id, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment by id.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assignment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsUniqueViolation reports whether the error is the unique-index backstop
// firing under concurrent writes to the same slot.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}
