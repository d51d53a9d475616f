package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrack-id/timetable-api/internal/models"
)

// AvailabilityRepository persists per-teacher availability exceptions. Only
// explicitly set cells are stored; every other cell is implicitly available.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Upsert creates or updates the availability cell for (teacher, day, block).
func (r *AvailabilityRepository) Upsert(ctx context.Context, cell *models.Availability) error {
	if cell.ID == "" {
		cell.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cell.CreatedAt.IsZero() {
		cell.CreatedAt = now
	}
	cell.UpdatedAt = now

	const query = `INSERT INTO teacher_availability (id, teacher_id, day_of_week, block_id, available, created_at, updated_at)
		VALUES (:id, :teacher_id, :day_of_week, :block_id, :available, :created_at, :updated_at)
		ON CONFLICT (teacher_id, day_of_week, block_id) DO UPDATE
		SET available = EXCLUDED.available,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cell); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// Find returns the stored cell for (teacher, day, block), or sql.ErrNoRows
// when the cell was never set explicitly.
func (r *AvailabilityRepository) Find(ctx context.Context, teacherID string, day models.Day, blockID string) (*models.Availability, error) {
	const query = `SELECT id, teacher_id, day_of_week, block_id, available, created_at, updated_at
		FROM teacher_availability WHERE teacher_id = $1 AND day_of_week = $2 AND block_id = $3`
	var cell models.Availability
	if err := r.db.GetContext(ctx, &cell, query, teacherID, day, blockID); err != nil {
		return nil, err
	}
	return &cell, nil
}

// ListByTeacher returns every stored cell for a teacher.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Availability, error) {
	const query = `SELECT id, teacher_id, day_of_week, block_id, available, created_at, updated_at
		FROM teacher_availability WHERE teacher_id = $1 ORDER BY day_of_week ASC, block_id ASC`
	var cells []models.Availability
	if err := r.db.SelectContext(ctx, &cells, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability by teacher: %w", err)
	}
	return cells, nil
}
