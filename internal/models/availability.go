package models

import "time"

// Availability marks a single teacher/day/block cell. Cells without a stored
// row are treated as available, so the table only ever holds exceptions.
type Availability struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek Day       `db:"day_of_week" json:"day_of_week"`
	BlockID   string    `db:"block_id" json:"block_id"`
	Available bool      `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AvailabilityCell is one cell of a teacher's rendered week grid.
type AvailabilityCell struct {
	DayOfWeek Day    `json:"day_of_week"`
	BlockID   string `json:"block_id"`
	Available bool   `json:"available"`
}

// TeacherWeek is a teacher's full availability grid with default-true fill-in.
type TeacherWeek struct {
	TeacherID string             `json:"teacher_id"`
	Cells     []AvailabilityCell `json:"cells"`
}
