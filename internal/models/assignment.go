package models

import "time"

// Assignment binds one (group, day, block) slot to a (subject, teacher) pair.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	DayOfWeek Day       `db:"day_of_week" json:"day_of_week"`
	BlockID   string    `db:"block_id" json:"block_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SlotKey returns the slot identity independent of the owning group.
func (a Assignment) SlotKey() SlotKey {
	return SlotKey{DayOfWeek: a.DayOfWeek, BlockID: a.BlockID}
}

// SlotKey identifies one (day, block) cell of the week.
type SlotKey struct {
	DayOfWeek Day    `json:"day_of_week"`
	BlockID   string `json:"block_id"`
}

// GridCell groups the assignments occupying one slot, keyed by group, as the
// rendering layer consumes them.
type GridCell struct {
	DayOfWeek Day                   `json:"day_of_week"`
	BlockID   string                `json:"block_id"`
	ByGroup   map[string]Assignment `json:"by_group"`
}

// AssignmentConflict describes the existing assignment that caused a rejection.
type AssignmentConflict struct {
	AssignmentID string `json:"assignment_id"`
	GroupID      string `json:"group_id"`
	DayOfWeek    Day    `json:"day_of_week"`
	BlockID      string `json:"block_id"`
	SubjectID    string `json:"subject_id"`
	TeacherID    string `json:"teacher_id"`
	Dimension    string `json:"dimension"`
}

// AssignmentConflictError is returned when a proposed assignment collides with
// an existing one.
type AssignmentConflictError struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Conflict AssignmentConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
