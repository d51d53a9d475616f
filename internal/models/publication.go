package models

import "time"

// PublishRequestStatus captures workflow states for publication requests.
type PublishRequestStatus string

const (
	PublishRequestPending  PublishRequestStatus = "PENDING"
	PublishRequestApproved PublishRequestStatus = "APPROVED"
	PublishRequestRejected PublishRequestStatus = "REJECTED"
)

// PublishRequest asks to freeze the current timetable as official. It is
// reviewed by an admin or director and either approved (producing a Snapshot)
// or rejected with an optional reason.
type PublishRequest struct {
	ID          string               `db:"id" json:"id"`
	Status      PublishRequestStatus `db:"status" json:"status"`
	RequestedBy string               `db:"requested_by" json:"requested_by"`
	RequestedAt time.Time            `db:"requested_at" json:"requested_at"`
	ReviewedBy  *string              `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time           `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Reason      *string              `db:"reason" json:"reason,omitempty"`
}

// Snapshot is an immutable copy of the full assignment set taken at approval
// time. Later edits to the live grid never alter an existing snapshot.
type Snapshot struct {
	ID          string    `db:"id" json:"id"`
	Description string    `db:"description" json:"description"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SnapshotAssignment is one frozen assignment row inside a snapshot.
type SnapshotAssignment struct {
	ID         string `db:"id" json:"id"`
	SnapshotID string `db:"snapshot_id" json:"snapshot_id"`
	GroupID    string `db:"group_id" json:"group_id"`
	DayOfWeek  Day    `db:"day_of_week" json:"day_of_week"`
	BlockID    string `db:"block_id" json:"block_id"`
	SubjectID  string `db:"subject_id" json:"subject_id"`
	TeacherID  string `db:"teacher_id" json:"teacher_id"`
}
