package dto

import "github.com/edutrack-id/timetable-api/internal/models"

// SubmitPublishRequest creates a new publish request for the current grid.
type SubmitPublishRequest struct {
	// Description is carried onto the snapshot if the request is approved.
	Description string `json:"description"`
}

// RejectPublishRequest carries the reviewer's optional reason.
type RejectPublishRequest struct {
	Reason string `json:"reason"`
}

// ApprovePublishRequest lets the reviewer override the snapshot description.
type ApprovePublishRequest struct {
	Description string `json:"description"`
}

// SnapshotDetail bundles a snapshot header with its frozen rows.
type SnapshotDetail struct {
	Snapshot    models.Snapshot             `json:"snapshot"`
	Assignments []models.SnapshotAssignment `json:"assignments"`
}

// UnpublishedGroup flags a group whose live grid differs from the latest
// published snapshot.
type UnpublishedGroup struct {
	GroupID string `json:"group_id"`
}
