package service

import (
	"github.com/edutrack-id/timetable-api/internal/models"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
)

// ConflictInput is everything the conflict rules need, collected by the
// caller so the rules themselves stay pure.
type ConflictInput struct {
	// Proposed is the assignment being created or updated.
	Proposed models.Assignment
	// Subject is the proposed subject, used for the joint-teaching exception.
	Subject *models.Subject
	// TeacherAvailable is the availability of the proposed teacher at the slot.
	TeacherAvailable bool
	// ExistingAtSlot holds every assignment, across all groups, occupying the
	// proposed (day, block) slot.
	ExistingAtSlot []models.Assignment
	// IgnoreID excludes the row being replaced during an update.
	IgnoreID string
}

// CheckConflicts applies the slot rules in order, first failure wins:
// teacher availability, slot exclusivity, teacher double-booking. Reference
// existence is checked by the service before these rules run. A nil return
// means the proposed assignment is admissible.
func CheckConflicts(in ConflictInput) error {
	if !in.TeacherAvailable {
		return appErrors.ErrTeacherUnavailable
	}

	for _, item := range in.ExistingAtSlot {
		if in.IgnoreID != "" && item.ID == in.IgnoreID {
			continue
		}
		if item.GroupID == in.Proposed.GroupID {
			return conflictError(appErrors.ErrSlotOccupied, "SLOT", "slot already has an assignment for this group", item)
		}
		if item.TeacherID == in.Proposed.TeacherID {
			if isJointPair(in.Proposed, in.Subject, item) {
				continue
			}
			return conflictError(appErrors.ErrTeacherDoubleBooked, "TEACHER", "teacher already teaches another group at this slot", item)
		}
	}
	return nil
}

// isJointPair reports whether the existing row and the proposed one form the
// declared joint-subject pair: identical subject and teacher in the same
// slot, with the subject linking the two groups. The linkage is accepted in
// either direction so both sides of the pair can be entered first.
func isJointPair(proposed models.Assignment, subject *models.Subject, existing models.Assignment) bool {
	if subject == nil {
		return false
	}
	if existing.SubjectID != proposed.SubjectID || existing.TeacherID != proposed.TeacherID {
		return false
	}
	return subject.IsJointWith(existing.GroupID) || subject.IsJointWith(proposed.GroupID)
}

// QuotaExceeded reports whether adding one more row for (group, subject)
// would push the weekly count past the subject's quota. weeklyCount is the
// current row count excluding the row being replaced during an update.
func QuotaExceeded(subject *models.Subject, weeklyCount int) bool {
	if subject == nil || subject.WeeklyHours <= 0 {
		return false
	}
	return weeklyCount+1 > subject.WeeklyHours
}

func conflictError(base *appErrors.Error, dimension, message string, existing models.Assignment) error {
	conflict := models.AssignmentConflict{
		AssignmentID: existing.ID,
		GroupID:      existing.GroupID,
		DayOfWeek:    existing.DayOfWeek,
		BlockID:      existing.BlockID,
		SubjectID:    existing.SubjectID,
		TeacherID:    existing.TeacherID,
		Dimension:    dimension,
	}
	domainErr := &models.AssignmentConflictError{Type: dimension, Message: message, Conflict: conflict}
	return appErrors.Wrap(domainErr, base.Code, base.Status, base.Message)
}
