package models

import "time"

// Day enumerates the five school weekdays. Weekend days are never scheduled.
type Day string

const (
	DayMonday    Day = "MONDAY"
	DayTuesday   Day = "TUESDAY"
	DayWednesday Day = "WEDNESDAY"
	DayThursday  Day = "THURSDAY"
	DayFriday    Day = "FRIDAY"
)

// Days lists the school week in order.
var Days = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday}

// ValidDay reports whether the value is one of the five school weekdays.
func ValidDay(d Day) bool {
	switch d {
	case DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday:
		return true
	}
	return false
}

// Block is a fixed daily time interval shared by the whole school.
type Block struct {
	ID        string    `db:"id" json:"id"`
	Label     string    `db:"label" json:"label"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Teacher represents an instructor record.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Subject represents an academic subject. WeeklyHours is the number of blocks
// the subject should occupy per week. JointWith, when set, names the partner
// group the subject is co-taught to in the same slot by the same teacher.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	WeeklyHours int       `db:"weekly_hours" json:"weekly_hours"`
	JointWith   *string   `db:"joint_with" json:"joint_with,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsJointWith reports whether the subject is co-taught to the given group.
func (s *Subject) IsJointWith(groupID string) bool {
	return s != nil && s.JointWith != nil && *s.JointWith == groupID
}

// Group represents a class group owning one weekly timetable.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
