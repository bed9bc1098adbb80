package models

import "github.com/google/uuid"

const (
	ActivityAssignmentAssigned = "assignment_assigned"
	ActivityAssignmentGraded   = "assignment_graded"
	ActivityCourseJoined       = "course_joined"
)

// Activity is one entry in a user's notification feed.
type Activity struct {
	BaseModel
	UserID       uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	Type         string     `json:"type" gorm:"type:varchar(50);not null"`
	Message      string     `json:"message" gorm:"type:text;not null"`
	CourseID     *uuid.UUID `json:"courseID,omitempty" gorm:"type:uuid;index"`
	AssignmentID *uuid.UUID `json:"assignmentID,omitempty" gorm:"type:uuid;index"`
	IsRead       bool       `json:"isRead" gorm:"not null;default:false;index"`
}

func (Activity) TableName() string {
	return "activities"
}
