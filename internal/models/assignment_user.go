package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentUser tracks one student's state on one assignment:
// assigned, then submitted, then graded. SubmittedAt is written at
// most once; grading fills it if the student never submitted
// explicitly. Nothing un-submits or un-grades.
type AssignmentUser struct {
	BaseModel
	UserID       uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_assignment"`
	AssignmentID uuid.UUID  `json:"assignmentID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_assignment"`
	AssignedAt   time.Time  `json:"assignedAt" gorm:"not null"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	Grade        *float64   `json:"grade,omitempty" gorm:"type:decimal(5,2)"`

	User       User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Assignment Assignment `json:"-" gorm:"foreignKey:AssignmentID"`
}

func (AssignmentUser) TableName() string {
	return "assignment_users"
}
