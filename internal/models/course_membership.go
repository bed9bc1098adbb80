package models

import (
	"time"

	"github.com/google/uuid"
)

// CourseRole is a user's role within one course, independent of their
// platform-wide UserRole.
type CourseRole string

const (
	CourseRoleTeacher CourseRole = "teacher"
	CourseRoleStudent CourseRole = "student"
)

// CourseMembership links a user to a course. The composite unique
// index is the authoritative guard against duplicate enrollment; the
// friendly pre-check in handlers is advisory only.
type CourseMembership struct {
	BaseModel
	UserID   uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_course"`
	CourseID uuid.UUID  `json:"courseID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_course"`
	Role     CourseRole `json:"role" gorm:"type:varchar(20);not null;default:'student'"`
	JoinedAt time.Time  `json:"joinedAt" gorm:"not null"`

	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Course Course `json:"-" gorm:"foreignKey:CourseID"`
}

func (CourseMembership) TableName() string {
	return "course_memberships"
}
