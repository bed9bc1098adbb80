package models

import (
	"time"

	"github.com/google/uuid"
)

type Assignment struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text;not null"`
	CourseID    uuid.UUID `json:"courseID" gorm:"type:uuid;not null;index"`
	DueDate     time.Time `json:"dueDate" gorm:"not null"`

	Course Course           `json:"-" gorm:"foreignKey:CourseID"`
	Users  []AssignmentUser `json:"users,omitempty" gorm:"foreignKey:AssignmentID"`
}

func (Assignment) TableName() string {
	return "assignments"
}
