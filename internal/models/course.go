package models

type Course struct {
	BaseModel
	Name        string `json:"name" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	JoinCode    string `json:"joinCode" gorm:"type:varchar(9);uniqueIndex;not null"`

	Memberships []CourseMembership `json:"memberships,omitempty" gorm:"foreignKey:CourseID"`
	Assignments []Assignment       `json:"-" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}
