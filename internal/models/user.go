package models

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleTeacher UserRole = "teacher"
	UserRoleStudent UserRole = "student"
)

func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleTeacher || r == UserRoleStudent
}

type User struct {
	BaseModel
	Name              string   `json:"name" gorm:"type:varchar(100);not null"`
	Email             string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash      string   `json:"-" gorm:"type:text;not null"`
	Role              UserRole `json:"role" gorm:"type:varchar(20);not null;default:'student'"`
	ProfilePictureURL *string  `json:"profilePictureUrl,omitempty" gorm:"type:text"`

	Memberships     []CourseMembership `json:"-" gorm:"foreignKey:UserID"`
	AssignmentUsers []AssignmentUser   `json:"-" gorm:"foreignKey:UserID"`
}
