package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/models"
	"gorm.io/gorm"
)

// AccessService centralizes the membership predicates the handlers
// share. Checks run at the point of data access; nothing assumes an
// upstream handler already verified membership.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// CanViewCourse reports whether the user holds any membership in the
// course, enrolled or teaching.
func (a *AccessService) CanViewCourse(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := a.DB.WithContext(ctx).
		Model(&models.CourseMembership{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsCourseTeacher reports whether the user holds a Teacher membership
// in the course. Course-scoped mutations consult this, not the global
// role.
func (a *AccessService) IsCourseTeacher(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := a.DB.WithContext(ctx).
		Model(&models.CourseMembership{}).
		Where("course_id = ? AND user_id = ? AND role = ?", courseID, userID, models.CourseRoleTeacher).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CanViewAssignment reports whether the caller may see an assignment:
// teachers and admins see everything, students only assignments they
// hold an assignment_users row for.
func (a *AccessService) CanViewAssignment(ctx context.Context, userID uuid.UUID, role models.UserRole, assignmentID uuid.UUID) (bool, error) {
	if role == models.UserRoleTeacher || role == models.UserRoleAdmin {
		return true, nil
	}

	var count int64
	err := a.DB.WithContext(ctx).
		Model(&models.AssignmentUser{}).
		Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
