package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/models"
)

// One mapping function per entity keeps the list and detail views from
// drifting apart.

type courseMemberDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type courseDTO struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	JoinCode    string            `json:"joinCode"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Teachers    []courseMemberDTO `json:"teachers,omitempty"`
	Students    []courseMemberDTO `json:"students,omitempty"`
}

// buildCourseDTO shapes a course for the API. When includeMembers is
// set the course's memberships must be preloaded with their users.
func buildCourseDTO(course *models.Course, includeMembers bool) courseDTO {
	dto := courseDTO{
		ID:          course.ID,
		Name:        course.Name,
		Description: course.Description,
		JoinCode:    course.JoinCode,
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
	}

	if !includeMembers {
		return dto
	}

	dto.Teachers = []courseMemberDTO{}
	dto.Students = []courseMemberDTO{}
	for _, membership := range course.Memberships {
		member := courseMemberDTO{ID: membership.UserID, Name: membership.User.Name}
		if membership.Role == models.CourseRoleTeacher {
			dto.Teachers = append(dto.Teachers, member)
		} else {
			dto.Students = append(dto.Students, member)
		}
	}
	return dto
}
