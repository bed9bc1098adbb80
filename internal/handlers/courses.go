package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/purrfect/backend/internal/middleware"
	"github.com/purrfect/backend/internal/models"
	"github.com/purrfect/backend/internal/services"
	"github.com/purrfect/backend/pkg/logger"
	"github.com/purrfect/backend/pkg/utils"
	"gorm.io/gorm"
)

type CoursesHandler struct {
	DB     *gorm.DB
	Access *services.AccessService
	Audit  *services.AuditService
}

func NewCoursesHandler(db *gorm.DB, access *services.AccessService, audit *services.AuditService) *CoursesHandler {
	return &CoursesHandler{DB: db, Access: access, Audit: audit}
}

type createCourseRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

func (h *CoursesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	// Join codes are random; retry a few times in case one collides
	// with an existing course. Each attempt runs its own transaction
	// because a unique violation aborts the surrounding one on
	// postgres.
	var course models.Course
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		code, codeErr := utils.GenerateJoinCode()
		if codeErr != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating course")
		}

		course = models.Course{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			JoinCode:    code,
		}

		err = h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&course).Error; err != nil {
				return err
			}

			membership := models.CourseMembership{
				UserID:   currentUser.ID,
				CourseID: course.ID,
				Role:     models.CourseRoleTeacher,
				JoinedAt: time.Now().UTC(),
			}
			return tx.Create(&membership).Error
		})
		if err == nil || !isDuplicateKey(err) {
			break
		}
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating course")
	}

	logger.InfoWithUser(currentUser.ID.String(), "course_created", map[string]interface{}{
		"course_id":   course.ID.String(),
		"course_name": course.Name,
	})
	h.Audit.Record(services.AuditEntry{
		UserID:    &currentUser.ID,
		Action:    "course.create",
		TargetID:  &course.ID,
		IPAddress: c.IP(),
	})

	return utils.Success(c, fiber.StatusCreated, buildCourseDTO(&course, false))
}

func (h *CoursesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var courses []models.Course
	if err := h.DB.
		Model(&models.Course{}).
		Joins("JOIN course_memberships ON course_memberships.course_id = courses.id").
		Where("course_memberships.user_id = ?", currentUser.ID).
		Order("courses.created_at DESC").
		Find(&courses).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing courses")
	}

	dtos := make([]courseDTO, 0, len(courses))
	for i := range courses {
		dtos = append(dtos, buildCourseDTO(&courses[i], false))
	}
	return utils.Success(c, fiber.StatusOK, dtos)
}

func (h *CoursesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	// Absence and lack of membership look the same to the caller so
	// course ids cannot be probed.
	visible, err := h.Access.CanViewCourse(c.Context(), currentUser.ID, courseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "course not found")
	}

	var course models.Course
	if err := h.DB.Preload("Memberships.User").First(&course, "id = ?", courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "course not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading course")
	}

	return utils.Success(c, fiber.StatusOK, buildCourseDTO(&course, true))
}

func (h *CoursesHandler) Members(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	visible, err := h.Access.CanViewCourse(c.Context(), currentUser.ID, courseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "course not found")
	}

	var memberships []models.CourseMembership
	if err := h.DB.Preload("User").
		Where("course_id = ?", courseID).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing members")
	}

	teachers := []courseMemberDTO{}
	students := []courseMemberDTO{}
	for _, membership := range memberships {
		member := courseMemberDTO{ID: membership.UserID, Name: membership.User.Name}
		if membership.Role == models.CourseRoleTeacher {
			teachers = append(teachers, member)
		} else {
			students = append(students, member)
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"teachers": teachers,
		"students": students,
	})
}

type updateCourseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *CoursesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, courseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	var req updateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	result := h.DB.Model(&models.Course{}).Where("id = ?", courseID).Updates(updates)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating course")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "course not found")
	}

	var updated models.Course
	if err := h.DB.First(&updated, "id = ?", courseID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated course")
	}

	return utils.Success(c, fiber.StatusOK, buildCourseDTO(&updated, false))
}

func (h *CoursesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, courseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	var found bool
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var assignmentIDs []string
		if err := tx.Model(&models.Assignment{}).
			Where("course_id = ?", courseID).
			Pluck("id", &assignmentIDs).Error; err != nil {
			return err
		}

		if len(assignmentIDs) > 0 {
			if err := tx.Where("assignment_id IN ?", assignmentIDs).Delete(&models.AssignmentUser{}).Error; err != nil {
				return err
			}
			if err := tx.Where("course_id = ?", courseID).Delete(&models.Assignment{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("course_id = ?", courseID).Delete(&models.CourseMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", courseID).Delete(&models.Activity{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Course{}, "id = ?", courseID)
		if result.Error != nil {
			return result.Error
		}
		found = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting course")
	}
	if !found {
		return utils.Error(c, fiber.StatusNotFound, "course not found")
	}

	h.Audit.Record(services.AuditEntry{
		UserID:    &currentUser.ID,
		Action:    "course.delete",
		TargetID:  &courseID,
		IPAddress: c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "course deleted"})
}

type joinCourseRequest struct {
	JoinCode string `json:"joinCode"`
}

func (h *CoursesHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req joinCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	// Accept the code as a query parameter too, matching older clients.
	if req.JoinCode == "" {
		req.JoinCode = c.Query("joinCode")
	}

	code := strings.ToUpper(strings.TrimSpace(req.JoinCode))
	if code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "joinCode is required")
	}

	var course models.Course
	if err := h.DB.First(&course, "join_code = ?", code).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "invalid join code")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed looking up join code")
	}

	var existing int64
	if err := h.DB.Model(&models.CourseMembership{}).
		Where("course_id = ? AND user_id = ?", course.ID, currentUser.ID).
		Count(&existing).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if existing > 0 {
		return utils.Error(c, fiber.StatusConflict, "already enrolled")
	}

	membership := models.CourseMembership{
		UserID:   currentUser.ID,
		CourseID: course.ID,
		Role:     models.CourseRoleStudent,
		JoinedAt: time.Now().UTC(),
	}
	if err := h.DB.Create(&membership).Error; err != nil {
		// Two concurrent joins can both pass the count; the composite
		// unique index rejects the loser.
		if isDuplicateKey(err) {
			return utils.Error(c, fiber.StatusConflict, "already enrolled")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed joining course")
	}

	logger.InfoWithUser(currentUser.ID.String(), "course_joined", map[string]interface{}{
		"course_id": course.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, buildCourseDTO(&course, false))
}

func (h *CoursesHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	result := h.DB.Where("course_id = ? AND user_id = ?", courseID, currentUser.ID).
		Delete(&models.CourseMembership{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed leaving course")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "not enrolled in this course")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "left course"})
}

// Assignments lists a course's assignments. Membership is re-checked
// here rather than assuming the caller already passed a course-level
// check elsewhere.
func (h *CoursesHandler) Assignments(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	courseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid course id")
	}

	visible, err := h.Access.CanViewCourse(c.Context(), currentUser.ID, courseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "course not found")
	}

	var assignments []models.Assignment
	if err := h.DB.Preload("Users").
		Where("course_id = ?", courseID).
		Order("due_date ASC").
		Find(&assignments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing assignments")
	}

	return utils.Success(c, fiber.StatusOK, assignments)
}
