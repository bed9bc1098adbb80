package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/middleware"
	"github.com/purrfect/backend/internal/models"
	"github.com/purrfect/backend/internal/services"
	"github.com/purrfect/backend/pkg/logger"
	"github.com/purrfect/backend/pkg/utils"
	"gorm.io/gorm"
)

type AssignmentsHandler struct {
	DB     *gorm.DB
	Access *services.AccessService
	Audit  *services.AuditService
}

func NewAssignmentsHandler(db *gorm.DB, access *services.AccessService, audit *services.AuditService) *AssignmentsHandler {
	return &AssignmentsHandler{DB: db, Access: access, Audit: audit}
}

type createAssignmentRequest struct {
	Name        string    `json:"name" validate:"required,min=1,max=255"`
	Description string    `json:"description"`
	CourseID    uuid.UUID `json:"courseID"`
	DueDate     time.Time `json:"dueDate"`
}

func (h *AssignmentsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.CourseID == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "courseID is required")
	}
	if req.DueDate.IsZero() {
		return utils.Error(c, fiber.StatusBadRequest, "dueDate is required")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, req.CourseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	// No students are assigned at creation; membership arrives through
	// update's add list.
	assignment := models.Assignment{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CourseID:    req.CourseID,
		DueDate:     req.DueDate,
	}
	if err := h.DB.Create(&assignment).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating assignment")
	}

	logger.InfoWithUser(currentUser.ID.String(), "assignment_created", map[string]interface{}{
		"assignment_id": assignment.ID.String(),
		"course_id":     assignment.CourseID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, assignment)
}

func (h *AssignmentsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assignmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	// A student who is not assigned gets the same answer as for an id
	// that does not exist.
	visible, err := h.Access.CanViewAssignment(c.Context(), currentUser.ID, currentUser.Role, assignmentID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating access")
	}
	if !visible {
		return utils.Error(c, fiber.StatusNotFound, "assignment not found")
	}

	var assignment models.Assignment
	if err := h.DB.Preload("Users.User").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment")
	}

	return utils.Success(c, fiber.StatusOK, assignment)
}

// ListMine returns every assignment the caller holds a row for.
func (h *AssignmentsHandler) ListMine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var assignments []models.Assignment
	if err := h.DB.
		Model(&models.Assignment{}).
		Preload("Users").
		Joins("JOIN assignment_users ON assignment_users.assignment_id = assignments.id").
		Where("assignment_users.user_id = ?", currentUser.ID).
		Order("assignments.due_date ASC").
		Find(&assignments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing assignments")
	}

	return utils.Success(c, fiber.StatusOK, assignments)
}

type updateAssignmentRequest struct {
	Name          *string     `json:"name"`
	Description   *string     `json:"description"`
	AddUserIDs    []uuid.UUID `json:"addUserIds"`
	RemoveUserIDs []uuid.UUID `json:"removeUserIds"`
}

func (h *AssignmentsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assignmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var assignment models.Assignment
	if err := h.DB.First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, assignment.CourseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	var req updateAssignmentRequest
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

	adds := dedupeIDs(req.AddUserIDs)
	removes := dedupeIDs(req.RemoveUserIDs)

	now := time.Now().UTC()
	var added []uuid.UUID

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Assignment{}).Where("id = ?", assignmentID).Updates(updates).Error; err != nil {
				return err
			}
		}

		// Membership reconciliation: insert adds not already present,
		// then apply removes. Removes run last so an id in both lists
		// nets out removed.
		if len(adds) > 0 {
			var existing []uuid.UUID
			if err := tx.Model(&models.AssignmentUser{}).
				Where("assignment_id = ? AND user_id IN ?", assignmentID, adds).
				Pluck("user_id", &existing).Error; err != nil {
				return err
			}
			present := make(map[uuid.UUID]struct{}, len(existing))
			for _, id := range existing {
				present[id] = struct{}{}
			}

			for _, userID := range adds {
				if _, ok := present[userID]; ok {
					continue
				}
				row := models.AssignmentUser{
					UserID:       userID,
					AssignmentID: assignmentID,
					AssignedAt:   now,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				added = append(added, userID)
			}
		}

		if len(removes) > 0 {
			if err := tx.Where("assignment_id = ? AND user_id IN ?", assignmentID, removes).
				Delete(&models.AssignmentUser{}).Error; err != nil {
				return err
			}
		}

		// The assignment's updated timestamp moves even when only the
		// membership changed.
		return tx.Model(&models.Assignment{}).Where("id = ?", assignmentID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating assignment")
	}

	h.notifyAssigned(assignmentID, assignment.CourseID, assignment.Name, added)

	var updated models.Assignment
	if err := h.DB.Preload("Users").First(&updated, "id = ?", assignmentID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated assignment")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

// Submit marks the caller's own assignment row as handed in. The first
// write wins; submitting again is a no-op.
func (h *AssignmentsHandler) Submit(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assignmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var row models.AssignmentUser
	if err := h.DB.First(&row, "assignment_id = ? AND user_id = ?", assignmentID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment")
	}

	if row.SubmittedAt == nil {
		now := time.Now().UTC()
		if err := h.DB.Model(&models.AssignmentUser{}).
			Where("id = ? AND submitted_at IS NULL", row.ID).
			Update("submitted_at", now).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed submitting assignment")
		}
		row.SubmittedAt = &now
	}

	return utils.Success(c, fiber.StatusOK, row)
}

type gradeAssignmentRequest struct {
	UserID uuid.UUID `json:"userID"`
	Grade  float64   `json:"grade"`
}

func (h *AssignmentsHandler) Grade(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assignmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var assignment models.Assignment
	if err := h.DB.First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, assignment.CourseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	var req gradeAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "userID is required")
	}
	if req.Grade < 0 || req.Grade > 100 {
		return utils.Error(c, fiber.StatusBadRequest, "grade must be between 0 and 100")
	}

	var row models.AssignmentUser
	if err := h.DB.First(&row, "assignment_id = ? AND user_id = ?", assignmentID, req.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "student is not assigned")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment row")
	}

	// Grading implies submission: fill submittedAt only if the student
	// never submitted, and never move it afterwards.
	updates := map[string]interface{}{"grade": req.Grade}
	if row.SubmittedAt == nil {
		updates["submitted_at"] = time.Now().UTC()
	}

	if err := h.DB.Model(&models.AssignmentUser{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed grading assignment")
	}

	h.Audit.Record(services.AuditEntry{
		UserID:    &currentUser.ID,
		Action:    "assignment.grade",
		TargetID:  &assignmentID,
		Details:   map[string]interface{}{"student_id": req.UserID.String(), "grade": req.Grade},
		IPAddress: c.IP(),
	})

	activity := models.Activity{
		UserID:       req.UserID,
		Type:         models.ActivityAssignmentGraded,
		Message:      fmt.Sprintf("Your work on %q was graded: %.0f%%", assignment.Name, req.Grade),
		CourseID:     &assignment.CourseID,
		AssignmentID: &assignmentID,
	}
	if err := h.DB.Create(&activity).Error; err != nil {
		logger.Error("activity_insert_failed", err, map[string]interface{}{
			"type": activity.Type,
		})
	}

	var graded models.AssignmentUser
	if err := h.DB.First(&graded, "id = ?", row.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading graded row")
	}

	return utils.Success(c, fiber.StatusOK, graded)
}

func (h *AssignmentsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assignmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var assignment models.Assignment
	if err := h.DB.First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assignment not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignment")
	}

	teaching, err := h.Access.IsCourseTeacher(c.Context(), currentUser.ID, assignment.CourseID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !teaching {
		return utils.Error(c, fiber.StatusForbidden, "course teacher access required")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.AssignmentUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Assignment{}, "id = ?", assignmentID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting assignment")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "assignment deleted"})
}

func (h *AssignmentsHandler) notifyAssigned(assignmentID, courseID uuid.UUID, assignmentName string, userIDs []uuid.UUID) {
	for _, userID := range userIDs {
		activity := models.Activity{
			UserID:       userID,
			Type:         models.ActivityAssignmentAssigned,
			Message:      fmt.Sprintf("You were assigned %q", assignmentName),
			CourseID:     &courseID,
			AssignmentID: &assignmentID,
		}
		if err := h.DB.Create(&activity).Error; err != nil {
			logger.Error("activity_insert_failed", err, map[string]interface{}{
				"type": activity.Type,
			})
		}
	}
}
