package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/purrfect/backend/internal/middleware"
	"github.com/purrfect/backend/internal/models"
	"github.com/purrfect/backend/pkg/logger"
	"github.com/purrfect/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB *gorm.DB
}

func NewUsersHandler(db *gorm.DB) *UsersHandler {
	return &UsersHandler{DB: db}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	search := strings.TrimSpace(c.Query("search"))

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(name) LIKE ?",
			searchValue,
			searchValue,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *UsersHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	search := strings.TrimSpace(c.Query("search"))
	limit := c.QueryInt("limit", 5)

	if limit > 50 {
		limit = 50
	}

	if search != "" && currentUser != nil {
		logger.InfoWithUser(currentUser.ID.String(), "user_search", map[string]interface{}{
			"query": search,
			"limit": limit,
		})
	}

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(name) LIKE ?",
			searchValue,
			searchValue,
		)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed searching users")
	}

	return utils.Success(c, fiber.StatusOK, users)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type updateUserRequest struct {
	Name              *string          `json:"name"`
	ProfilePictureURL *string          `json:"profilePictureUrl"`
	Role              *models.UserRole `json:"role"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		value := strings.TrimSpace(*req.Name)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = value
	}
	if req.ProfilePictureURL != nil {
		trimmed := strings.TrimSpace(*req.ProfilePictureURL)
		if trimmed == "" {
			updates["profile_picture_url"] = nil
		} else {
			updates["profile_picture_url"] = trimmed
		}
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		updates["role"] = *req.Role
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	result := h.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var found bool
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.User{}, "id = ?", userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		found = true

		if err := tx.Where("user_id = ?", userID).Delete(&models.CourseMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.AssignmentUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Activity{}).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}
	if !found {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}

type userStats struct {
	UserID               string `json:"userId"`
	Name                 string `json:"name"`
	OnTimeSubmissions    int64  `json:"onTimeSubmissions"`
	PerfectGradesCount   int64  `json:"perfectGradesCount"`
	AssignmentsCompleted int64  `json:"assignmentsCompleted"`
}

// MyStats feeds the badges page: counts derived from the caller's
// assignment rows.
func (h *UsersHandler) MyStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	stats := userStats{
		UserID: currentUser.ID.String(),
		Name:   currentUser.Name,
	}

	base := func() *gorm.DB {
		return h.DB.Model(&models.AssignmentUser{}).
			Where("assignment_users.user_id = ?", currentUser.ID)
	}

	if err := base().Where("submitted_at IS NOT NULL").Count(&stats.AssignmentsCompleted).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing stats")
	}
	if err := base().Where("grade = ?", 100).Count(&stats.PerfectGradesCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing stats")
	}
	if err := base().
		Joins("JOIN assignments ON assignments.id = assignment_users.assignment_id").
		Where("assignment_users.submitted_at IS NOT NULL AND assignment_users.submitted_at <= assignments.due_date").
		Count(&stats.OnTimeSubmissions).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing stats")
	}

	return utils.Success(c, fiber.StatusOK, stats)
}

type leaderboardEntry struct {
	Name               string  `json:"name"`
	ProfilePictureURL  *string `json:"profilePictureUrl,omitempty"`
	TotalScore         float64 `json:"totalScore"`
	PerfectGradesCount int64   `json:"perfectGradesCount"`
}

// Leaderboard ranks students by the sum of their grades.
func (h *UsersHandler) Leaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit > 100 {
		limit = 100
	}

	var entries []leaderboardEntry
	err := h.DB.Model(&models.User{}).
		Select(
			"users.name AS name, " +
				"users.profile_picture_url AS profile_picture_url, " +
				"COALESCE(SUM(assignment_users.grade), 0) AS total_score, " +
				"COUNT(CASE WHEN assignment_users.grade = 100 THEN 1 END) AS perfect_grades_count",
		).
		Joins("JOIN assignment_users ON assignment_users.user_id = users.id").
		Where("users.role = ?", models.UserRoleStudent).
		Group("users.id, users.name, users.profile_picture_url").
		Order("total_score DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed building leaderboard")
	}

	if entries == nil {
		entries = []leaderboardEntry{}
	}
	return utils.Success(c, fiber.StatusOK, entries)
}
