package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/config"
	"github.com/purrfect/backend/internal/middleware"
	"github.com/purrfect/backend/internal/models"
	"github.com/purrfect/backend/internal/services"
	"github.com/purrfect/backend/internal/storage"
	"github.com/purrfect/backend/pkg/logger"
	"github.com/purrfect/backend/pkg/utils"
	"gorm.io/gorm"
)

const refreshTokenCookie = "refresh_token"

type AuthHandler struct {
	DB      *gorm.DB
	Audit   *services.AuditService
	Avatars *storage.AvatarStore
	Config  *config.Config
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService, avatars *storage.AvatarStore, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit, Avatars: avatars, Config: cfg}
}

type registerRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if err := validate.Struct(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, registerValidationMessage(err))
	}

	// Self-service registration never produces admins.
	if req.Role == "" {
		req.Role = models.UserRoleStudent
	}
	if req.Role != models.UserRoleTeacher && req.Role != models.UserRoleStudent {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}

	var existing int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
	}
	if existing > 0 {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		// The unique index on email is the real guard; a concurrent
		// register for the same address lands here.
		if isDuplicateKey(err) {
			return utils.Error(c, fiber.StatusConflict, "email already registered")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	h.Audit.Record(services.AuditEntry{
		UserID:    &user.ID,
		Action:    "auth.register",
		IPAddress: c.IP(),
	})

	return utils.Success(c, fiber.StatusCreated, user)
}

func registerValidationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "invalid request"
	}
	switch fieldErrors[0].Field() {
	case "Name":
		return "name is required"
	case "Email":
		return "invalid email"
	case "Password":
		return "password must be at least 6 characters"
	default:
		return "invalid request"
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.Warn("login_failed", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	accessToken, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Duration(h.Config.JWT.RefreshTokenDays) * 24 * time.Hour),
	}
	if err := h.DB.Create(&refresh).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing refresh token")
	}

	h.setAuthCookies(c, accessToken, refresh.Token, refresh.ExpiresAt)

	h.Audit.Record(services.AuditEntry{
		UserID:    &user.ID,
		Action:    "auth.login",
		IPAddress: c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	tokenValue := strings.TrimSpace(c.Cookies(refreshTokenCookie))
	if tokenValue == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "missing refresh token")
	}

	var stored models.RefreshToken
	err := h.DB.Preload("User").First(&stored, "token = ?", tokenValue).Error
	if err != nil || !stored.Usable(time.Now()) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid refresh token")
	}

	accessToken, err := utils.GenerateToken(&stored.User)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	c.Cookie(h.buildCookie(middleware.AccessTokenCookie, accessToken, time.Now().Add(utils.AccessTokenTTL())))
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "token refreshed"})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if tokenValue := strings.TrimSpace(c.Cookies(refreshTokenCookie)); tokenValue != "" {
		if err := h.DB.Model(&models.RefreshToken{}).
			Where("token = ? AND user_id = ?", tokenValue, currentUser.ID).
			Update("revoked", true).Error; err != nil {
			logger.Error("refresh_token_revoke_failed", err, map[string]interface{}{
				"user_id": currentUser.ID.String(),
			})
		}
	}

	expired := time.Now().Add(-time.Hour)
	c.Cookie(h.buildCookie(middleware.AccessTokenCookie, "", expired))
	c.Cookie(h.buildCookie(refreshTokenCookie, "", expired))

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

type updateMeRequest struct {
	Name              *string `json:"name"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
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
	if req.ProfilePictureURL != nil {
		trimmed := strings.TrimSpace(*req.ProfilePictureURL)
		if trimmed == "" {
			updates["profile_picture_url"] = nil
		} else {
			updates["profile_picture_url"] = trimmed
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated profile")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.NewPassword) < 6 {
		return utils.Error(c, fiber.StatusBadRequest, "new password must be at least 6 characters")
	}
	if !utils.CheckPassword(currentUser.PasswordHash, req.CurrentPassword) {
		return utils.Error(c, fiber.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).
		Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	h.Audit.Record(services.AuditEntry{
		UserID:    &currentUser.ID,
		Action:    "auth.password_change",
		IPAddress: c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if h.Avatars == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "avatar storage is not configured")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "avatar file is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "avatar must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading avatar file")
	}
	defer file.Close()

	objectName := fmt.Sprintf("%s%s", currentUser.ID, filepath.Ext(fileHeader.Filename))
	if err := h.Avatars.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing avatar")
	}

	url := h.Avatars.URL(h.Config.MinIO, objectName)
	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).
		Update("profile_picture_url", url).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving avatar url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"profilePictureUrl": url})
}

func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string, refreshExpiry time.Time) {
	c.Cookie(h.buildCookie(middleware.AccessTokenCookie, accessToken, time.Now().Add(utils.AccessTokenTTL())))
	c.Cookie(h.buildCookie(refreshTokenCookie, refreshToken, refreshExpiry))
}

func (h *AuthHandler) buildCookie(name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.Config.Server.SecureCookies,
		SameSite: "Lax",
		Path:     "/",
	}
}
