package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/purrfect/backend/internal/models"
)

func TestRegisterAndLoginFlow(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("register defaults to student role and hides password hash", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Mia Whiskers",
			"email":    "Mia@Example.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusCreated)

		data, ok := body["data"].(map[string]any)
		if !ok {
			t.Fatalf("expected data object, got %T", body["data"])
		}
		if data["role"] != string(models.UserRoleStudent) {
			t.Fatalf("expected role %q, got %v", models.UserRoleStudent, data["role"])
		}
		if data["email"] != "mia@example.com" {
			t.Fatalf("expected lowercased email, got %v", data["email"])
		}
		if _, present := data["passwordHash"]; present {
			t.Fatal("password hash must not be serialized")
		}
	})

	t.Run("register rejects duplicate email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Mia Again",
			"email":    "mia@example.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})

	t.Run("register rejects admin role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Sneaky",
			"email":    "sneaky@example.com",
			"password": "password123",
			"role":     "admin",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid role")
	})

	t.Run("login sets auth cookies and stores a refresh token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "mia@example.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusOK)

		cookieNames := map[string]bool{}
		for _, cookie := range resp.Cookies() {
			cookieNames[cookie.Name] = true
		}
		if !cookieNames["access_token"] || !cookieNames["refresh_token"] {
			t.Fatalf("expected access_token and refresh_token cookies, got %v", cookieNames)
		}

		var count int64
		if err := env.db.Model(&models.RefreshToken{}).Count(&count).Error; err != nil {
			t.Fatalf("failed counting refresh tokens: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 refresh token row, got %d", count)
		}
	})

	t.Run("login rejects wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "mia@example.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})
}

func TestRefreshToken(t *testing.T) {
	env := setupTestEnv(t)

	user, _ := createTestUser(t, env.db, "refresh@example.com", "password123", models.UserRoleStudent)

	valid := models.RefreshToken{
		UserID:    user.ID,
		Token:     "valid-refresh-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := env.db.Create(&valid).Error; err != nil {
		t.Fatalf("failed creating refresh token: %v", err)
	}

	revoked := models.RefreshToken{
		UserID:    user.ID,
		Token:     "revoked-refresh-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		Revoked:   true,
	}
	if err := env.db.Create(&revoked).Error; err != nil {
		t.Fatalf("failed creating revoked refresh token: %v", err)
	}

	t.Run("valid refresh token issues a new access cookie", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/auth/refresh", nil, map[string]string{
			"Cookie": "refresh_token=valid-refresh-token",
		})
		assertStatus(t, resp, http.StatusOK)

		refreshed := false
		for _, cookie := range resp.Cookies() {
			if cookie.Name == "access_token" && cookie.Value != "" {
				refreshed = true
			}
		}
		if !refreshed {
			t.Fatal("expected a fresh access_token cookie")
		}
	})

	t.Run("revoked refresh token is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/auth/refresh", nil, map[string]string{
			"Cookie": "refresh_token=revoked-refresh-token",
		})
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid refresh token")
	})

	t.Run("missing refresh cookie is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/auth/refresh", nil, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "missing refresh token")
	})
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := setupTestEnv(t)

	user, token := createTestUser(t, env.db, "logout@example.com", "password123", models.UserRoleStudent)

	refresh := models.RefreshToken{
		UserID:    user.ID,
		Token:     "logout-refresh-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := env.db.Create(&refresh).Error; err != nil {
		t.Fatalf("failed creating refresh token: %v", err)
	}

	headers := authHeaders(token)
	headers["Cookie"] = "refresh_token=logout-refresh-token"

	resp := performRequest(t, env.app, http.MethodPost, "/api/auth/logout", nil, headers)
	assertStatus(t, resp, http.StatusOK)

	var stored models.RefreshToken
	if err := env.db.First(&stored, "token = ?", "logout-refresh-token").Error; err != nil {
		t.Fatalf("failed loading refresh token: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("expected refresh token to be revoked after logout")
	}
}

func TestMeAndProfileUpdate(t *testing.T) {
	env := setupTestEnv(t)

	_, token := createTestUser(t, env.db, "profile@example.com", "password123", models.UserRoleTeacher)

	t.Run("me returns the current user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)
		if data["email"] != "profile@example.com" {
			t.Fatalf("expected current user email, got %v", data["email"])
		}
	})

	t.Run("update me changes name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"name": "Professor Paws",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)
		if data["name"] != "Professor Paws" {
			t.Fatalf("expected updated name, got %v", data["name"])
		}
	})

	t.Run("update me rejects empty name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"name": "   ",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "name cannot be empty")
	})
}

func TestChangePassword(t *testing.T) {
	env := setupTestEnv(t)

	_, token := createTestUser(t, env.db, "passwd@example.com", "password123", models.UserRoleStudent)

	t.Run("rejects wrong current password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"currentPassword": "nope",
			"newPassword":     "newpassword",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "current password is incorrect")
	})

	t.Run("changes password and old one stops working", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"currentPassword": "password123",
			"newPassword":     "newpassword",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "passwd@example.com",
			"password": "password123",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "passwd@example.com",
			"password": "newpassword",
		}, nil)
		assertStatus(t, resp, http.StatusOK)
	})
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	env := setupTestEnv(t)

	_, token := createTestUser(t, env.db, "avatar@example.com", "password123", models.UserRoleStudent)

	resp := performRequest(t, env.app, http.MethodPost, "/api/auth/avatar", nil, authHeaders(token))
	body := decodeJSONMap(t, resp)

	assertStatus(t, resp, http.StatusServiceUnavailable)
	assertEnvelopeError(t, body, "avatar storage is not configured")
}
