package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/purrfect/backend/internal/models"
)

var (
	jwtSecret        = []byte("change-me-in-production")
	jwtAccessMinutes = 15
)

type Claims struct {
	UserID uuid.UUID       `json:"userID"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, accessMinutes int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if accessMinutes > 0 {
		jwtAccessMinutes = accessMinutes
	}
}

// AccessTokenTTL is the configured lifetime of access tokens, used to
// line cookie expiry up with the token itself.
func AccessTokenTTL() time.Duration {
	return time.Duration(jwtAccessMinutes) * time.Minute
}

func GenerateToken(user *models.User) (string, error) {
	expiresAt := time.Now().Add(AccessTokenTTL())
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
