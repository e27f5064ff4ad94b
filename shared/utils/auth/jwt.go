package utils

import (
	"errors"
	"time"

	"backoffice-backend/shared/config"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	Userno   string `json:"userno"`
	Username string `json:"username"`
	OrgID    int64  `json:"orgid"`
	IsSuper  bool   `json:"is_super"`
	jwt.RegisteredClaims
}

func jwtSecret() []byte {
	cfg := config.GetConfig()
	if cfg.JWT.Secret == "" {
		return []byte("fallback-secret-key-for-development")
	}
	return []byte(cfg.JWT.Secret)
}

// GetJWTExpireDuration gets JWT expiration duration from config
func GetJWTExpireDuration() time.Duration {
	hours := config.GetConfig().JWT.ExpireHours
	if hours <= 0 {
		return 3 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

// Generate JWT token
func GenerateJWT(userID int64, userno, username string, orgID int64, isSuper bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Userno:   userno,
		Username: username,
		OrgID:    orgID,
		IsSuper:  isSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userno,
			ExpiresAt: jwt.NewNumericDate(now.Add(GetJWTExpireDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// Validate JWT token
func ValidateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return jwtSecret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
