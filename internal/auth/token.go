package auth

import (
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/golang-jwt/jwt/v4"
)

type Claims struct {
	UserID   string
	TenantID string
}

// GenerateToken signs an HS256 operator token for userID in tenantID
func GenerateToken(secret, userID, tenantID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   userID,
		"tenant_id": tenantID,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to sign token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}

func ValidateToken(secret, token string) (*Claims, error) {
	if secret == "" {
		return nil, ierr.NewError("token authentication is not configured").
			WithHint("Use an API key").
			Mark(ierr.ErrPermissionDenied)
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewErrorf("unexpected signing method: %v", token.Header["alg"]).
				WithHint("Invalid token").
				Mark(ierr.ErrPermissionDenied)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	userID, _ := claims["user_id"].(string)
	tenantID, _ := claims["tenant_id"].(string)
	if userID == "" || tenantID == "" {
		return nil, ierr.NewError("token missing user or tenant").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	return &Claims{
		UserID:   userID,
		TenantID: tenantID,
	}, nil
}
