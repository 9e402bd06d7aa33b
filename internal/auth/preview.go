package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Preview token validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// PreviewClaims 允许匿名访客预览某个未发布页面。
type PreviewClaims struct {
	PageID   uint `json:"page_id"`
	TenantID uint `json:"tenant_id"`
	jwt.RegisteredClaims
}

// GeneratePreviewToken signs a preview JWT with the configured expiry.
func GeneratePreviewToken(secret string, tenantID, pageID uint, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expires := now.Add(ttl).UTC()
	claims := PreviewClaims{
		PageID:   pageID,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "preview",
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParsePreviewToken validates a preview JWT and returns its claims.
func ParsePreviewToken(secret, tokenString string) (*PreviewClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PreviewClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*PreviewClaims)
	if !ok || !token.Valid || claims.Subject != "preview" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
