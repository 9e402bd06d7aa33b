package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionOrdering(t *testing.T) {
	assert.True(t, PermissionOwner.Allows(PermissionAdmin))
	assert.True(t, PermissionWrite.Allows(PermissionRead))
	assert.True(t, PermissionRead.Allows(PermissionRead))
	assert.False(t, PermissionRead.Allows(PermissionWrite))
	assert.False(t, PermissionAdmin.Allows(PermissionOwner))
	assert.False(t, PermissionNone.Allows(PermissionNone))
}

func TestParsePermission(t *testing.T) {
	perm, ok := ParsePermission(" Admin ")
	require.True(t, ok)
	assert.Equal(t, PermissionAdmin, perm)
	assert.Equal(t, "admin", perm.String())

	_, ok = ParsePermission("superuser")
	assert.False(t, ok)
	_, ok = ParsePermission("none")
	assert.False(t, ok)
}

func TestGenerateAPIKey(t *testing.T) {
	plain, display, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain, APIKeyPrefix))
	assert.Equal(t, plain[:12], display)
	assert.Len(t, HashAPIKey(plain), 64)

	other, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
	assert.NotEqual(t, HashAPIKey(plain), HashAPIKey(other))
}

func TestParseBearer(t *testing.T) {
	token, err := ParseBearer("Bearer ctk_abc")
	require.NoError(t, err)
	assert.Equal(t, "ctk_abc", token)

	token, err = ParseBearer("bearer   ctk_xyz ")
	require.NoError(t, err)
	assert.Equal(t, "ctk_xyz", token)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer ctk_", "Bearer other"} {
		_, err := ParseBearer(header)
		assert.ErrorIs(t, err, ErrMalformedAPIKey, header)
	}
}

func TestPreviewTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, expires, err := GeneratePreviewToken("secret", 3, 42, time.Hour, now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expires, time.Second)

	claims, err := ParsePreviewToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.PageID)
	assert.Equal(t, uint(3), claims.TenantID)

	_, err = ParsePreviewToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPreviewTokenExpired(t *testing.T) {
	token, _, err := GeneratePreviewToken("secret", 1, 1, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParsePreviewToken("secret", token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTOTP(t *testing.T) {
	key, err := NewTOTPKey("owner@example.com")
	require.NoError(t, err)
	assert.Contains(t, key.URL, "otpauth://totp/")

	code, err := totp.GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)
	assert.True(t, ValidateTOTP(code, key.Secret))
	assert.False(t, ValidateTOTP("000000", ""))
	assert.False(t, ValidateTOTP("", key.Secret))
}
