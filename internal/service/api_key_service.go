package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/gorm"
)

var (
	ErrAPIKeyNotFound    = errors.New("api key not found")
	ErrAPIKeyNameEmpty   = errors.New("api key name is required")
	ErrInvalidPermission = errors.New("invalid permission")
	ErrPermissionAbove   = errors.New("cannot create a key above your own permission")
	ErrInvalidExpiry     = errors.New("expiresInDays must be between 1 and 3650")
	ErrAPIKeyRejected    = errors.New("api key is invalid, revoked or expired")
)

// APIKeyService 签发、吊销与校验 Bearer 密钥。
type APIKeyService struct {
	db  *gorm.DB
	now func() time.Time
}

// APIKeyInput 为创建密钥的参数。
type APIKeyInput struct {
	Name          string
	Permission    string
	ExpiresInDays int
}

// CreatedAPIKey 携带仅返回一次的明文密钥。
type CreatedAPIKey struct {
	Key   db.APIKey
	Plain string
}

// NewAPIKeyService 构造 APIKeyService。
func NewAPIKeyService(gdb *gorm.DB) *APIKeyService {
	return &APIKeyService{db: gdb, now: time.Now}
}

// Create 生成新密钥，权限不能高于调用者。
func (s *APIKeyService) Create(tenantID uint, input APIKeyInput, actor auth.Principal) (*CreatedAPIKey, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrAPIKeyNameEmpty
	}
	perm, ok := auth.ParsePermission(input.Permission)
	if !ok {
		return nil, ErrInvalidPermission
	}
	if perm > actor.Permission {
		return nil, ErrPermissionAbove
	}
	if input.ExpiresInDays < 0 || input.ExpiresInDays > 3650 {
		return nil, ErrInvalidExpiry
	}

	plain, display, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key := db.APIKey{
		TenantID:   tenantID,
		Name:       name,
		KeyHash:    auth.HashAPIKey(plain),
		Prefix:     display,
		Permission: perm.String(),
	}
	if actor.UserID != 0 {
		createdBy := actor.UserID
		key.CreatedBy = &createdBy
	}
	if input.ExpiresInDays > 0 {
		expires := s.now().UTC().Add(time.Duration(input.ExpiresInDays) * 24 * time.Hour)
		key.ExpiresAt = &expires
	}

	if err := s.db.Create(&key).Error; err != nil {
		return nil, err
	}
	return &CreatedAPIKey{Key: key, Plain: plain}, nil
}

// List 返回租户全部密钥，按创建时间倒序。
func (s *APIKeyService) List(tenantID uint) ([]db.APIKey, error) {
	var keys []db.APIKey
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at desc, id desc").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Revoke 标记密钥吊销；跨租户访问视为不存在。
func (s *APIKeyService) Revoke(tenantID, id uint) error {
	var key db.APIKey
	if err := s.db.Where("tenant_id = ?", tenantID).First(&key, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAPIKeyNotFound
		}
		return err
	}
	if key.RevokedAt != nil {
		return nil
	}
	now := s.now().UTC()
	return s.db.Model(&key).UpdateColumn("revoked_at", now).Error
}

// Authenticate 通过明文密钥找到有效记录并刷新 LastUsedAt。
func (s *APIKeyService) Authenticate(plain string) (*db.APIKey, auth.Principal, error) {
	var key db.APIKey
	if err := s.db.Where("key_hash = ?", auth.HashAPIKey(plain)).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.Principal{}, ErrAPIKeyRejected
		}
		return nil, auth.Principal{}, err
	}

	now := s.now().UTC()
	if key.Status(now) != db.APIKeyStatusActive {
		return nil, auth.Principal{}, ErrAPIKeyRejected
	}
	perm, ok := auth.ParsePermission(key.Permission)
	if !ok {
		return nil, auth.Principal{}, ErrAPIKeyRejected
	}

	if err := s.db.Model(&key).UpdateColumn("last_used_at", now).Error; err != nil {
		return nil, auth.Principal{}, err
	}
	key.LastUsedAt = &now

	return &key, auth.Principal{TenantID: key.TenantID, APIKeyID: key.ID, Permission: perm}, nil
}
