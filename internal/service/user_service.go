package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserEmailTaken      = errors.New("email already in use")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters")
	ErrInvalidRole         = errors.New("invalid role")
	ErrRoleAboveOwn        = errors.New("cannot grant a role above your own")
	ErrLastOwner           = errors.New("the last owner cannot be removed or demoted")
	ErrCannotDeleteSelf    = errors.New("you cannot delete your own account")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTOTPRequired        = errors.New("totp required")
	ErrInvalidTOTP         = errors.New("invalid code")
	ErrTOTPNotPending      = errors.New("totp setup has not been started")
	ErrTOTPAlreadyEnabled  = errors.New("totp is already enabled")
	ErrTOTPNotEnabled      = errors.New("totp is not enabled")
	ErrOwnerRoleRestricted = errors.New("only owners can manage owner accounts")
)

const minPasswordLength = 8

var inputValidator = validator.New(validator.WithRequiredStructEnabled())

// UserService 负责后台用户的增删改查、登录校验与 TOTP。
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// UserInput 为创建用户的参数。
type UserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// UserUpdate 为部分更新参数，nil 表示不修改。
type UserUpdate struct {
	Name     *string
	Role     *string
	Password *string
}

// NewUserService 构造 UserService。
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb, now: time.Now}
}

// List 返回租户内全部用户。
func (s *UserService) List(tenantID uint) ([]db.User, error) {
	var users []db.User
	if err := s.db.Where("tenant_id = ?", tenantID).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get 读取租户内的用户。
func (s *UserService) Get(tenantID, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.Where("tenant_id = ?", tenantID).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create 新建用户，actor 不能授予高于自身的角色。
func (s *UserService) Create(tenantID uint, input UserInput, actor auth.Permission) (*db.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role, err := parseRole(input.Role, actor)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := db.User{
		TenantID: tenantID,
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		Password: hash,
		Role:     role.String(),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// Update 修改姓名、角色或密码；最后一个 owner 不能被降级。
func (s *UserService) Update(tenantID, id uint, input UserUpdate, actor auth.Principal) (*db.User, error) {
	var user db.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if input.Name != nil {
			user.Name = strings.TrimSpace(*input.Name)
		}
		if input.Role != nil {
			role, err := parseRole(*input.Role, actor.Permission)
			if err != nil {
				return err
			}
			current, _ := auth.ParsePermission(user.Role)
			if current == auth.PermissionOwner && !actor.Permission.Allows(auth.PermissionOwner) {
				return ErrOwnerRoleRestricted
			}
			if current == auth.PermissionOwner && role != auth.PermissionOwner {
				if err := ensureAnotherOwner(tx, tenantID, user.ID); err != nil {
					return err
				}
			}
			user.Role = role.String()
		}
		if input.Password != nil {
			hash, err := hashPassword(*input.Password)
			if err != nil {
				return err
			}
			user.Password = hash
		}

		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete 删除用户；不能删除自己，也不能删除最后一个 owner。
func (s *UserService) Delete(tenantID, id uint, actor auth.Principal) error {
	if actor.UserID == id {
		return ErrCannotDeleteSelf
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user db.User
		if err := tx.Where("tenant_id = ?", tenantID).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Role == auth.PermissionOwner.String() {
			if !actor.Permission.Allows(auth.PermissionOwner) {
				return ErrOwnerRoleRestricted
			}
			if err := ensureAnotherOwner(tx, tenantID, user.ID); err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
}

// Authenticate 校验邮箱密码，启用 TOTP 的用户还需提供有效验证码。
func (s *UserService) Authenticate(tenantID uint, email, password, code string) (*db.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var user db.User
	if err := s.db.Where("tenant_id = ? AND email = ?", tenantID, normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.TOTPEnabled {
		if strings.TrimSpace(code) == "" {
			return nil, ErrTOTPRequired
		}
		if !auth.ValidateTOTP(code, user.TOTPSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	now := s.now().UTC()
	if err := s.db.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return &user, nil
}

// EnsureOwner 在租户没有任何用户时创建一个 owner 账号。
func (s *UserService) EnsureOwner(tenantID uint, email, password string) (*db.User, bool, error) {
	var count int64
	if err := s.db.Model(&db.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count > 0 {
		return nil, false, nil
	}
	user, err := s.Create(tenantID, UserInput{Email: email, Name: "Owner", Password: password, Role: "owner"}, auth.PermissionOwner)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// SetupTOTP 生成待确认的 TOTP 密钥。
func (s *UserService) SetupTOTP(tenantID, id uint) (auth.TOTPKey, error) {
	user, err := s.Get(tenantID, id)
	if err != nil {
		return auth.TOTPKey{}, err
	}
	if user.TOTPEnabled {
		return auth.TOTPKey{}, ErrTOTPAlreadyEnabled
	}
	key, err := auth.NewTOTPKey(user.Email)
	if err != nil {
		return auth.TOTPKey{}, err
	}
	if err := s.db.Model(user).UpdateColumn("totp_pending", key.Secret).Error; err != nil {
		return auth.TOTPKey{}, err
	}
	return key, nil
}

// EnableTOTP 用验证码确认待定密钥并启用。
func (s *UserService) EnableTOTP(tenantID, id uint, code string) error {
	user, err := s.Get(tenantID, id)
	if err != nil {
		return err
	}
	if user.TOTPEnabled {
		return ErrTOTPAlreadyEnabled
	}
	if user.TOTPPending == "" {
		return ErrTOTPNotPending
	}
	if !auth.ValidateTOTP(code, user.TOTPPending) {
		return ErrInvalidTOTP
	}
	return s.db.Model(user).Updates(map[string]interface{}{
		"totp_secret":  user.TOTPPending,
		"totp_pending": "",
		"totp_enabled": true,
	}).Error
}

// DisableTOTP 在验证码正确时关闭 TOTP。
func (s *UserService) DisableTOTP(tenantID, id uint, code string) error {
	user, err := s.Get(tenantID, id)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return ErrTOTPNotEnabled
	}
	if !auth.ValidateTOTP(code, user.TOTPSecret) {
		return ErrInvalidTOTP
	}
	return s.db.Model(user).Updates(map[string]interface{}{
		"totp_secret":  "",
		"totp_pending": "",
		"totp_enabled": false,
	}).Error
}

func ensureAnotherOwner(tx *gorm.DB, tenantID, excludeID uint) error {
	var owners int64
	if err := tx.Model(&db.User{}).
		Where("tenant_id = ? AND role = ? AND id <> ?", tenantID, auth.PermissionOwner.String(), excludeID).
		Count(&owners).Error; err != nil {
		return err
	}
	if owners == 0 {
		return ErrLastOwner
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := inputValidator.Var(email, "required,email,max=255"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func parseRole(raw string, actor auth.Permission) (auth.Permission, error) {
	if strings.TrimSpace(raw) == "" {
		raw = auth.PermissionRead.String()
	}
	role, ok := auth.ParsePermission(raw)
	if !ok {
		return auth.PermissionNone, ErrInvalidRole
	}
	if role > actor {
		return auth.PermissionNone, ErrRoleAboveOwn
	}
	return role, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
