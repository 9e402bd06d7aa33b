package auth

import "strings"

// Permission 是四级权限，数值越大权限越高。
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionWrite
	PermissionAdmin
	PermissionOwner
)

var permissionNames = map[Permission]string{
	PermissionRead:  "read",
	PermissionWrite: "write",
	PermissionAdmin: "admin",
	PermissionOwner: "owner",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "none"
}

// Allows 判断当前权限是否满足 required。
func (p Permission) Allows(required Permission) bool {
	return p >= required && p > PermissionNone
}

// ParsePermission 解析 read/write/admin/owner，大小写不敏感。
func ParsePermission(raw string) (Permission, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for perm, name := range permissionNames {
		if name == normalized {
			return perm, true
		}
	}
	return PermissionNone, false
}

// Principal 是一次请求的调用者，来自会话或 API Key。
type Principal struct {
	TenantID   uint
	UserID     uint
	APIKeyID   uint
	Permission Permission
	Email      string
}

// IsUser 判断调用者是否通过会话登录。
func (p Principal) IsUser() bool {
	return p.UserID != 0
}
