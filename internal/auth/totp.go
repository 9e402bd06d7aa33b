package auth

import (
	"strings"

	"github.com/pquerna/otp/totp"
)

// TOTPIssuer 显示在验证器 App 中的签发方名称。
const TOTPIssuer = "ct-web"

// TOTPKey 是一次 TOTP 初始化的结果。
type TOTPKey struct {
	Secret string
	URL    string
}

// NewTOTPKey 为账号生成新的 TOTP 密钥。
func NewTOTPKey(accountName string) (TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return TOTPKey{}, err
	}
	return TOTPKey{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP 校验 6 位动态码。
func ValidateTOTP(code, secret string) bool {
	trimmed := strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if trimmed == "" || secret == "" {
		return false
	}
	return totp.Validate(trimmed, secret)
}
