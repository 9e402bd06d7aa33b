package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// APIKeyPrefix 标识本系统签发的密钥，便于泄露扫描。
const APIKeyPrefix = "ctk_"

const apiKeyRandomBytes = 32

// ErrMalformedAPIKey 表示 Bearer 值不是本系统的密钥格式。
var ErrMalformedAPIKey = errors.New("malformed api key")

// GenerateAPIKey 返回明文密钥及其展示前缀。
func GenerateAPIKey() (plain, display string, err error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return plain, DisplayPrefix(plain), nil
}

// HashAPIKey 计算明文密钥的 SHA-256 十六进制摘要，数据库只保存该值。
func HashAPIKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix 返回用于列表展示的前 12 个字符。
func DisplayPrefix(plain string) string {
	if len(plain) <= 12 {
		return plain
	}
	return plain[:12]
}

// ParseBearer 从 Authorization 头中取出密钥。
func ParseBearer(header string) (string, error) {
	trimmed := strings.TrimSpace(header)
	if len(trimmed) < 7 || !strings.EqualFold(trimmed[:7], "bearer ") {
		return "", ErrMalformedAPIKey
	}
	token := strings.TrimSpace(trimmed[7:])
	if !strings.HasPrefix(token, APIKeyPrefix) || len(token) <= len(APIKeyPrefix) {
		return "", ErrMalformedAPIKey
	}
	return token, nil
}
