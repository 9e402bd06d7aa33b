package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/gin-gonic/gin"
)

const (
	languageCookieName   = "ct_lang"
	languageCookieMaxAge = 365 * 24 * 60 * 60
)

var countryHeaderCandidates = []string{
	"CF-IPCountry",
	"X-Geo-Country",
	"X-Forwarded-Country",
	"X-Country-Code",
}

// RootRedirect 将根路径重定向到访客语言的首页。
func (a *API) RootRedirect(c *gin.Context) {
	language, persist := a.resolveLanguage(c)
	if persist {
		a.persistLanguage(c, language)
	}
	varyHeaders := append([]string{"Accept-Language", "Cookie"}, countryHeaderCandidates...)
	appendVaryHeader(c, varyHeaders...)
	c.Header("Content-Language", locale.PreferenceForLanguage(language).HTMLLang)
	c.Redirect(http.StatusFound, "/"+language+"/")
}

// resolveLanguage 依次参考 ?lang、语言 cookie、Accept-Language、国家头与站点默认语言。
// 第二个返回值表示是否需要写回 cookie。
func (a *API) resolveLanguage(c *gin.Context) (string, bool) {
	if override := locale.NormalizeLanguage(c.Query("lang")); override != "" {
		return override, true
	}
	if cookie := readLanguageCookie(c); cookie != "" {
		return cookie, false
	}
	if fromHeader := locale.LanguageFromAcceptLanguage(c.GetHeader("Accept-Language")); fromHeader != "" {
		return fromHeader, false
	}
	if country := readCountryHeader(c); country != "" {
		return locale.LanguageFromCountryCode(country), false
	}
	if settings := a.siteSettings(c); locale.IsSupported(settings.DefaultLocale) {
		return settings.DefaultLocale, false
	}
	return a.defaultLocale, false
}

func readLanguageCookie(c *gin.Context) string {
	value, err := c.Cookie(languageCookieName)
	if err != nil {
		return ""
	}
	return locale.NormalizeLanguage(value)
}

func (a *API) persistLanguage(c *gin.Context, language string) {
	normalized := locale.NormalizeLanguage(language)
	if normalized == "" {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     languageCookieName,
		Value:    normalized,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureRequest(c),
		MaxAge:   languageCookieMaxAge,
		Expires:  a.now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")), "https")
}

func readCountryHeader(c *gin.Context) string {
	for _, header := range countryHeaderCandidates {
		value := strings.TrimSpace(c.GetHeader(header))
		if value == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.Split(value, ",")[0])
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func appendVaryHeader(c *gin.Context, headers ...string) {
	existing := c.Writer.Header().Get("Vary")
	seen := make(map[string]struct{})
	order := make([]string, 0, len(headers))
	for _, token := range append(strings.Split(existing, ","), headers...) {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		order = append(order, trimmed)
	}
	if len(order) > 0 {
		c.Header("Vary", strings.Join(order, ", "))
	}
}
