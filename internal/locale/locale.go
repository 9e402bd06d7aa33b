package locale

import (
	"sort"
	"strconv"
	"strings"
)

const (
	LanguageEnglish = "en"
	LanguageGerman  = "de"
	LanguageFrench  = "fr"
)

// Supported 列出站点支持的语言，顺序即语言切换器中的顺序。
var Supported = []string{LanguageEnglish, LanguageGerman, LanguageFrench}

type Preference struct {
	Language string
	Locale   string
	HTMLLang string
}

// IsSupported 精确判断是否为受支持的语言代码。
func IsSupported(code string) bool {
	for _, candidate := range Supported {
		if code == candidate {
			return true
		}
	}
	return false
}

// NormalizeLanguage 将 "de-AT"、"FR_ca" 之类的输入归一为受支持的语言代码，无法识别时返回空串。
func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	primary := trimmed
	if idx := strings.IndexAny(trimmed, "-_"); idx > 0 {
		primary = trimmed[:idx]
	}
	if IsSupported(primary) {
		return primary
	}
	return ""
}

func LanguageFromCountryCode(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	switch trimmed {
	case "":
		return ""
	case "DE", "AT", "LI":
		return LanguageGerman
	case "FR", "MC", "LU":
		return LanguageFrench
	default:
		return LanguageEnglish
	}
}

// LanguageFromAcceptLanguage 按 q 值选出首个受支持的语言。
func LanguageFromAcceptLanguage(header string) string {
	type candidate struct {
		lang  string
		q     float64
		index int
	}

	var candidates []candidate
	for i, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		lang := NormalizeLanguage(fields[0])
		if lang == "" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if !strings.HasPrefix(param, "q=") {
				continue
			}
			if parsed, err := strconv.ParseFloat(strings.TrimPrefix(param, "q="), 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 {
			continue
		}
		candidates = append(candidates, candidate{lang: lang, q: q, index: i})
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].q != candidates[j].q {
			return candidates[i].q > candidates[j].q
		}
		return candidates[i].index < candidates[j].index
	})
	return candidates[0].lang
}

func PreferenceForLanguage(language string) Preference {
	switch NormalizeLanguage(language) {
	case LanguageGerman:
		return Preference{Language: LanguageGerman, Locale: "de_DE", HTMLLang: "de-DE"}
	case LanguageFrench:
		return Preference{Language: LanguageFrench, Locale: "fr_FR", HTMLLang: "fr-FR"}
	default:
		return Preference{Language: LanguageEnglish, Locale: "en_US", HTMLLang: "en-US"}
	}
}
