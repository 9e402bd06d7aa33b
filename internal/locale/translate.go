package locale

// messages 为公开站点的固定界面文案。
var messages = map[string]map[string]string{
	"nav.home":          {LanguageEnglish: "Home", LanguageGerman: "Startseite", LanguageFrench: "Accueil"},
	"nav.blog":          {LanguageEnglish: "Blog", LanguageGerman: "Blog", LanguageFrench: "Blog"},
	"nav.services":      {LanguageEnglish: "Services", LanguageGerman: "Leistungen", LanguageFrench: "Services"},
	"nav.caseStudies":   {LanguageEnglish: "Case studies", LanguageGerman: "Fallstudien", LanguageFrench: "Études de cas"},
	"blog.readMore":     {LanguageEnglish: "Read more", LanguageGerman: "Weiterlesen", LanguageFrench: "Lire la suite"},
	"blog.minutes":      {LanguageEnglish: "min read", LanguageGerman: "Min. Lesezeit", LanguageFrench: "min de lecture"},
	"blog.empty":        {LanguageEnglish: "No posts yet.", LanguageGerman: "Noch keine Beiträge.", LanguageFrench: "Aucun article pour le moment."},
	"blog.newer":        {LanguageEnglish: "Newer", LanguageGerman: "Neuer", LanguageFrench: "Plus récents"},
	"blog.older":        {LanguageEnglish: "Older", LanguageGerman: "Älter", LanguageFrench: "Plus anciens"},
	"form.submit":       {LanguageEnglish: "Send", LanguageGerman: "Senden", LanguageFrench: "Envoyer"},
	"form.thanks":       {LanguageEnglish: "Thank you! We will be in touch.", LanguageGerman: "Danke! Wir melden uns.", LanguageFrench: "Merci ! Nous vous recontacterons."},
	"caseStudy.client":  {LanguageEnglish: "Client", LanguageGerman: "Kunde", LanguageFrench: "Client"},
	"caseStudy.sector":  {LanguageEnglish: "Industry", LanguageGerman: "Branche", LanguageFrench: "Secteur"},
	"error.notFound":    {LanguageEnglish: "Page not found", LanguageGerman: "Seite nicht gefunden", LanguageFrench: "Page introuvable"},
	"error.server":      {LanguageEnglish: "Something went wrong", LanguageGerman: "Etwas ist schiefgelaufen", LanguageFrench: "Une erreur est survenue"},
	"language.switcher": {LanguageEnglish: "Language", LanguageGerman: "Sprache", LanguageFrench: "Langue"},
}

// T returns the text for key in the requested language, falling back to English and then to the key.
func T(language, key string) string {
	entry, ok := messages[key]
	if !ok {
		return key
	}
	if text, ok := entry[NormalizeLanguage(language)]; ok && text != "" {
		return text
	}
	if text := entry[LanguageEnglish]; text != "" {
		return text
	}
	return key
}

// Name 返回语言在其自身语言中的名称。
func Name(language string) string {
	switch NormalizeLanguage(language) {
	case LanguageGerman:
		return "Deutsch"
	case LanguageFrench:
		return "Français"
	case LanguageEnglish:
		return "English"
	default:
		return language
	}
}
