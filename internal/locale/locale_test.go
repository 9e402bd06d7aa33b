package locale

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "en", want: LanguageEnglish},
		{input: "en-US", want: LanguageEnglish},
		{input: "DE_at", want: LanguageGerman},
		{input: "fr-CA", want: LanguageFrench},
		{input: "zh", want: ""},
		{input: "english", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeLanguage(tc.input); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsSupportedIsExact(t *testing.T) {
	if !IsSupported("de") {
		t.Fatal("expected de to be supported")
	}
	if IsSupported("DE") || IsSupported("de-DE") {
		t.Fatal("expected IsSupported to require a canonical code")
	}
}

func TestLanguageFromCountryCode(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "DE", want: LanguageGerman},
		{input: "at", want: LanguageGerman},
		{input: "FR", want: LanguageFrench},
		{input: "US", want: LanguageEnglish},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromCountryCode(tc.input); got != tc.want {
			t.Fatalf("LanguageFromCountryCode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLanguageFromAcceptLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "de-DE,de;q=0.9,en;q=0.8", want: LanguageGerman},
		{input: "en-US,en;q=0.9", want: LanguageEnglish},
		{input: "zh-CN,fr;q=0.5,de;q=0.7", want: LanguageGerman},
		{input: "fr;q=0, en;q=0.2", want: LanguageEnglish},
		{input: "ja-JP", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromAcceptLanguage(tc.input); got != tc.want {
			t.Fatalf("LanguageFromAcceptLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPreferenceForLanguage(t *testing.T) {
	pref := PreferenceForLanguage("fr")
	if pref.Language != LanguageFrench || pref.HTMLLang != "fr-FR" {
		t.Fatalf("unexpected preference %+v", pref)
	}

	fallback := PreferenceForLanguage("")
	if fallback.Language != LanguageEnglish {
		t.Fatalf("expected fallback language %q, got %q", LanguageEnglish, fallback.Language)
	}
}

func TestT(t *testing.T) {
	if got := T("de", "form.submit"); got != "Senden" {
		t.Fatalf("expected German text, got %q", got)
	}
	if got := T("xx", "form.submit"); got != "Send" {
		t.Fatalf("expected English fallback, got %q", got)
	}
	if got := T("fr", "missing.key"); got != "missing.key" {
		t.Fatalf("expected key fallback, got %q", got)
	}
}
