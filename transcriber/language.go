package transcriber

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// detectable is kept short: each language adds a model to memory.
var detectable = []lingua.Language{
	lingua.English,
	lingua.German,
	lingua.French,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Polish,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Turkish,
	lingua.Japanese,
	lingua.Chinese,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// WarmLanguageDetector loads the language models. Building them takes close
// to a second, so hosts call it at startup instead of paying on the first
// transcription.
func WarmLanguageDetector() {
	languageDetector()
}

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectable...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}

// DetectLanguage returns the ISO 639-1 code of text's language.
func DetectLanguage(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// LanguageName renders a language code in English, e.g. "de" as "German".
// Unknown codes are returned as given.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
