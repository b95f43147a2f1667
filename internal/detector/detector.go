// Package detector identifies the language of short UI strings using
// lingua-go. Building the underlying model is expensive; reuse instances.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// DefaultThreshold is the minimum confidence for a detection to count.
const DefaultThreshold = 0.3

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for all languages lingua supports.
func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

// NewForLanguages builds a smaller, faster detector restricted to the given
// ISO 639-1 codes (e.g. the locales an app supports). Unknown codes are
// ignored; fewer than two known languages falls back to all languages.
func NewForLanguages(codes ...string) *Detector {
	var langs []lingua.Language
	for _, code := range codes {
		iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(baseLanguage(code)))
		if iso == lingua.UnknownIsoCode639_1 {
			continue
		}
		lang := lingua.GetLanguageFromIsoCode639_1(iso)
		if lang != lingua.Unknown {
			langs = append(langs, lang)
		}
	}
	if len(langs) < 2 {
		return New()
	}
	return &Detector{detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build()}
}

// DetectConfidence returns the most likely language as a lower-case ISO
// 639-1 code together with its confidence in [0, 1].
func (d *Detector) DetectConfidence(text string) (string, float64, bool) {
	if strings.TrimSpace(text) == "" {
		return "", 0, false
	}
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return "", 0, false
	}
	top := values[0]
	if top.Language() == lingua.Unknown {
		return "", 0, false
	}
	return strings.ToLower(top.Language().IsoCode639_1().String()), top.Value(), true
}

func baseLanguage(tag string) string {
	base, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
	return base
}
