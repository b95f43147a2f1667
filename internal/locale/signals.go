package locale

import (
	"context"
	"os"
	"strings"

	"golang.org/x/text/language"
)

// SystemLocaleFunc reports the operating system locale as a BCP 47 tag.
type SystemLocaleFunc func() string

// EnvSystemLocale reads the POSIX locale variables in priority order
// (LANGUAGE, LC_ALL, LC_MESSAGES, LANG). "C", "POSIX" and unset map to "en".
func EnvSystemLocale() string {
	return systemLocaleFrom(os.Getenv)
}

func systemLocaleFrom(getenv func(string) string) string {
	for _, name := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		v := getenv(name)
		if name == "LANGUAGE" {
			// colon separated preference list
			v, _, _ = strings.Cut(v, ":")
		}
		if tag := posixToBCP47(v); tag != "" {
			return tag
		}
	}
	return "en"
}

// posixToBCP47 converts "pt_BR.UTF-8@euro" to "pt-BR".
func posixToBCP47(v string) string {
	v, _, _ = strings.Cut(v, ".")
	v, _, _ = strings.Cut(v, "@")
	v = strings.TrimSpace(v)
	if v == "" || v == "C" || v == "POSIX" {
		return ""
	}
	tag, err := language.Parse(normalizeTag(v))
	if err != nil {
		return ""
	}
	return tag.String()
}

// GeoHinter suggests a supported tag from the user's location.
type GeoHinter interface {
	Suggest(ctx context.Context, supported []string) (string, bool)
}

// SystemGeoHinter uses the system locale as the location signal: the exact
// tag if supported, else its base language if supported.
type SystemGeoHinter struct {
	System SystemLocaleFunc
}

func (h SystemGeoHinter) Suggest(ctx context.Context, supported []string) (string, bool) {
	sys := EnvSystemLocale
	if h.System != nil {
		sys = h.System
	}
	return suggest(normalizeTag(sys()), supported)
}

// RegionGeoHinter derives a tag from an ISO 3166 region code using likely
// subtags: "BR" suggests "pt-BR", then "pt".
type RegionGeoHinter struct {
	Region string
}

func (h RegionGeoHinter) Suggest(ctx context.Context, supported []string) (string, bool) {
	region, err := language.ParseRegion(strings.TrimSpace(h.Region))
	if err != nil {
		return "", false
	}
	tag, err := language.Compose(language.Und, region)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return suggest(base.String()+"-"+region.String(), supported)
}

func suggest(tag string, supported []string) (string, bool) {
	if tag == "" {
		return "", false
	}
	if s, ok := lookup(supported, tag); ok {
		return s, true
	}
	return lookup(supported, Base(tag))
}
