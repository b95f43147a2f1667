// Package locale decides which language tag is active.
//
// The effective locale is derived from a Policy and three signals: the
// system locale, the user's persisted choice and a geographic hint.
// Resolve is the pure decision; Resolver owns the published value and
// notifies subscribers when it changes.
package locale

import (
	"fmt"
	"strings"
)

type Mode int

const (
	// Hybrid follows the system until the user picks a language.
	Hybrid Mode = iota
	FollowSystem
	UserSelected
	AutoByLocation
)

func (m Mode) String() string {
	switch m {
	case FollowSystem:
		return "follow-system"
	case UserSelected:
		return "user-selected"
	case AutoByLocation:
		return "auto-by-location"
	default:
		return "hybrid"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid":
		return Hybrid, nil
	case "follow-system", "system":
		return FollowSystem, nil
	case "user-selected", "user":
		return UserSelected, nil
	case "auto-by-location", "location", "geo":
		return AutoByLocation, nil
	default:
		return Hybrid, fmt.Errorf("unknown locale mode %q", s)
	}
}

// Policy configures resolution. Tag is only used in UserSelected mode.
type Policy struct {
	Mode          Mode
	Tag           string
	Supported     []string
	FallbackChain []string
}

// DefaultPolicy is Hybrid over English only.
func DefaultPolicy() Policy {
	return Policy{
		Mode:          Hybrid,
		Supported:     []string{"en"},
		FallbackChain: []string{"en"},
	}
}

// ChoiceKind distinguishes "never chose" from "chose the system default".
type ChoiceKind int

const (
	ChoiceNone ChoiceKind = iota
	ChoiceSystem
	ChoiceTag
)

// systemChoiceValue is how an explicit system-default choice is persisted.
const systemChoiceValue = "system"

// UserChoice is the persisted language preference.
type UserChoice struct {
	Kind ChoiceKind
	Tag  string
}

func NoChoice() UserChoice     { return UserChoice{} }
func SystemChoice() UserChoice { return UserChoice{Kind: ChoiceSystem} }

func TagChoice(tag string) UserChoice {
	tag = normalizeTag(tag)
	if tag == "" {
		return NoChoice()
	}
	return UserChoice{Kind: ChoiceTag, Tag: tag}
}

// ParseUserChoice reverses UserChoice.String.
func ParseUserChoice(s string) UserChoice {
	switch strings.TrimSpace(s) {
	case "":
		return NoChoice()
	case systemChoiceValue:
		return SystemChoice()
	default:
		return TagChoice(s)
	}
}

// String is the persisted form: "" for none, "system" or the tag.
func (c UserChoice) String() string {
	switch c.Kind {
	case ChoiceSystem:
		return systemChoiceValue
	case ChoiceTag:
		return c.Tag
	default:
		return ""
	}
}

// Language returns the chosen tag, if the choice names one.
func (c UserChoice) Language() (string, bool) {
	if c.Kind == ChoiceTag && c.Tag != "" {
		return c.Tag, true
	}
	return "", false
}

// Signals are the inputs gathered at resolution time. Empty strings mean
// the signal is absent.
type Signals struct {
	System string
	User   UserChoice
	Geo    string
}

// Resolve returns the effective locale for p and s. The result is always a
// member of p.Supported except for the last resort, which is the raw system
// locale.
func Resolve(p Policy, s Signals) string {
	user, _ := s.User.Language()

	var candidates []string
	switch p.Mode {
	case UserSelected:
		candidates = []string{p.Tag, user, s.System}
	case FollowSystem:
		candidates = []string{s.System}
	case AutoByLocation:
		candidates = []string{s.Geo, s.System}
	default:
		candidates = []string{user, s.System}
	}

	for _, c := range candidates {
		if tag, ok := best(p, c); ok {
			return tag
		}
	}
	return s.System
}

// best maps tag onto the supported set: exact match, then base language,
// then the first supported fallback. An absent tag never matches.
func best(p Policy, tag string) (string, bool) {
	tag = normalizeTag(tag)
	if tag == "" {
		return "", false
	}
	if s, ok := lookup(p.Supported, tag); ok {
		return s, true
	}
	if s, ok := lookup(p.Supported, Base(tag)); ok {
		return s, true
	}
	for _, f := range p.FallbackChain {
		if s, ok := lookup(p.Supported, f); ok {
			return s, true
		}
	}
	return "", false
}

func lookup(supported []string, tag string) (string, bool) {
	for _, s := range supported {
		if strings.EqualFold(normalizeTag(s), tag) {
			return s, true
		}
	}
	return "", false
}

// Base returns the primary language subtag of tag.
func Base(tag string) string {
	base, _, _ := strings.Cut(normalizeTag(tag), "-")
	return base
}

func normalizeTag(tag string) string {
	return strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
}

var rtlLanguages = map[string]struct{}{
	"ar": {}, "fa": {}, "he": {}, "ur": {}, "ps": {}, "ckb": {}, "dv": {}, "ku": {}, "yi": {},
}

// IsRTL reports whether tag's language is written right to left.
func IsRTL(tag string) bool {
	_, ok := rtlLanguages[strings.ToLower(Base(tag))]
	return ok
}
