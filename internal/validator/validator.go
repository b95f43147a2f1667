// Package validator decides whether a candidate translation may become
// visible or cached. All checks are pure string checks against the
// normalized source text; no I/O is performed.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/valpere/autotrad/internal/placeholder"
)

var (
	ErrPlaceholderMismatch = errors.New("placeholder set differs from source")
	ErrBlacklisted         = errors.New("source must be preserved verbatim")
	ErrTooLong             = errors.New("candidate exceeds role length limit")
)

// blacklist patterns are matched against the whole source text.
var blacklist = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`), // e-mail
	regexp.MustCompile(`^[A-Z]{2,}[0-9]{3,}$`),                          // codes like ABC123
	regexp.MustCompile(`^[0-9]{4,}$`),                                   // long numbers
	regexp.MustCompile(`^\{[^{}]+\}$`),                                  // bare placeholder
}

// IsAcceptable reports whether candidate is an acceptable translation of
// source for the given role. RoleNone imposes no length limit.
func IsAcceptable(source, candidate string, role Role) bool {
	return Check(source, candidate, role) == nil
}

// Check is IsAcceptable with the reason for rejection.
func Check(source, candidate string, role Role) error {
	if !placeholder.SameSet(source, candidate) {
		return fmt.Errorf("%w: source %v, candidate %v",
			ErrPlaceholderMismatch, placeholder.Tokens(source), placeholder.Tokens(candidate))
	}

	if IsBlacklisted(source) && source != candidate {
		return fmt.Errorf("%w: %q", ErrBlacklisted, source)
	}

	if max, ok := role.MaxChars(); ok {
		if n := utf8.RuneCountInString(candidate); n > max {
			return fmt.Errorf("%w: %s allows %d, got %d", ErrTooLong, role, max, n)
		}
	}

	return nil
}

// IsBlacklisted reports whether text as a whole is a value that must never
// be translated (e-mail address, code, long number or lone placeholder).
func IsBlacklisted(text string) bool {
	for _, re := range blacklist {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
