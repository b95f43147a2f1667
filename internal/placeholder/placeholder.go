// Package placeholder handles {identifier} tokens in UI strings.
//
// Tokens are compared as sets by the quality gate, shielded from machine
// translation by replacing them with numbered markers ([PH0], [PH1], …) and
// finally substituted with caller arguments at render time.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// {name}, {count}, {user.id}; braces may not nest
	reToken = regexp.MustCompile(`\{[^{}]+\}`)

	// placeholder reference in translated text
	reMarker = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Tokens returns the distinct {…} tokens found in text, sorted.
func Tokens(text string) []string {
	set := tokenSet(text)
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// SameSet reports whether a and b contain the same set of tokens. Order and
// multiplicity are ignored.
func SameSet(a, b string) bool {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for tok := range sa {
		if _, ok := sb[tok]; !ok {
			return false
		}
	}
	return true
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range reToken.FindAllString(text, -1) {
		set[m] = struct{}{}
	}
	return set
}

// Protect replaces every {…} token with a numbered marker [PH0], [PH1], … in
// order of appearance. It returns the modified text and the captured tokens
// so Restore can put them back.
func Protect(text string) (string, []string) {
	var markers []string
	out := reToken.ReplaceAllStringFunc(text, func(match string) string {
		id := fmt.Sprintf("[PH%d]", len(markers))
		markers = append(markers, match)
		return id
	})
	return out, markers
}

// Restore substitutes [PHn] markers in text back with the tokens captured
// by Protect. Unknown indices leave the marker as-is, which the quality gate
// then rejects as a placeholder mismatch.
func Restore(text string, markers []string) string {
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(markers) {
			return match
		}
		return markers[idx]
	})
}

// Validate returns the indices of markers created by Protect that are
// missing from the translated text.
func Validate(text string, markers []string) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint returns a sentence to append to an LLM prompt so the model
// leaves placeholders intact.
func InstructionHint() string {
	return "Keep every {placeholder} exactly as written: do not translate, rename, move out of the sentence, or remove them."
}

// Substitute replaces {name} tokens in template with the matching value from
// args. Tokens without an argument are left untouched; nil values become the
// empty string.
func Substitute(template string, args map[string]any) string {
	if len(args) == 0 {
		return template
	}
	return reToken.ReplaceAllStringFunc(template, func(tok string) string {
		v, ok := args[tok[1:len(tok)-1]]
		if !ok {
			return tok
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
