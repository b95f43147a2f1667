// Package postprocess removes common LLM artifacts from candidate
// translations of UI strings.
//
// It is applied to the raw text returned by LLM-backed providers (OpenRouter,
// the Ollama on-device backend) before the candidate reaches the quality
// gate. The source string is consulted so that legitimate quotes or line
// breaks present in the source survive.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from candidate in four phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Quote wrapping removal, unless source itself is quoted
//  4. Trailing commentary removal for single-line sources
func Clean(candidate, source string) string {
	text := removeThinkingBlocks(candidate)
	text = removeInstructionEchoes(text)
	if !isQuoted(strings.TrimSpace(source)) {
		text = removeQuoteWrapping(text)
	}
	if !strings.Contains(strings.TrimSpace(source), "\n") {
		text = firstLine(text)
	}
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// Each tag variant is listed explicitly because RE2 has no backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// an opened thinking tag whose closing tag is missing
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// Anchored to the start and require a colon to limit false positives.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:translated )?(?:translation|text|label|string)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:translation|translated text|translated label)\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the)? (?:translated )?(?:translation|text|label)\s*:`),
	regexp.MustCompile(`(?i)^translation\s*\([a-z-]+\)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: quote wrapping ---

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
	{'`', '`'},
}

func isQuoted(text string) bool {
	runes := []rune(text)
	if len(runes) < 2 {
		return false
	}
	first, last := runes[0], runes[len(runes)-1]
	for _, p := range quotePairs {
		if first == p[0] && last == p[1] {
			return true
		}
	}
	return false
}

func removeQuoteWrapping(text string) string {
	if !isQuoted(text) {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[1 : len(runes)-1]))
}

// --- Phase 4: trailing commentary ---

// firstLine keeps the first non-empty line; models tend to append notes
// ("Note: ...") after a one-line answer.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
