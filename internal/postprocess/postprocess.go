// Package postprocess removes common LLM artifacts from model replies.
//
// JSON replies (translation batches, judge verdicts) go through JSON, which
// strips reasoning blocks and markdown fences and cuts the reply down to
// the outermost array or object. Plain-text replies (single repaired
// translations) go through Answer, which additionally drops introductory
// echoes and wrapping quotes that the source text did not have.
package postprocess

import (
	"regexp"
	"strings"
)

// JSON returns the part of a model reply that should be parsed as JSON.
// open is '[' or '{' and selects which container to look for when the
// reply carries prose around the payload.
func JSON(text string, open byte) string {
	text = removeThinkingBlocks(text)
	text = StripFences(text)
	if text == "" || text[0] == open {
		return text
	}
	closing := byte(']')
	if open == '{' {
		closing = '}'
	}
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return text
}

// Answer cleans a single-string reply. source is the text the reply
// translates; wrapping quotes are kept when source is wrapped the same way.
func Answer(text, source string) string {
	text = removeThinkingBlocks(text)
	text = StripFences(text)
	text = removeInstructionEchoes(text)
	if !isQuoteWrapped(strings.TrimSpace(source)) {
		text = removeQuoteWrapping(text)
	}
	return strings.TrimSpace(text)
}

// StripFences removes a surrounding ```lang … ``` markdown block.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && fenceTagRe.MatchString(strings.TrimSpace(body[:nl])) {
		body = body[nl+1:]
	} else if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// fenceTagRe matches the language tag after an opening fence.
var fenceTagRe = regexp.MustCompile(`^[A-Za-z0-9_+-]*$`)

// --- reasoning blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// RE2 has no backreferences, so every tag is spelled out.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened tag whose closing tag never came.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- instruction echoes ---

// echoPatterns are anchored to the start and require a colon.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| my)? (?:corrected |improved |revised |updated |refined |translated )?(?:translation|text)\s*:`),
	regexp.MustCompile(`(?i)^(?:the |my )?(?:corrected |improved |revised |updated |refined )?(?:translation|translated text)\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| my)? (?:corrected |improved |revised |updated |refined |translated )?(?:translation|text)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- quote wrapping ---

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
	{'「', '」'},
}

func isQuoteWrapped(text string) bool {
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
	if !isQuoteWrapped(text) {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[1 : len(runes)-1]))
}
