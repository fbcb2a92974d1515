package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// BatchSystemPrompt sets the translator role and the reply contract for
// batch requests.
const BatchSystemPrompt = `You are a professional translator who writes natural, fluent text in the target language.

Translate every input text from English into the target language named by the user.

Quality rules:
- Sound like a native speaker wrote it; avoid stiff, word-for-word renderings.
- The texts are instructions addressed to an AI assistant: keep commands as commands and questions as questions.
- Keep the meaning, intent and tone of the source.
- Prefer the idiomatic equivalent for colloquial expressions ("feel free to", "wrap up", "go ahead") over a literal one.

Never translate, keep exactly as written:
- file names and extensions (final_report.pdf, config.yaml)
- directory names and paths (/home/user/documents, C:\Users\foo); when an English word names a specific folder ("workspace folder"), keep the name and translate only the word for folder or directory
- technical abbreviations (CWD, CLI, API, CPU, RAM) without expanding them
- commands, flags and shell syntax (grep, sort, diff, --output)
- function, class, API, variable and parameter names (GorillaFileSystem, post_tweet)
- URLs, email addresses and domain names
- other technical proper nouns conventionally kept in English

Reply format:
- Return ONLY a JSON array of strings, same order as the input, with exactly as many elements as the input.
- No explanations, notes or extra content.
- A text already in the target language is returned unchanged; an empty text is returned as an empty string.`

// RepairSystemPrompt is used when a single rejected translation is redone.
const RepairSystemPrompt = `You are a professional translator revising your own work after a review. Reply with the corrected translation only.`

// BuildBatchPrompt renders the user turn of a batch request.
func BuildBatchPrompt(targetLang string, texts []string, glossary map[string]string) string {
	if texts == nil {
		texts = []string{}
	}
	var textsJSON bytes.Buffer
	enc := json.NewEncoder(&textsJSON)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(texts)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following texts into %s.\n", targetLang)
	sb.WriteString("Keep file names, directory names, paths, technical abbreviations, commands and technical proper nouns exactly as they appear.\n")
	writeGlossary(&sb, glossary)
	fmt.Fprintf(&sb, "\nInput JSON array:\n%s\n\nReturn only the translated JSON array.", strings.TrimRight(textsJSON.String(), "\n"))
	return sb.String()
}

// BuildRepairPrompt renders the request for a corrected translation of one
// text, given the rejected attempt and the reviewer's feedback.
func BuildRepairPrompt(original, previous, feedback, targetLang string, glossary map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your previous translation into %s was reviewed and rejected.\n\n", targetLang)
	fmt.Fprintf(&sb, "Original English:\n%s\n\n", original)
	fmt.Fprintf(&sb, "Your previous translation:\n%s\n\n", previous)
	fmt.Fprintf(&sb, "Reviewer feedback:\n%s\n", feedback)
	writeGlossary(&sb, glossary)
	sb.WriteString("\nProvide a corrected translation that addresses the feedback above.\n")
	sb.WriteString("Return ONLY the translated string, with no extra explanation or formatting.")
	return sb.String()
}

func writeGlossary(sb *strings.Builder, glossary map[string]string) {
	if len(glossary) == 0 {
		return
	}
	terms := make([]string, 0, len(glossary))
	for src := range glossary {
		terms = append(terms, src)
	}
	sort.Strings(terms)

	sb.WriteString("\nTERMINOLOGY (use these exact translations):\n")
	for _, src := range terms {
		fmt.Fprintf(sb, "  %s → %s\n", src, glossary[src])
	}
}
