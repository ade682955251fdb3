package main

import (
	"maps"
	"math/rand/v2"
	"regexp"
	"slices"
)

var examples = map[string]string{
	"Ask with a fallback":            `aihelper ask -m anthropic/claude-3.5-haiku -p anthropic --fallback openai/gpt-4.1-mini "name three rivers"`,
	"Structured answer with tools":   `aihelper ask --schema weather --tools "haiku about the weather in Sofia"`,
	"Summarize a document":           `aihelper ask --schema file -f report.pdf "summarize this"`,
	"Pipe content in":                `git diff | aihelper ask "write a commit message for this diff"`,
	"See what the month cost so far": `aihelper usage | less`,
	"Find cheap models":              `aihelper prices | grep cheap`,
}

var regexpQuote = regexp.MustCompile(`"[^"]*"`)

func randomExample() (string, string) {
	keys := slices.Sorted(maps.Keys(examples))
	desc := keys[rand.IntN(len(keys))] //nolint:gosec
	return desc, examples[desc]
}
