package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reCollapseSpaces = regexp.MustCompile(`[ \t]+`)
	reCollapseBlank  = regexp.MustCompile(`\n{3,}`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func collapseSpaces(s string) string {
	return reCollapseSpaces.ReplaceAllString(s, " ")
}

func collapseBlankLines(s string) string {
	return reCollapseBlank.ReplaceAllString(s, "\n\n")
}

// SanitizeText normalizes free-form intake text (story, participants,
// questions) without touching its content.
func SanitizeText(input string) string {
	p := Pipeline{
		trim,
		collapseSpaces,
		collapseBlankLines,
	}
	return p.Apply(input)
}

// SanitizeSlice applies a strategy to each value, dropping empties and
// duplicates while preserving input order.
func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
