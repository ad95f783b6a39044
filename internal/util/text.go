package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeHeader canonicalizes a tabular column header for synonym
// matching: lowercase, accents folded, separators collapsed to "_".
func NormalizeHeader(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	repl := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
		"³", "3", "²", "2",
	)
	s = repl.Replace(s)
	out := strings.Builder{}
	lastSep := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out.WriteRune(r)
			lastSep = false
		default:
			if !lastSep && out.Len() > 0 {
				out.WriteByte('_')
				lastSep = true
			}
		}
	}
	return strings.TrimRight(out.String(), "_")
}

// SplitLines returns the non-empty trimmed lines of a text block.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
