// Package latex cleans model transcriptions into LaTeX fragments, checks them
// for obvious structural problems, and assembles them into a complete document.
package latex

import (
	"regexp"
	"strings"
)

// EmptyContent is returned by Sanitize when nothing survives cleanup.
// Every page must contribute non-empty text to the assembled document.
const EmptyContent = "% Empty content"

// DiagramRemoved replaces each vector-diagram environment.
const DiagramRemoved = "% DIAGRAM: TikZ picture removed"

var (
	preamblePattern    = regexp.MustCompile(`(?s)\\documentclass.*?\\begin\{document\}`)
	endDocumentPattern = regexp.MustCompile(`\\end\{document\}`)
	codeFencePattern   = regexp.MustCompile("```(?:latex|tex)?")
	diagramPattern     = regexp.MustCompile(`(?s)\\begin\{(tikzpicture|pgfpicture)\}.*?\\end\{(tikzpicture|pgfpicture)\}`)
	blankRunPattern    = regexp.MustCompile(`\n\s*\n\s*\n+`)
	trailingWSPattern  = regexp.MustCompile(`[ \t]+\n`)
	dollarRunPattern   = regexp.MustCompile(`\$\$\$+`)
)

// Sanitize applies the cleanup rules to raw model output, in order:
// document structure, code fences, special characters, underscores, degree
// notation, diagrams, layout and math delimiters. The result is never empty
// and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return EmptyContent
	}

	s := preamblePattern.ReplaceAllString(raw, "")
	s = endDocumentPattern.ReplaceAllString(s, "")
	s = codeFencePattern.ReplaceAllString(s, "")

	s = escapeSpecials(s)
	s = escapeUnderscores(s)

	s = strings.ReplaceAll(s, `\degree`, `^{\circ}`)
	s = strings.ReplaceAll(s, "°", `^{\circ}`)

	s = replaceDiagrams(s)
	s = tidy(s)

	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyContent
	}
	return s
}

// escapeSpecials escapes %, & and # and spells out ~ unless the character is
// already preceded by a backslash. A % opening a line is a comment marker.
func escapeSpecials(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/16)

	lineStart := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		escaped := i > 0 && s[i-1] == '\\'

		switch {
		case c == '%' && !escaped && lineStart:
			b.WriteByte(c)
		case (c == '%' || c == '&' || c == '#') && !escaped:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '~' && !escaped:
			b.WriteString(`\textasciitilde{}`)
		default:
			b.WriteByte(c)
		}

		switch c {
		case '\n':
			lineStart = true
		case ' ', '\t', '\r':
		default:
			lineStart = false
		}
	}
	return b.String()
}

// escapeUnderscores escapes _ unless it is already escaped or reads as
// subscript syntax (followed by a digit or an opening brace).
func escapeUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/16)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i > 0 && s[i-1] == '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && (isDigit(s[i+1]) || s[i+1] == '{') {
			b.WriteByte(c)
			continue
		}
		b.WriteString(`\_`)
	}
	return b.String()
}

// replaceDiagrams swaps every diagram environment for a single comment line.
// The marker always sits on its own line so it cannot swallow surrounding text.
func replaceDiagrams(s string) string {
	locs := diagramPattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		b.WriteString(s[last:start])
		if start > 0 && s[start-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(DiagramRemoved)
		if end < len(s) && s[end] != '\n' {
			b.WriteByte('\n')
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// tidy collapses blank-line runs, trailing whitespace and math delimiters.
// Removing an empty math block can expose new whitespace runs, so the rules
// repeat until the text stops changing.
func tidy(s string) string {
	for range 8 {
		next := blankRunPattern.ReplaceAllString(s, "\n\n")
		next = trailingWSPattern.ReplaceAllString(next, "\n")
		next = dollarRunPattern.ReplaceAllLiteralString(next, "$$")
		next = dropEmptyMath(next)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// dropEmptyMath removes $...$ and $$...$$ pairs whose body is blank.
// Delimiters are paired left to right; escaped dollars are ignored.
func dropEmptyMath(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	open := -1  // index of the opening delimiter in s
	width := 0  // 1 for inline math, 2 for display math
	last := 0   // start of the text not yet copied to b
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || (i > 0 && s[i-1] == '\\') {
			continue
		}
		w := 1
		if i+1 < len(s) && s[i+1] == '$' {
			w = 2
		}

		if open < 0 {
			open, width = i, w
			i += w - 1
			continue
		}
		if width == 2 && w == 1 {
			// a lone $ inside display math is body text
			continue
		}

		bodyStart := open + width
		closeEnd := i + width
		if strings.TrimSpace(s[bodyStart:i]) == "" {
			b.WriteString(s[last:open])
			last = closeEnd
		}
		i = closeEnd - 1
		open = -1
	}
	b.WriteString(s[last:])
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
