package latex

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Section is the LaTeX contributed by one page.
type Section struct {
	Page int    // 1-based page index, the ordering key
	Body string // rendered text, including the page marker comment
}

// NewSection wraps sanitized page text in its page marker.
func NewSection(page int, text string) Section {
	return Section{
		Page: page,
		Body: fmt.Sprintf("%% ===== Page %d =====\n%s\n", page, text),
	}
}

// FailedSection is the comment-only body used when a page could not be transcribed.
func FailedSection(page int, reason string) Section {
	return Section{
		Page: page,
		Body: fmt.Sprintf("%% %s\n", FailureMessage(page, reason)),
	}
}

// FailureMessage is the error entry recorded for a page that failed.
func FailureMessage(page int, reason string) string {
	return fmt.Sprintf("Failed to process page %d: %s", page, oneLine(reason))
}

// Join concatenates section bodies in page order, separated by a blank line.
func Join(sections []Section) string {
	ordered := sortedSections(sections)
	bodies := make([]string, len(ordered))
	for i, s := range ordered {
		bodies[i] = s.Body
	}
	return strings.Join(bodies, "\n\n")
}

// TimestampLayout formats the generation time in the title block.
const TimestampLayout = "2006-01-02 15:04:05 MST"

// Assembler renders complete documents.
type Assembler struct {
	// Now supplies the generation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Assemble wraps sections in the fixed preamble, title block and closing
// marker. Section content is not checked here.
func (a Assembler) Assemble(sections []Section, scriptID string) string {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	id := EscapeText(scriptID)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(fmt.Sprintf(preambleTemplate, id, id, now().Format(TimestampLayout))))
	b.WriteString("\n\n")
	b.WriteString(Join(sections))
	b.WriteString("\n\n")
	b.WriteString(closingMarker)
	return b.String()
}

const closingMarker = "\\end{document}\n"

// preambleTemplate takes the header script id, the title script id and the
// generation timestamp. Literal percent signs are doubled for fmt.
const preambleTemplate = `
\documentclass[11pt, a4paper]{article}

%% Essential packages
\usepackage[utf8]{inputenc}
\usepackage[T1]{fontenc}
\usepackage{amsmath, amsfonts, amssymb}
\usepackage{graphicx}
\usepackage[version=4]{mhchem}
\usepackage{geometry}
\usepackage{fancyhdr}
\usepackage{titlesec}
\usepackage{enumitem}
\usepackage{booktabs}
\usepackage{array}
\usepackage{longtable}

%% Page setup
\geometry{
    a4paper,
    margin=1in,
    top=1.2in,
    bottom=1.2in
}

%% Header and footer
\pagestyle{fancy}
\fancyhf{}
\fancyhead[L]{Script ID: %s}
\fancyhead[R]{OCR Generated Report}
\fancyfoot[C]{\thepage}

%% Title formatting
\titleformat{\section}{\large\bfseries}{\thesection}{1em}{}
\titleformat{\subsection}{\normalsize\bfseries}{\thesubsection}{1em}{}

%% Custom commands for common elements
\newcommand{\pagemarker}[1]{\vspace{1em}\noindent\textbf{--- Page #1 ---}\vspace{0.5em}}

\begin{document}

%% Title page
\begin{center}
    \vspace*{2cm}
    {\Large\bfseries OCR Transcription Report}\\[0.5cm]
    {\large Script ID: %s}\\[0.5cm]
    {\normalsize Generated on: %s}\\[2cm]
\end{center}

\newpage
`

// EscapeText escapes every LaTeX special character in plain text.
func EscapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\textbackslash{}`)
		case '~':
			b.WriteString(`\textasciitilde{}`)
		case '^':
			b.WriteString(`\textasciicircum{}`)
		case '{', '}', '$', '&', '#', '_', '%':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedSections(sections []Section) []Section {
	ordered := slices.Clone(sections)
	slices.SortStableFunc(ordered, func(a, b Section) int {
		return a.Page - b.Page
	})
	return ordered
}

// oneLine keeps failure reasons inside a single comment line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
