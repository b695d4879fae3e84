// Package latex turns question fragments into complete, compilable LaTeX documents.
//
// EnsureCompleteDocument is a pure string transformation: content that already
// declares a document class passes through untouched, anything else gets an
// exam-class preamble and a preview target so the compiled page is cropped to
// the content instead of a full letter page.
package latex

import "strings"

// Content markers inspected by the synthesizer.
const (
	markerDocumentClass = `\documentclass`
	markerQuestions     = `\begin{questions}`
	markerTikZ          = `\begin{tikzpicture}`
	markerCircuiTikZ    = `\begin{circuitikz}`
	markerEnumerate     = `\begin{enumerate}`
)

// Preview targets, in priority order.
const (
	PreviewQuestions     = "questions"
	PreviewTikZ          = "tikzpicture"
	PreviewCircuiTikZ    = "circuitikz"
	PreviewWholeDocument = "document"
)

var basePackages = []string{
	`\usepackage{amsmath}`,
	`\usepackage{amssymb}`,
}

var layoutPackages = []string{
	`\usepackage{geometry}`,
	`\geometry{margin=1in}`,
	`\usepackage[active,tightpage]{preview}`,
}

// IsCompleteDocument reports whether content already declares a document class.
func IsCompleteDocument(content string) bool {
	return strings.Contains(content, markerDocumentClass)
}

// RequiredPackages returns the preamble lines a fragment needs, in emission order.
func RequiredPackages(content string) []string {
	pkgs := make([]string, 0, len(basePackages)+len(layoutPackages)+3)
	pkgs = append(pkgs, basePackages...)

	if strings.Contains(content, markerTikZ) {
		pkgs = append(pkgs, `\usepackage{tikz}`)
	}
	if strings.Contains(content, markerCircuiTikZ) {
		pkgs = append(pkgs, `\usepackage{circuitikz}`)
	}
	if strings.Contains(content, markerEnumerate) {
		pkgs = append(pkgs, `\usepackage{enumitem}`)
	}

	return append(pkgs, layoutPackages...)
}

// PreviewTarget picks the environment the preview package crops to.
func PreviewTarget(content string) string {
	switch {
	case strings.Contains(content, markerQuestions):
		return PreviewQuestions
	case strings.Contains(content, markerTikZ):
		return PreviewTikZ
	case strings.Contains(content, markerCircuiTikZ):
		return PreviewCircuiTikZ
	default:
		return PreviewWholeDocument
	}
}

// needsQuestionWrapper is true for bare content with no structural environment.
func needsQuestionWrapper(content string) bool {
	return !strings.Contains(content, markerQuestions) &&
		!strings.Contains(content, markerTikZ) &&
		!strings.Contains(content, markerCircuiTikZ)
}

// EnsureCompleteDocument returns content unchanged if it is already a complete
// document, otherwise a synthesized document embedding it.
//
// The result always contains a document class declaration, so applying the
// function twice is the same as applying it once.
func EnsureCompleteDocument(content string) string {
	if IsCompleteDocument(content) {
		return content
	}

	var b strings.Builder
	b.Grow(len(content) + 512)

	b.WriteString(`\documentclass{exam}` + "\n")
	b.WriteString(strings.Join(RequiredPackages(content), "\n"))
	b.WriteString("\n\n")

	b.WriteString(`\PreviewEnvironment{` + PreviewTarget(content) + "}\n\n")
	b.WriteString(`\begin{document}` + "\n\n")

	if needsQuestionWrapper(content) {
		b.WriteString(markerQuestions + "\n" + `\question` + "\n")
		b.WriteString(content + "\n")
		b.WriteString(`\end{questions}` + "\n")
	} else {
		b.WriteString(content + "\n\n")
	}

	b.WriteString(`\end{document}`)
	return b.String()
}
