package latex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCompleteDocumentBareMath(t *testing.T) {
	doc := EnsureCompleteDocument("$x^2$")

	require.True(t, strings.HasPrefix(doc, `\documentclass{exam}`))
	assert.Contains(t, doc, `\usepackage{amsmath}`)
	assert.Contains(t, doc, `\usepackage{amssymb}`)
	assert.Contains(t, doc, `\geometry{margin=1in}`)
	assert.Contains(t, doc, `\usepackage[active,tightpage]{preview}`)
	assert.Contains(t, doc, `\PreviewEnvironment{document}`)
	assert.Contains(t, doc, "\\begin{questions}\n\\question\n$x^2$\n\\end{questions}\n")
	assert.True(t, strings.HasSuffix(doc, `\end{document}`))
	assert.NotContains(t, doc, `\usepackage{tikz}`)
}

func TestEnsureCompleteDocumentPassesThroughCompleteInput(t *testing.T) {
	in := "\\documentclass{article}\n\\begin{document}\nhi\n\\end{document}  \n"
	assert.Equal(t, in, EnsureCompleteDocument(in))
}

func TestEnsureCompleteDocumentIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t",
		"$x^2$",
		`\begin{tikzpicture}\draw (0,0) -- (1,1);\end{tikzpicture}`,
		`\begin{questions}\question What?\end{questions}`,
		`\begin{circuitikz}\draw (0,0) to[R] (2,0);\end{circuitikz}`,
		`\begin{enumerate}\item a\end{enumerate}`,
	}
	for _, in := range inputs {
		once := EnsureCompleteDocument(in)
		assert.Equal(t, once, EnsureCompleteDocument(once), "input %q", in)
	}
}

func TestEnsureCompleteDocumentEmptyAndWhitespace(t *testing.T) {
	for _, in := range []string{"", "  \n "} {
		doc := EnsureCompleteDocument(in)
		assert.Contains(t, doc, `\begin{document}`)
		assert.Contains(t, doc, "\\question\n"+in+"\n\\end{questions}")
		assert.Contains(t, doc, `\PreviewEnvironment{document}`)
	}
}

func TestEnsureCompleteDocumentTikZ(t *testing.T) {
	in := `\begin{tikzpicture}\draw (0,0) circle (1);\end{tikzpicture}`
	doc := EnsureCompleteDocument(in)

	assert.Contains(t, doc, `\usepackage{tikz}`)
	assert.Contains(t, doc, `\PreviewEnvironment{tikzpicture}`)
	assert.NotContains(t, doc, `\question`)
	assert.Contains(t, doc, in+"\n\n\\end{document}")
}

func TestPreviewTargetPriority(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"questions beats tikz", `\begin{tikzpicture}\end{tikzpicture}\begin{questions}\end{questions}`, PreviewQuestions},
		{"tikz beats circuit", `\begin{circuitikz}\end{circuitikz}\begin{tikzpicture}\end{tikzpicture}`, PreviewTikZ},
		{"circuit alone", `\begin{circuitikz}\end{circuitikz}`, PreviewCircuiTikZ},
		{"enumerate only", `\begin{enumerate}\item x\end{enumerate}`, PreviewWholeDocument},
		{"plain", `x + y`, PreviewWholeDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PreviewTarget(tc.content))
		})
	}
}

func TestRequiredPackagesOrder(t *testing.T) {
	content := `\begin{enumerate}\item\end{enumerate}\begin{circuitikz}\end{circuitikz}\begin{tikzpicture}\end{tikzpicture}`
	want := []string{
		`\usepackage{amsmath}`,
		`\usepackage{amssymb}`,
		`\usepackage{tikz}`,
		`\usepackage{circuitikz}`,
		`\usepackage{enumitem}`,
		`\usepackage{geometry}`,
		`\geometry{margin=1in}`,
		`\usepackage[active,tightpage]{preview}`,
	}
	assert.Equal(t, want, RequiredPackages(content))
}

func TestEnumerateStillWrappedInQuestion(t *testing.T) {
	doc := EnsureCompleteDocument(`\begin{enumerate}\item a\end{enumerate}`)
	assert.Contains(t, doc, `\usepackage{enumitem}`)
	assert.Contains(t, doc, "\\begin{questions}\n\\question\n")
}
