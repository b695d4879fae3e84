package pipeline

import (
	"regexp"
	"strings"
)

// GenericCompileError is reported when the log has no recognizable error line.
const GenericCompileError = "LaTeX compilation failed"

type diagnosticRule struct {
	re     *regexp.Regexp
	format func(m []string) string
}

// Ordered most specific first; the first rule with any match wins.
var diagnosticRules = []diagnosticRule{
	{
		re:     regexp.MustCompile(`(?m)^! Package (\S+) Error: (.+?)\r?$`),
		format: func(m []string) string { return m[1] + ": " + m[2] },
	},
	{
		re:     regexp.MustCompile(`(?m)^! LaTeX Error: (.+?)\r?$`),
		format: func(m []string) string { return m[1] },
	},
	{
		re:     regexp.MustCompile(`(?m)^! (.+?)\r?$`),
		format: func(m []string) string { return m[1] },
	},
}

// ExtractDiagnostic pulls the most useful fatal error line out of a TeX log.
func ExtractDiagnostic(log string) string {
	if msg, ok := matchDiagnostic(log); ok {
		return msg
	}
	return GenericCompileError
}

func matchDiagnostic(log string) (string, bool) {
	for _, rule := range diagnosticRules {
		if m := rule.re.FindStringSubmatch(log); m != nil {
			if msg := strings.TrimSpace(rule.format(m)); msg != "" {
				return msg, true
			}
		}
	}
	return "", false
}

// diagnoseCompile prefers the .log file and falls back to the compiler's stdout,
// which carries the same lines when the log could not be written.
func diagnoseCompile(res CompileResult) string {
	for _, src := range []string{res.Log, res.Stdout} {
		if msg, ok := matchDiagnostic(src); ok {
			return msg
		}
	}
	return GenericCompileError
}
