package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDiagnostic(t *testing.T) {
	cases := []struct {
		name string
		log  string
		want string
	}{
		{
			name: "package error preferred",
			log: "! Undefined control sequence.\n" +
				"! LaTeX Error: Environment foo undefined.\n" +
				"! Package tikz Error: Giving up on this path. Did you forget a semicolon?.\n",
			want: "tikz: Giving up on this path. Did you forget a semicolon?.",
		},
		{
			name: "latex error before generic",
			log:  "! Undefined control sequence.\n! LaTeX Error: File `foo.sty' not found.\n",
			want: "File `foo.sty' not found.",
		},
		{
			name: "generic marker",
			log:  "(./content.tex\n! Missing $ inserted.\n<inserted text>\n",
			want: "Missing $ inserted.",
		},
		{
			name: "first generic match wins",
			log:  "! Undefined control sequence.\n! Emergency stop.\n",
			want: "Undefined control sequence.",
		},
		{
			name: "crlf line endings",
			log:  "! LaTeX Error: Missing \\begin{document}.\r\n",
			want: `Missing \begin{document}.`,
		},
		{
			name: "bang not at line start ignored",
			log:  "Warning! nothing fatal here\n",
			want: GenericCompileError,
		},
		{
			name: "empty log",
			log:  "",
			want: GenericCompileError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractDiagnostic(tc.log))
		})
	}
}

func TestErrorSVGEscapesMessage(t *testing.T) {
	body := string(ErrorSVG(`System error: <script> & "quotes"`))

	assert.Contains(t, body, `width="500" height="100"`)
	assert.Contains(t, body, "System error: &lt;script&gt; &amp; &#34;quotes&#34;")
	assert.NotContains(t, body, "<script>")
}

func TestErrorImageIsDataURI(t *testing.T) {
	uri := ErrorImage("LaTeX error: Missing } inserted.")
	require.True(t, strings.HasPrefix(uri, "data:image/svg+xml;base64,"))

	mime, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mime)
	assert.Contains(t, string(data), "LaTeX error: Missing } inserted.")
	assert.Contains(t, string(data), `class="texrender-error"`)
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "image/png;base64,AAA", "data:image/png,raw", "data:image/png;base64", "data:image/png;base64,***"} {
		_, _, err := DecodeDataURI(in)
		assert.Error(t, err, "input %q", in)
	}
}
