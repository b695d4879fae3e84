package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

const errorSVGHead = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" class="texrender-error" width="500" height="100" viewBox="0 0 500 100">
    <rect width="500" height="100" fill="#f8d7da" stroke="#f5c6cb" stroke-width="1" rx="5" ry="5"/>
    <text x="50%" y="50%" text-anchor="middle" dominant-baseline="middle" font-family="Arial" font-size="14" fill="#721c24">`

const errorSVGTail = `</text>
</svg>`

// ErrorSVG renders message inside the fixed-size diagnostic rectangle.
func ErrorSVG(message string) []byte {
	var b bytes.Buffer
	b.WriteString(errorSVGHead)
	// EscapeText only fails on writer errors; bytes.Buffer has none
	_ = xml.EscapeText(&b, []byte(message))
	b.WriteString(errorSVGTail)
	return b.Bytes()
}

// ErrorImage returns the diagnostic image for message as a data URI.
func ErrorImage(message string) string {
	return DataURI(FormatSVG.MIME(), ErrorSVG(message))
}

// DataURI inlines data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its media type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URI has no payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded: %q", meta)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mime, data, nil
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(FormatSVG.MIME(), svg.Minify)
	return m
}
