package pipeline

import (
	"context"
	"fmt"
)

// FailureKind classifies why a render produced a diagnostic image.
type FailureKind int

const (
	// CompilerError: the compiler exited non-zero; the detail is taken from its log.
	CompilerError FailureKind = iota + 1
	// ArtifactMissing: the compiler exited cleanly but wrote no PDF.
	ArtifactMissing
	// ConverterError: the PDF to image step failed.
	ConverterError
	// SystemError: a tool could not be started, timed out, or the OS refused an operation.
	SystemError
)

func (k FailureKind) String() string {
	switch k {
	case CompilerError:
		return "compiler_error"
	case ArtifactMissing:
		return "artifact_missing"
	case ConverterError:
		return "converter_error"
	case SystemError:
		return "system_error"
	default:
		return "unknown"
	}
}

func (k FailureKind) prefix() string {
	switch k {
	case CompilerError, ArtifactMissing:
		return "LaTeX error"
	case ConverterError:
		return "Conversion error"
	default:
		return "System error"
	}
}

// Failure describes a render that did not produce typeset output.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

// Error returns the human readable message shown inside the diagnostic image.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind.prefix(), f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of a render. Image is always a well-formed data URI;
// Failure is non-nil when Image is a diagnostic image.
type Outcome struct {
	Image   string
	Failure *Failure
}

// OK reports whether the render produced typeset output.
func (o Outcome) OK() bool { return o.Failure == nil }

// Label is used for metrics and logs.
func (o Outcome) Label() string {
	if o.Failure == nil {
		return "success"
	}
	return o.Failure.Kind.String()
}

// Format selects the image type produced by successful renders.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// MIME returns the media type used in data URIs.
func (f Format) MIME() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Valid reports whether f is a supported output format.
func (f Format) Valid() bool {
	return f == FormatSVG || f == FormatPNG
}

// CompileResult is what the compiler stage leaves behind.
type CompileResult struct {
	// ArtifactPath is empty when no PDF was written.
	ArtifactPath string
	Log          string
	ExitCode     int
	Stdout       string
	Stderr       string
}

// Toolchain runs the two external stages. Compile returns an error only for
// system faults; a non-zero compiler exit is reported through CompileResult.
type Toolchain interface {
	Compile(ctx context.Context, sourcePath, outDir string) (CompileResult, error)
	Convert(ctx context.Context, artifactPath, destPath string) error
}
