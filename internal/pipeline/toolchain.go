package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Executor abstracts command execution for testability.
// A non-zero exit is reported in ExecResult, not as an error.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args ...string) (ExecResult, error)
}

type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	// stdin stays nil (/dev/null) so an interactive prompt reads EOF instead of blocking
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// ExecToolchain runs pdflatex and a PDF converter as subprocesses.
type ExecToolchain struct {
	cfg  Config
	exec Executor
}

// NewExecToolchain builds the subprocess toolchain. cfg should already have defaults applied.
func NewExecToolchain(cfg Config, executor Executor) *ExecToolchain {
	if executor == nil {
		executor = commandExecutor{}
	}
	return &ExecToolchain{cfg: cfg, exec: executor}
}

// Compile runs the compiler in non-interactive mode with all output in outDir.
func (t *ExecToolchain) Compile(ctx context.Context, sourcePath, outDir string) (CompileResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CompileTimeout)
	defer cancel()

	args := []string{"-interaction=nonstopmode"}
	if t.cfg.ShellEscape {
		args = append(args, "-shell-escape")
	}
	args = append(args, "-output-directory", outDir, sourcePath)

	res, err := t.exec.Run(ctx, outDir, t.cfg.Compiler, args...)
	if err != nil {
		return CompileResult{}, runError(t.cfg.Compiler, t.cfg.CompileTimeout, err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	out := CompileResult{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}

	if logData, err := os.ReadFile(filepath.Join(outDir, base+".log")); err == nil {
		out.Log = string(logData)
	}

	pdf := filepath.Join(outDir, base+".pdf")
	if info, err := os.Stat(pdf); err == nil && info.Size() > 0 {
		out.ArtifactPath = pdf
	}

	return out, nil
}

// Convert turns the PDF into destPath using the configured converter.
func (t *ExecToolchain) Convert(ctx context.Context, artifactPath, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConvertTimeout)
	defer cancel()

	var args []string
	switch t.cfg.Format {
	case FormatPNG:
		// pdftoppm appends the extension itself
		prefix := strings.TrimSuffix(destPath, filepath.Ext(destPath))
		args = []string{"-png", "-singlefile", "-r", strconv.Itoa(t.cfg.PNGResolution), artifactPath, prefix}
	default:
		args = []string{artifactPath, destPath}
	}

	res, err := t.exec.Run(ctx, filepath.Dir(destPath), t.cfg.Converter, args...)
	if err != nil {
		return runError(t.cfg.Converter, t.cfg.ConvertTimeout, err)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("%s exited with status %d", filepath.Base(t.cfg.Converter), res.ExitCode)
		}
		return &Failure{Kind: ConverterError, Detail: detail}
	}
	return nil
}

// runError classifies a failure to run a binary at all.
func runError(binary string, timeout time.Duration, err error) *Failure {
	name := filepath.Base(binary)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: SystemError, Detail: fmt.Sprintf("%s timed out after %s", name, timeout), Err: err}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return &Failure{Kind: SystemError, Detail: fmt.Sprintf("%s not found", name), Err: err}
	default:
		return &Failure{Kind: SystemError, Detail: fmt.Sprintf("run %s: %v", name, err), Err: err}
	}
}
