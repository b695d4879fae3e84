package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"texrender/internal/pipeline"
	"texrender/pkg/logging"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var format string
	var raw bool

	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render one LaTeX fragment without the cache",
		Long: "Render reads a LaTeX fragment from a file or stdin and prints the image as a data URI,\n" +
			"or writes the decoded image to --out. The exit status is non-zero when the render\n" +
			"produced a diagnostic image instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			content, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(content) == "" {
				return errors.New("no LaTeX content provided")
			}

			pc := cfg.PipelineConfig()
			if format != "" {
				pc.Format = pipeline.Format(strings.ToLower(format))
				if !pc.Format.Valid() {
					return fmt.Errorf("unsupported format %q", format)
				}
				// a converter configured for the other format cannot be reused
				if string(pc.Format) != cfg.Render.Format {
					pc.Converter = ""
				}
			}

			pipe, err := pipeline.New(pc, ctx.pipelineOpts...)
			if err != nil {
				return err
			}

			logger := ctx.loggerValue()
			defer logger.Sync()
			runCtx := logging.WithLogger(cmd.Context(), logger)

			var out pipeline.Outcome
			if raw {
				out = pipe.Compile(runCtx, content)
			} else {
				out = pipe.Render(runCtx, content)
			}

			if err := writeOutcome(cmd.OutOrStdout(), outPath, out.Image); err != nil {
				return err
			}
			if out.Failure != nil {
				logger.Debug("render produced a diagnostic", zap.String("kind", out.Failure.Kind.String()))
				return out.Failure
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the decoded image to this path instead of printing a data URI")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: svg or png (default from config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Treat the input as a complete document")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func writeOutcome(stdout io.Writer, outPath, image string) error {
	if outPath == "" {
		_, err := fmt.Fprintln(stdout, image)
		return err
	}
	_, data, err := pipeline.DecodeDataURI(image)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
