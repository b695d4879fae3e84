package cli

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"texrender/internal/toolcheck"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the LaTeX toolchain is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pc := cfg.PipelineConfig()
			pc = pc.WithDefaults()

			statuses := toolcheck.Check(toolcheck.Requirements(pc.Compiler, pc.Converter))

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state, where := "ok", s.Path
				if !s.Available {
					state, where = "missing", s.Detail
				}
				if colorize {
					if s.Available {
						state = text.FgGreen.Sprint(state)
					} else {
						state = text.FgRed.Sprint(state)
					}
				}
				rows = append(rows, []string{s.Name, s.Command, s.Description, state, where})
			}

			fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "Purpose", "Status", "Path"}, rows))

			if !toolcheck.AllAvailable(statuses) {
				return errors.New("toolchain incomplete")
			}
			return nil
		},
	}
}
