// Package cli wires the texrender command tree.
package cli

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"texrender/internal/config"
	"texrender/internal/pipeline"
	"texrender/pkg/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger

	// pipelineOpts are appended when a command builds a pipeline.
	pipelineOpts []pipeline.Option
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *zap.Logger {
	c.loggerOnce.Do(func() {
		if c.logger != nil {
			return
		}
		opts := logging.Options{}
		if c.verbose != nil && *c.verbose {
			opts.Level = "debug"
		}
		logger, err := logging.NewLogger(opts)
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
			logger = zap.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// NewRootCommand builds the texrender CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *commandContext) {
	var configFlag string
	var verbose bool

	ctx := newCommandContext(&configFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:           "texrender",
		Short:         "Render LaTeX fragments to inline images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd, ctx
}
