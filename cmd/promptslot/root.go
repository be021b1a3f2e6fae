package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/promptslot/internal/config"
	"github.com/dshills/promptslot/internal/logging"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "promptslot",
		Short: "Structured placeholders for prompt templates",
		Long: `promptslot turns {{#context#}}-style placeholders in prompt templates into
typed nodes, renders documents back to text and serves the same operations
over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (TOML, YAML or JSON)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newParseCmd(c),
		newRenderCmd(c),
		newCheckCmd(c),
		newServeCmd(c),
		newWatchCmd(c),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger.
func (c *cli) load(logOut io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	lc := cfg.Logging()
	lc.Output = logOut
	c.cfg = cfg
	c.logger = logging.New(lc).WithComponent("cli")
	return nil
}

// readInput returns the contents of the file named by args, or stdin when
// args is empty or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
