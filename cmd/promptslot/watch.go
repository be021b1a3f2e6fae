package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/promptslot/internal/config"
	"github.com/dshills/promptslot/internal/logging"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Validate the configuration file whenever it changes",
		Long: `Watch reloads the file given by --config after every change and reports
whether it is still valid. It runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, cmd.OutOrStdout())
		},
	}
}

// watch reports every reload of the configuration file to out until ctx is
// cancelled.
func (c *cli) watch(ctx context.Context, out io.Writer) error {
	if c.configPath == "" {
		return errors.New("watch: --config is required")
	}
	w, err := config.NewWatcher(c.configPath, func(cfg *config.Config, err error) {
		if err != nil {
			c.logger.Warn("config reload failed", "error", err)
			fmt.Fprintf(out, "invalid: %v\n", err)
			return
		}
		if c.logLevel == "" {
			c.logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
		}
		kinds := "all kinds"
		if k := cfg.EnabledKinds(); k != nil {
			kinds = fmt.Sprintf("%d kinds", len(k))
		}
		fmt.Fprintf(out, "ok: %s enabled, broadcast %s\n", kinds, cfg.Broadcast.Driver)
	}, config.WithWatchLogger(c.logger))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	c.logger.Info("watching config", "path", w.Path())

	<-ctx.Done()
	return w.Close()
}
