package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dshills/promptslot/internal/config"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serve exposes parse, render, validate and event publishing as a JSON API.
Events are broadcast on the channel selected by broadcast.driver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (overrides server.addr)")
	return cmd
}

// serve runs the server on ln until ctx is cancelled.
func (c *cli) serve(ctx context.Context, ln net.Listener) error {
	ch, err := c.openChannel(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer ch.Close()

	sub, err := ch.Subscribe(event.WildcardMulti, func(_ context.Context, ev event.Event) {
		c.logger.Debug("event", "type", ev.Type, "instance", ev.InstanceID, "source", ev.Metadata.Source)
	})
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Cancel()

	reg := prometheus.NewRegistry()
	if c.cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	srv, err := server.New(server.Options{
		Kinds:        c.cfg.EnabledKinds(),
		Channel:      ch,
		Logger:       c.logger,
		Registerer:   reg,
		Gatherer:     reg,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	})
	if err != nil {
		_ = ln.Close()
		return err
	}
	return srv.Serve(ctx, ln)
}

// openChannel opens the configured broadcast channel.
func (c *cli) openChannel(ctx context.Context) (event.Channel, error) {
	opts := []event.Option{event.WithLogger(c.logger), event.WithSource("promptslot")}
	switch c.cfg.Broadcast.Driver {
	case config.DriverRedis:
		opts = append(opts, event.WithRedisChannel(c.cfg.Broadcast.Channel))
		ch, err := event.DialRedis(ctx, c.cfg.Broadcast.RedisAddr, opts...)
		if err != nil {
			return nil, fmt.Errorf("broadcast: %w", err)
		}
		c.logger.Info("broadcasting over redis", "addr", c.cfg.Broadcast.RedisAddr, "channel", ch.Name())
		return ch, nil
	default:
		return event.NewLocalChannel(opts...), nil
	}
}
