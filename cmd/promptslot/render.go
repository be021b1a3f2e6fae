package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "render [FILE]",
		Short: "Render a JSON document back to template text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			ed, err := c.openEditor("")
			if err != nil {
				return err
			}
			defer ed.Close()

			root, err := ed.Registry().UnmarshalDocument(data)
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), root.TextContent())
			return err
		},
	}
}
