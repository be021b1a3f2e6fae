package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/promptslot/internal/editor"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/server"
)

// errIssues is returned by check when the template has issues. The issues
// are already printed, so main only sets the exit status.
var errIssues = errors.New("template has issues")

func newCheckCmd(c *cli) *cobra.Command {
	var (
		scope  node.VariableScope
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "check [FILE]",
		Short: "Report problems in a prompt template",
		Long: `Check reports placeholders of disabled kinds, placeholders that cannot be
decorated and, when a scope is given, workflow variables missing from it.
It exits with status 1 when any issue is found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			text := templateText(data)

			// Without scope flags every variable is accepted.
			opts := editor.Options{Value: text}
			for _, name := range []string{"node", "env", "conversation", "rag"} {
				if cmd.Flags().Changed(name) {
					opts.Scope = &scope
				}
			}
			ed, err := c.openEditorWith(opts)
			if err != nil {
				return err
			}
			defer ed.Close()

			issues := server.DisabledKinds(ed.Registry(), text)
			decorations, err := ed.Decorations()
			if err != nil {
				return fmt.Errorf("decorate: %w", err)
			}
			for _, d := range decorations {
				if issue, ok := server.IssueFor(d); ok {
					issues = append(issues, issue)
				}
			}

			if asJSON {
				if err := writeJSON(cmd, server.ValidateResponse{Valid: len(issues) == 0, Issues: issues}); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, is := range issues {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", is.Kind, is.Text, is.Message)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if len(issues) > 0 {
				c.logger.Debug("check failed", "issues", len(issues))
				return errIssues
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&scope.NodeIDs, "node", nil, "Workflow node ids in scope")
	f.StringSliceVar(&scope.Environment, "env", nil, "Environment variables in scope")
	f.StringSliceVar(&scope.Conversation, "conversation", nil, "Conversation variables in scope")
	f.StringSliceVar(&scope.RAG, "rag", nil, "RAG variables in scope")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
