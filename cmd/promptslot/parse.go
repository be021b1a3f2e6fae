package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/promptslot/internal/editor"
)

type parseOutput struct {
	Text         string                   `json:"text"`
	Placeholders []editor.PlaceholderInfo `json:"placeholders"`
	Document     json.RawMessage          `json:"document"`
}

func newParseCmd(c *cli) *cobra.Command {
	var documentOnly bool
	cmd := &cobra.Command{
		Use:   "parse [FILE]",
		Short: "Parse a prompt template into a placeholder document",
		Long: `Parse reads a prompt template from FILE or stdin and prints the placeholders
it contains together with the JSON document.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			ed, err := c.openEditor(templateText(data))
			if err != nil {
				return err
			}
			defer ed.Close()

			doc, err := ed.Export()
			if err != nil {
				return fmt.Errorf("export document: %w", err)
			}
			c.logger.Debug("parsed template", "placeholders", len(ed.Placeholders()), "version", ed.Version())

			if documentOnly {
				return writeJSON(cmd, json.RawMessage(doc))
			}
			return writeJSON(cmd, parseOutput{
				Text:         ed.Text(),
				Placeholders: ed.Placeholders(),
				Document:     doc,
			})
		},
	}
	cmd.Flags().BoolVar(&documentOnly, "document", false, "Print only the JSON document")
	return cmd
}

// templateText drops the final newline files usually end with.
func templateText(data []byte) string {
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r")
}

// openEditor creates an editor for text with the configured kinds.
func (c *cli) openEditor(text string) (*editor.Editor, error) {
	return c.openEditorWith(editor.Options{Value: text})
}

func (c *cli) openEditorWith(opts editor.Options) (*editor.Editor, error) {
	opts.InstanceID = c.cfg.InstanceID
	opts.Kinds = c.cfg.EnabledKinds()
	opts.ReadOnly = c.cfg.ReadOnly
	opts.BlurEscapeDelay = c.cfg.BlurEscapeDelay
	opts.Logger = c.logger
	return editor.New(opts)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
