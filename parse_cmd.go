package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/studynotes/internal/note"
	"github.com/dgnsrekt/studynotes/internal/render"
)

var (
	parseJSON bool

	parseCmd = &cobra.Command{
		Use:     "parse [FILE|-]",
		Short:   "Print the blocks a note parses into",
		Long:    paragraph(fmt.Sprintf("\n%s a note into headings, tables, dialogue and plain lines and print the result.", keyword("Parse"))),
		Example: paragraph("studynotes parse leccion-3.md\nstudynotes parse --json leccion-3.md | jq '.[].kind'"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks, _, err := readNote(args)
			if err != nil {
				return err
			}
			if parseJSON {
				return writeJSON(cmd.OutOrStdout(), blocks)
			}
			return writeBlocks(cmd.OutOrStdout(), blocks, int(width)) //nolint:gosec
		},
	}

	renderCmd = &cobra.Command{
		Use:     "render [FILE|-]",
		Short:   "Render a note as styled markdown",
		Long:    paragraph(fmt.Sprintf("\n%s a note with glamour. Use --style to pick a theme.", keyword("Render"))),
		Example: paragraph("studynotes render leccion-3.md\nstudynotes render --style dark leccion-3.md"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks, _, err := readNote(args)
			if err != nil {
				return err
			}
			out, err := render.Glamour(blocks, style, int(width)) //nolint:gosec
			if err != nil {
				return err //nolint:wrapcheck
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
				return fmt.Errorf("unable to write to writer: %w", err)
			}
			return nil
		},
	}
)

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print blocks as JSON")
}

func writeJSON(w io.Writer, blocks []note.Block) error {
	if blocks == nil {
		blocks = []note.Block{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(blocks); err != nil {
		return fmt.Errorf("unable to encode blocks: %w", err)
	}
	return nil
}

func writeBlocks(w io.Writer, blocks []note.Block, width int) error {
	out := render.Blocks(blocks, width)
	if out != "" {
		out += "\n\n"
	}
	out += faint(summary(note.Stats(blocks))) + "\n"
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

func summary(s note.Summary) string {
	parts := []string{
		plural(s.Headings, "heading"),
		plural(s.Dialogues, "dialogue"),
		plural(s.Tables, "table"),
		plural(s.Plain, "plain line"),
	}
	return fmt.Sprintf("%s: %s", plural(s.Total(), "block"), strings.Join(parts, ", "))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

