package render

import "github.com/dgnsrekt/studynotes/internal/note"

// Target is one piece of text that can be spoken.
type Target struct {
	// Block indexes the block the text came from.
	Block int
	// Row is the table row, or -1 outside tables.
	Row  int
	Text string
}

// Targets lists the speakable texts of blocks in display order: heading text,
// the Spanish line of a dialogue and the first cell of every table row.
func Targets(blocks []note.Block) []Target {
	var out []Target
	for i, b := range blocks {
		switch b.Kind {
		case note.KindHeading:
			if b.Text != "" {
				out = append(out, Target{Block: i, Row: -1, Text: b.Text})
			}
		case note.KindDialogue:
			if b.Dialogue != nil {
				out = append(out, Target{Block: i, Row: -1, Text: b.Dialogue.Primary})
			}
		case note.KindTable:
			if b.Table == nil {
				continue
			}
			for r, row := range b.Table.Rows {
				if cell := firstCell(row); cell != "" {
					out = append(out, Target{Block: i, Row: r, Text: cell})
				}
			}
		}
	}
	return out
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
