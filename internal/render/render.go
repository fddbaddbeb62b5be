package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/studynotes/internal/note"
	"github.com/dgnsrekt/studynotes/utils"
)

const (
	defaultWidth  = 80
	minCellWidth  = 4
	cellSeparator = " │ "
	ellipsis      = "…"
)

// Options controls Render.
type Options struct {
	// Width wraps plain text and bounds tables. Zero means 80.
	Width int

	// Active highlights the target at this index of Targets(blocks). Use
	// -1 to highlight nothing.
	Active int

	// Marks prefixes speakable lines with a marker.
	Marks bool
}

// Output is a rendered note.
type Output struct {
	Text string

	// ActiveLine is the zero-based line of the highlighted target, or -1.
	ActiveLine int
}

// Blocks renders blocks without any highlight.
func Blocks(blocks []note.Block, width int) string {
	return Render(blocks, Options{Width: width, Active: -1}).Text
}

// Render draws blocks for the terminal: headings bold, dialogue lines with
// their translation indented underneath, tables aligned by display width so
// Chinese cells line up.
func Render(blocks []note.Block, opts Options) Output {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}

	activeBlock, activeRow := -1, -1
	if targets := Targets(blocks); opts.Active >= 0 && opts.Active < len(targets) {
		activeBlock, activeRow = targets[opts.Active].Block, targets[opts.Active].Row
	}

	var (
		sb         strings.Builder
		activeLine = -1
		lines      int
	)
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
			lines += 2
		}

		active := i == activeBlock
		if active && b.Kind != note.KindTable {
			activeLine = lines
		}

		var s string
		switch b.Kind {
		case note.KindHeading:
			s = renderHeading(b.Text, active, opts.Marks)
		case note.KindDialogue:
			s = renderDialogue(b.Dialogue, active, opts.Marks)
		case note.KindTable:
			var rowLine int
			s, rowLine = renderTable(b.Table, opts.Width, activeRowFor(active, activeRow))
			if active && rowLine >= 0 {
				activeLine = lines + rowLine
			}
		default:
			s = plainStyle.Render(wordwrap.String(b.Text, opts.Width))
		}

		sb.WriteString(s)
		lines += strings.Count(s, "\n")
	}

	return Output{Text: sb.String(), ActiveLine: activeLine}
}

func activeRowFor(active bool, row int) int {
	if !active {
		return -1
	}
	return row
}

func mark(on bool) string {
	if on {
		return speakableMark
	}
	return ""
}

func renderHeading(text string, active, marks bool) string {
	if active {
		return mark(marks) + activeStyle.Render(text)
	}
	return mark(marks) + headingStyle.Render(text)
}

func renderDialogue(d *note.Dialogue, active, marks bool) string {
	if d == nil {
		return ""
	}
	primary := primaryStyle.Render(d.Primary)
	if active {
		primary = activeStyle.Render(d.Primary)
	}
	return mark(marks) + primary + "\n" + secondaryStyle.Render(d.Secondary)
}

// renderTable lays out t within width and returns the line of activeRow
// within the result, or -1.
func renderTable(t *note.Table, width, activeRow int) (string, int) {
	if t == nil {
		return "", -1
	}

	cols := len(t.Headers)
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return "", -1
	}

	widths := make([]int, cols)
	measure := func(cells []string) {
		for c, cell := range cells {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		measure(row)
	}

	sepWidth := runewidth.StringWidth(cellSeparator) * (cols - 1)
	if total := sum(widths) + sepWidth; total > width {
		limit := max(minCellWidth, (width-sepWidth)/cols)
		for c := range widths {
			widths[c] = min(widths[c], limit)
		}
	}

	line := func(cells []string) string {
		out := make([]string, cols)
		for c := range out {
			var cell string
			if c < len(cells) {
				cell = cells[c]
			}
			cell = truncate.StringWithTail(cell, uint(widths[c]), ellipsis) //nolint:gosec
			out[c] = runewidth.FillRight(cell, widths[c])
		}
		return strings.TrimRight(strings.Join(out, cellSeparator), " ")
	}

	var lines []string
	if len(t.Headers) > 0 {
		lines = append(lines, tableHeaderStyle.Render(line(t.Headers)))
		rule := make([]string, cols)
		for c, w := range widths {
			rule[c] = strings.Repeat("─", w)
		}
		lines = append(lines, tableBorderStyle.Render(strings.Join(rule, "─┼─")))
	}

	activeLine := -1
	for r, row := range t.Rows {
		l := line(row)
		if r == activeRow {
			activeLine = len(lines)
			l = activeStyle.Render(l)
		}
		lines = append(lines, l)
	}
	return strings.Join(lines, "\n"), activeLine
}

func sum(xs []int) int {
	var n int
	for _, x := range xs {
		n += x
	}
	return n
}

// Markdown writes blocks back out as plain markdown: headings as "##",
// tables as pipe tables and dialogue as a bold line with its translation on
// the next line.
func Markdown(blocks []note.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case note.KindHeading:
			parts = append(parts, "## "+b.Text)
		case note.KindDialogue:
			if b.Dialogue != nil {
				parts = append(parts, fmt.Sprintf("**%s**  \n%s", b.Dialogue.Primary, b.Dialogue.Secondary))
			}
		case note.KindTable:
			if s := markdownTable(b.Table); s != "" {
				parts = append(parts, s)
			}
		default:
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func markdownTable(t *note.Table) string {
	if t == nil {
		return ""
	}
	cols := len(t.Headers)
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}

	pad := func(cells []string) string {
		out := make([]string, cols)
		copy(out, cells)
		return "| " + strings.Join(out, " | ") + " |"
	}

	lines := []string{pad(t.Headers), "|" + strings.Repeat(" --- |", cols)}
	for _, row := range t.Rows {
		lines = append(lines, pad(row))
	}
	return strings.Join(lines, "\n")
}

// Glamour renders blocks through glamour with the given style name or
// style file path.
func Glamour(blocks []note.Block, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(termenv.EnvColorProfile()),
		utils.GlamourStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}

	out, err := r.Render(Markdown(blocks))
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
