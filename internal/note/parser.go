package note

import (
	"strings"
	"unicode"
)

const (
	headingMarker   = "##"
	tableMarker     = "|"
	separatorMarker = "---"
)

// CJK Unified Ideographs as used by the note dialect. Extension blocks are
// not included.
const (
	cjkFirst = '\u4e00'
	cjkLast  = '\u9fa5'
)

// Parse splits note text into blocks. It is pure and total: every non-blank
// line ends up in exactly one block, in input order, and blank lines produce
// nothing.
func Parse(text string) []Block {
	s := &scanner{lines: strings.Split(text, "\n")}
	return s.scan()
}

// ContainsCJK reports whether s contains a rune in U+4E00–U+9FA5.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if r >= cjkFirst && r <= cjkLast {
			return true
		}
	}
	return false
}

// scanner walks the lines once, left to right, with a single line of
// lookahead for dialogue pairs and a variable run for tables.
type scanner struct {
	lines []string
	pos   int
	out   []Block
}

func (s *scanner) scan() []Block {
	for s.pos < len(s.lines) {
		raw := s.lines[s.pos]
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			s.pos++
		case strings.HasPrefix(line, headingMarker):
			s.heading(raw, line)
		case strings.HasPrefix(line, tableMarker):
			s.table()
		case s.pairsWithNext(line):
			s.dialogue()
		default:
			s.emit(Block{Kind: KindPlain, Text: line, Source: raw})
			s.pos++
		}
	}
	return s.out
}

func (s *scanner) emit(b Block) {
	s.out = append(s.out, b)
}

func (s *scanner) heading(raw, line string) {
	s.emit(Block{Kind: KindHeading, Text: cleanHeading(line), Source: raw})
	s.pos++
}

// cleanHeading removes "##" with a following enumeration token (①–⑩, digits
// and periods), then at most one more "##". Any other "#" is heading text.
func cleanHeading(line string) string {
	if rest, ok := strings.CutPrefix(line, headingMarker); ok {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if num := strings.TrimLeftFunc(rest, isEnumerationRune); len(num) < len(rest) {
			line = strings.TrimLeftFunc(num, unicode.IsSpace)
		}
	}
	if rest, ok := strings.CutPrefix(line, headingMarker); ok {
		line = rest
	}
	return strings.TrimSpace(line)
}

func isEnumerationRune(r rune) bool {
	return (r >= '①' && r <= '⑩') || (r >= '0' && r <= '9') || r == '.'
}

func (s *scanner) table() {
	start := s.pos
	t := &Table{Headers: splitHeader(strings.TrimSpace(s.lines[s.pos])), Rows: [][]string{}}
	s.pos++

	for s.pos < len(s.lines) {
		line := strings.TrimSpace(s.lines[s.pos])
		if !strings.HasPrefix(line, tableMarker) {
			break
		}
		s.pos++
		if strings.Contains(line, separatorMarker) {
			continue
		}
		t.Rows = append(t.Rows, splitRow(line))
	}

	s.emit(Block{
		Kind:   KindTable,
		Table:  t,
		Source: strings.Join(s.lines[start:s.pos], "\n"),
	})
}

// splitHeader keeps every non-empty trimmed cell.
func splitHeader(line string) []string {
	parts := strings.Split(line, tableMarker)
	headers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			headers = append(headers, p)
		}
	}
	return headers
}

// splitRow drops the first and last split positions regardless of content,
// so empty interior cells survive.
func splitRow(line string) []string {
	parts := strings.Split(line, tableMarker)
	if len(parts) <= 2 {
		return []string{}
	}
	cells := make([]string, 0, len(parts)-2)
	for _, p := range parts[1 : len(parts)-1] {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// pairsWithNext reports whether line is a source line whose translation
// follows on the next line.
func (s *scanner) pairsWithNext(line string) bool {
	if s.pos+1 >= len(s.lines) {
		return false
	}
	return !ContainsCJK(line) && ContainsCJK(s.lines[s.pos+1])
}

func (s *scanner) dialogue() {
	primary, secondary := s.lines[s.pos], s.lines[s.pos+1]
	s.emit(Block{
		Kind: KindDialogue,
		Dialogue: &Dialogue{
			Primary:   strings.TrimSpace(primary),
			Secondary: strings.TrimSpace(secondary),
		},
		Source: primary + "\n" + secondary,
	})
	s.pos += 2
}
