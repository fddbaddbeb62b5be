package note

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a parsed block.
type Kind int

const (
	// KindPlain is any line not matched by another rule.
	KindPlain Kind = iota

	// KindHeading is a "##" heading with numbering markers stripped.
	KindHeading

	// KindTable is a run of "|"-prefixed lines.
	KindTable

	// KindDialogue is a source line paired with its translation.
	KindDialogue
)

var kindNames = map[Kind]string{
	KindPlain:    "plain",
	KindHeading:  "heading",
	KindTable:    "table",
	KindDialogue: "dialogue",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", string(b))
}

// Table is the payload of a table block. Rows are not validated against the
// header width.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Dialogue is the payload of a dialogue block.
type Dialogue struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Block is one parsed unit of note content. Exactly one payload field is set,
// selected by Kind: Text for headings and plain lines, Table for tables and
// Dialogue for dialogue pairs.
type Block struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Table    *Table    `json:"table,omitempty"`
	Dialogue *Dialogue `json:"dialogue,omitempty"`

	// Source holds the raw line(s) the block was built from.
	Source string `json:"source"`
}

// Speakable returns the texts a renderer should attach a "speak" action to:
// the heading text, the dialogue's primary line, or the first cell of every
// table row. Plain blocks have nothing to speak.
func (b Block) Speakable() []string {
	switch b.Kind {
	case KindHeading:
		return []string{b.Text}
	case KindDialogue:
		if b.Dialogue == nil {
			return nil
		}
		return []string{b.Dialogue.Primary}
	case KindTable:
		if b.Table == nil {
			return nil
		}
		var out []string
		for _, row := range b.Table.Rows {
			if len(row) > 0 && row[0] != "" {
				out = append(out, row[0])
			}
		}
		return out
	default:
		return nil
	}
}

func (b Block) String() string {
	switch b.Kind {
	case KindTable:
		if b.Table == nil {
			return "table[]"
		}
		return fmt.Sprintf("table[%s; %d rows]", strings.Join(b.Table.Headers, ","), len(b.Table.Rows))
	case KindDialogue:
		if b.Dialogue == nil {
			return "dialogue[]"
		}
		return fmt.Sprintf("dialogue[%s / %s]", b.Dialogue.Primary, b.Dialogue.Secondary)
	default:
		return fmt.Sprintf("%s[%s]", b.Kind, b.Text)
	}
}

// Summary counts blocks per kind.
type Summary struct {
	Headings  int
	Tables    int
	Dialogues int
	Plain     int
}

// Total returns the number of blocks counted.
func (s Summary) Total() int {
	return s.Headings + s.Tables + s.Dialogues + s.Plain
}

// Stats counts the blocks of each kind.
func Stats(blocks []Block) Summary {
	var s Summary
	for _, b := range blocks {
		switch b.Kind {
		case KindHeading:
			s.Headings++
		case KindTable:
			s.Tables++
		case KindDialogue:
			s.Dialogues++
		default:
			s.Plain++
		}
	}
	return s
}
