package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/studynotes/internal/voice"
)

// voiceSource adapts a voice list for fuzzy matching on name and language.
type voiceSource []voice.Voice

func (v voiceSource) String(i int) string {
	return v[i].Name + " " + v[i].Lang
}

func (v voiceSource) Len() int {
	return len(v)
}

// pickedVoiceMsg is sent when the user chooses a voice.
type pickedVoiceMsg struct {
	index int
}

// closePickerMsg is sent when the picker is dismissed.
type closePickerMsg struct{}

// pickerModel lets the user filter and choose a voice.
type pickerModel struct {
	input   textinput.Model
	voices  []voice.Voice
	current int

	// matches are indexes into voices, in display order.
	matches []int
	cursor  int
}

func newPickerModel() pickerModel {
	ti := textinput.New()
	ti.Prompt = "Voz: "
	ti.Placeholder = "filter voices"
	ti.CharLimit = 64
	return pickerModel{input: ti}
}

// open resets the picker for voices with current marked as selected.
func (m *pickerModel) open(voices []voice.Voice, current int) tea.Cmd {
	m.voices = voices
	m.current = current
	m.input.Reset()
	m.filter()
	m.cursor = 0
	for i, idx := range m.matches {
		if idx == current {
			m.cursor = i
		}
	}
	return m.input.Focus()
}

func (m *pickerModel) filter() {
	m.matches = nil
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		for i := range m.voices {
			m.matches = append(m.matches, i)
		}
	} else {
		for _, match := range fuzzy.FindFrom(q, voiceSource(m.voices)) {
			m.matches = append(m.matches, match.Index)
		}
	}
	if m.cursor >= len(m.matches) {
		m.cursor = max(len(m.matches)-1, 0)
	}
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc", "ctrl+c":
			m.input.Blur()
			return m, func() tea.Msg { return closePickerMsg{} }
		case "enter":
			m.input.Blur()
			if len(m.matches) == 0 {
				return m, func() tea.Msg { return closePickerMsg{} }
			}
			idx := m.matches[m.cursor]
			return m, func() tea.Msg { return pickedVoiceMsg{index: idx} }
		case "up", "ctrl+p", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n", "ctrl+j":
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.filter()
	}
	return m, cmd
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle("Choose a voice") + "\n\n")
	b.WriteString(m.input.View() + "\n\n")

	if len(m.voices) == 0 {
		b.WriteString(pickerDimStyle("No Spanish voices installed."))
		return indent(b.String(), 2)
	}
	if len(m.matches) == 0 {
		b.WriteString(pickerDimStyle("Nothing matches."))
		return indent(b.String(), 2)
	}

	for i, idx := range m.matches {
		v := m.voices[idx]
		line := fmt.Sprintf("%s  %s", v.Name, pickerDimStyle(v.Lang))
		if idx == m.current {
			line += pickerDimStyle(" (selected)")
		}
		if i == m.cursor {
			b.WriteString(pickerCursorStyle("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		if i < len(m.matches)-1 {
			b.WriteString("\n")
		}
	}
	return indent(b.String(), 2)
}
