// Package ui provides practice mode: a terminal view of a note where the
// Spanish parts can be spoken aloud.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/studynotes/internal/note"
	"github.com/dgnsrekt/studynotes/internal/render"
	"github.com/dgnsrekt/studynotes/internal/voice"
)

const (
	statusBarHeight = 1
	ellipsis        = "…"
)

// Speech is the voice selector as seen by practice mode.
type Speech interface {
	Speak(text string)
	Cancel()
	SetSelectedIndex(i int)
	State() voice.State
}

// StateListener returns a voice.Selector state listener that forwards
// snapshots to ch. Only the latest snapshot is kept when the UI falls
// behind, so ch should have a buffer of one.
func StateListener(ch chan voice.State) func(voice.State) {
	return func(st voice.State) {
		for {
			select {
			case ch <- st:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, blocks []note.Block, speech Speech, states <-chan voice.State) *tea.Program {
	log.Debug("Starting practice mode", "blocks", len(blocks), "path", cfg.Path)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if cfg.InputTTY {
		opts = append(opts, tea.WithInputTTY())
	}
	return tea.NewProgram(newModel(cfg, blocks, speech, states), opts...)
}

type (
	voiceStateMsg           voice.State
	statusMessageTimeoutMsg struct{}
	copiedMsg               struct{ text string }
	errMsg                  struct{ err error }
)

func (e errMsg) Error() string { return e.err.Error() }

// state is the top-level application state.
type state int

const (
	stateBrowse state = iota
	statePickVoice
)

func (s state) String() string {
	return map[state]string{
		stateBrowse:    "browsing note",
		statePickVoice: "picking voice",
	}[s]
}

type model struct {
	cfg    Config
	speech Speech
	states <-chan voice.State

	blocks  []note.Block
	targets []render.Target
	cursor  int

	voice    voice.State
	state    state
	showHelp bool

	viewport viewport.Model
	spinner  spinner.Model
	picker   pickerModel

	width  int
	height int
	ready  bool

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, blocks []note.Block, speech Speech, states <-chan voice.State) model {
	if cfg.StatusMessageTimeout <= 0 {
		cfg.StatusMessageTimeout = 3 * time.Second
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = spinnerStyle

	return model{
		cfg:      cfg,
		speech:   speech,
		states:   states,
		blocks:   blocks,
		targets:  render.Targets(blocks),
		voice:    speech.State(),
		viewport: viewport.New(0, 0),
		spinner:  sp,
		picker:   newPickerModel(),
	}
}

func (m model) Init() tea.Cmd {
	return waitForVoiceState(m.states)
}

func waitForVoiceState(ch <-chan voice.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return voiceStateMsg(st)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.setViewportHeight()
		m.ready = true
		m.refresh()
		return m, nil

	case voiceStateMsg:
		wasSpeaking := m.voice.Speaking
		m.voice = voice.State(msg)
		cmds = append(cmds, waitForVoiceState(m.states))
		if m.voice.Speaking && !wasSpeaking {
			cmds = append(cmds, m.spinner.Tick)
		}
		if m.state == statePickVoice {
			m.picker.voices = m.voice.Voices
			m.picker.current = m.voice.SelectedIndex
			m.picker.filter()
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.voice.Speaking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pickedVoiceMsg:
		m.state = stateBrowse
		m.speech.SetSelectedIndex(msg.index)
		m.voice = m.speech.State()
		name := fmt.Sprintf("voice %d", msg.index)
		if msg.index >= 0 && msg.index < len(m.voice.Voices) {
			name = m.voice.Voices[msg.index].Name
		}
		return m, m.showStatusMessage("Voice: "+name, false)

	case closePickerMsg:
		m.state = stateBrowse
		return m, nil

	case copiedMsg:
		return m, m.showStatusMessage("Copied “"+msg.text+"”", false)

	case errMsg:
		log.Error("Practice mode error", "err", msg.err)
		return m, m.showStatusMessage(msg.Error(), true)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil
	}

	if m.state == statePickVoice {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "ctrl+c":
			m.speech.Cancel()
			return m, tea.Quit

		case "j", "down", "tab":
			m.moveCursor(1)
			return m, nil

		case "k", "up", "shift+tab":
			m.moveCursor(-1)
			return m, nil

		case "g", "home":
			m.moveCursor(-len(m.targets))
			return m, nil

		case "G", "end":
			m.moveCursor(len(m.targets))
			return m, nil

		case "enter", " ", "space":
			if t, ok := m.target(); ok {
				log.Debug("Speaking target", "text", t.Text)
				m.speech.Speak(t.Text)
			}
			return m, nil

		case "s", "esc":
			m.speech.Cancel()
			return m, nil

		case "v":
			if !m.voice.Supported {
				return m, m.showStatusMessage("Speech is not supported here", true)
			}
			m.state = statePickVoice
			return m, m.picker.open(m.voice.Voices, m.voice.SelectedIndex)

		case "y":
			if t, ok := m.target(); ok {
				return m, copyCmd(t.Text)
			}
			return m, nil

		case "?":
			m.showHelp = !m.showHelp
			m.setViewportHeight()
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) setViewportHeight() {
	h := m.height - statusBarHeight
	if m.showHelp {
		h -= strings.Count(m.helpView(), "\n") + 1
	}
	m.viewport.Height = max(h, 0)
}

func (m model) target() (render.Target, bool) {
	if m.cursor < 0 || m.cursor >= len(m.targets) {
		return render.Target{}, false
	}
	return m.targets[m.cursor], true
}

func (m *model) moveCursor(delta int) {
	if len(m.targets) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.targets)-1)
	m.refresh()
}

// refresh re-renders the note and scrolls the active target into view.
func (m *model) refresh() {
	if !m.ready {
		return
	}

	width := m.width
	if m.cfg.MaxWidth > 0 {
		width = min(width, int(m.cfg.MaxWidth)) //nolint:gosec
	}
	active := -1
	if len(m.targets) > 0 {
		active = m.cursor
	}

	out := render.Render(m.blocks, render.Options{Width: width, Active: active, Marks: m.cfg.Marks})
	m.viewport.SetContent(out.Text)

	if line := out.ActiveLine; line >= 0 {
		switch {
		case line < m.viewport.YOffset:
			m.viewport.SetYOffset(line)
		case line >= m.viewport.YOffset+m.viewport.Height:
			m.viewport.SetYOffset(line - m.viewport.Height + 1)
		}
	}
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(m.cfg.StatusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return errMsg{fmt.Errorf("could not copy: %w", err)}
		}
		return copiedMsg{text: text}
	}
}

func (m model) View() string {
	if !m.ready {
		return ""
	}
	if m.state == statePickVoice {
		return "\n" + m.picker.View()
	}

	var b strings.Builder
	b.WriteString(m.viewport.View() + "\n")
	b.WriteString(m.statusBarView())
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m model) statusBarView() string {
	logo := logoView()

	pos := " –/– "
	if len(m.targets) > 0 {
		pos = fmt.Sprintf(" %d/%d ", m.cursor+1, len(m.targets))
	}
	pos = statusBarPosStyle(pos)
	help := statusBarHelpStyle(" ? Help ")

	style := statusBarNoteStyle
	note := m.voiceNote()
	switch {
	case m.statusMessage != "" && m.statusIsError:
		note, style = m.statusMessage, statusBarErrorStyle
	case m.statusMessage != "":
		note, style = m.statusMessage, statusBarMessageStyle
	}
	if name := m.noteName(); name != "" && m.statusMessage == "" {
		note = name + " · " + note
	}

	avail := max(m.width-ansi.PrintableRuneWidth(logo)-ansi.PrintableRuneWidth(pos)-ansi.PrintableRuneWidth(help), 0)
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := strings.Repeat(" ", max(avail-ansi.PrintableRuneWidth(note), 0))

	return logo + style(note+padding) + pos + help
}

func (m model) voiceNote() string {
	if !m.voice.Supported {
		return "speech unsupported"
	}
	var name string
	if i := m.voice.SelectedIndex; i >= 0 && i < len(m.voice.Voices) {
		name = m.voice.Voices[i].Name
	} else {
		name = "default voice"
	}
	if m.voice.Speaking {
		return m.spinner.View() + " " + name
	}
	return name
}

func (m model) noteName() string {
	if m.cfg.Path == "" {
		return ""
	}
	return filepath.Base(m.cfg.Path)
}

func (m model) helpView() string {
	s := "\n" +
		"k/↑      previous phrase      enter    speak phrase\n" +
		"j/↓      next phrase          s/esc    stop speaking\n" +
		"g/home   first phrase         v        choose voice\n" +
		"G/end    last phrase          y        copy phrase\n" +
		"?        close help           q        quit"
	return helpViewStyle(fill(indent(s, 2), m.width))
}
