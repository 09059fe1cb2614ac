package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dictado/buffer"
	"dictado/dictation"
)

// screenController is the part of the controller the screen drives.
type screenController interface {
	LoadModel()
	ToggleListening()
	DeleteLastChar()
	DeleteLastWord()
	ClearText()
	MoveCursor(delta int, extend bool)
	Type(text string)
	Copy() bool
}

type snapshotMsg dictation.Snapshot
type subscriptionClosedMsg struct{}

type keyMap struct {
	Dictate    key.Binding
	DelChar    key.Binding
	DelWord    key.Binding
	Clear      key.Binding
	Copy       key.Binding
	Left       key.Binding
	Right      key.Binding
	ShiftLeft  key.Binding
	ShiftRight key.Binding
	Home       key.Binding
	End        key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Dictate:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "dictate")),
		DelChar:    key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "delete char")),
		DelWord:    key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "delete word")),
		Clear:      key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
		Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy")),
		Left:       key.NewBinding(key.WithKeys("left"), key.WithHelp("←/→", "move")),
		Right:      key.NewBinding(key.WithKeys("right")),
		ShiftLeft:  key.NewBinding(key.WithKeys("shift+left"), key.WithHelp("shift+←/→", "select")),
		ShiftRight: key.NewBinding(key.WithKeys("shift+right")),
		Home:       key.NewBinding(key.WithKeys("home", "ctrl+a")),
		End:        key.NewBinding(key.WithKeys("end", "ctrl+e")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// gate enables bindings according to what the snapshot allows.
func (k *keyMap) gate(s dictation.Snapshot) {
	edit := s.CanEdit()
	k.Dictate.SetEnabled(s.CanDictate())
	k.DelChar.SetEnabled(edit)
	k.DelWord.SetEnabled(edit)
	k.Clear.SetEnabled(edit)
	k.Copy.SetEnabled(s.CanCopy())
	for _, b := range []*key.Binding{&k.Left, &k.Right, &k.ShiftLeft, &k.ShiftRight, &k.Home, &k.End} {
		b.SetEnabled(!s.Listening && s.Buffer.Text != "")
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dictate, k.DelChar, k.DelWord, k.Clear, k.Copy, k.Left, k.ShiftLeft, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	listeningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	partialStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	selectionStyle = lipgloss.NewStyle().Reverse(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	placeholder    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Press ctrl+r and start speaking")
	listenHint     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Listening...")
)

type tuiModel struct {
	ctl     screenController
	updates <-chan dictation.Snapshot
	snap    dictation.Snapshot
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int
	notice  string
}

func newTUIModel(ctl screenController, updates <-chan dictation.Snapshot, initial dictation.Snapshot) tuiModel {
	m := tuiModel{
		ctl:     ctl,
		updates: updates,
		snap:    initial,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.keys.gate(initial)
	return m
}

func newTUIProgram(ctl *dictation.Controller) (*tea.Program, func()) {
	updates, cancel := ctl.Subscribe()
	m := newTUIModel(ctl, updates, ctl.Snapshot())
	return tea.NewProgram(m, tea.WithAltScreen()), cancel
}

func waitForSnapshot(ch <-chan dictation.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

func (m tuiModel) Init() tea.Cmd {
	ctl := m.ctl
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.spinner.Tick,
		func() tea.Msg {
			ctl.LoadModel()
			return nil
		},
	)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case snapshotMsg:
		m.snap = dictation.Snapshot(msg)
		m.keys.gate(m.snap)
		return m, waitForSnapshot(m.updates)

	case subscriptionClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	n := m.snap.Buffer.Len()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Dictate):
		m.ctl.ToggleListening()
	case key.Matches(msg, m.keys.DelChar):
		m.ctl.DeleteLastChar()
	case key.Matches(msg, m.keys.DelWord):
		m.ctl.DeleteLastWord()
	case key.Matches(msg, m.keys.Clear):
		m.ctl.ClearText()
	case key.Matches(msg, m.keys.Copy):
		if m.ctl.Copy() {
			m.notice = "copied to clipboard"
		} else {
			m.notice = "copy failed"
		}
	case key.Matches(msg, m.keys.Left):
		m.ctl.MoveCursor(-1, false)
	case key.Matches(msg, m.keys.Right):
		m.ctl.MoveCursor(1, false)
	case key.Matches(msg, m.keys.ShiftLeft):
		m.ctl.MoveCursor(-1, true)
	case key.Matches(msg, m.keys.ShiftRight):
		m.ctl.MoveCursor(1, true)
	case key.Matches(msg, m.keys.Home):
		m.ctl.MoveCursor(-n, false)
	case key.Matches(msg, m.keys.End):
		m.ctl.MoveCursor(n, false)
	case msg.Type == tea.KeySpace:
		if !m.snap.Listening {
			m.ctl.Type(" ")
		}
	case msg.Type == tea.KeyRunes && !msg.Alt:
		if !m.snap.Listening {
			m.ctl.Type(string(msg.Runes))
		}
	}
	return m, nil
}

type segmentKind int

const (
	segPlain segmentKind = iota
	segPartial
	segSelected
	segCursor
)

type segment struct {
	text string
	kind segmentKind
}

// segments splits the displayed text into runs sharing one style. A
// collapsed cursor becomes its own one-rune segment (a space at the end).
func segments(d buffer.Display, showCursor bool) []segment {
	rs := []rune(d.Text)
	kindAt := func(i int) segmentKind {
		switch {
		case !d.Partial.Collapsed() && i >= d.Partial.Start && i < d.Partial.End:
			return segPartial
		case !d.Selection.Collapsed() && i >= d.Selection.Start && i < d.Selection.End:
			return segSelected
		case showCursor && d.Selection.Collapsed() && i == d.Selection.Start:
			return segCursor
		}
		return segPlain
	}

	var out []segment
	for i := 0; i < len(rs); i++ {
		k := kindAt(i)
		if k == segCursor || len(out) == 0 || out[len(out)-1].kind != k || out[len(out)-1].kind == segCursor {
			out = append(out, segment{text: string(rs[i]), kind: k})
			continue
		}
		out[len(out)-1].text += string(rs[i])
	}
	if showCursor && d.Selection.Collapsed() && d.Selection.Start >= len(rs) {
		out = append(out, segment{text: " ", kind: segCursor})
	}
	return out
}

func renderText(d buffer.Display, showCursor bool) string {
	var b strings.Builder
	for _, seg := range segments(d, showCursor) {
		switch seg.kind {
		case segPartial:
			b.WriteString(partialStyle.Render(seg.text))
		case segSelected, segCursor:
			b.WriteString(selectionStyle.Render(seg.text))
		default:
			b.WriteString(seg.text)
		}
	}
	return b.String()
}

func (m tuiModel) statusLine() string {
	s := m.snap
	parts := []string{titleStyle.Render("dictado"), statusStyle.Render(s.Engine + " · " + s.ModelID)}
	switch {
	case s.Listening:
		parts = append(parts, listeningStyle.Render("● listening"))
	case s.Model == dictation.ModelLoading:
		parts = append(parts, m.spinner.View()+statusStyle.Render(" loading model"))
	default:
		parts = append(parts, statusStyle.Render("model "+s.Model.String()))
	}
	return strings.Join(parts, "  ")
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	d := m.snap.Display()
	var text string
	switch {
	case d.Text != "":
		text = renderText(d, !m.snap.Listening)
	case m.snap.Listening:
		text = listenHint
	default:
		text = placeholder
	}
	if m.width > 4 {
		text = lipgloss.NewStyle().Width(m.width - 2).Render(text)
	}
	b.WriteString(text)
	b.WriteString("\n\n")

	if m.snap.LastError != "" {
		b.WriteString(errorStyle.Render(m.snap.LastError))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
