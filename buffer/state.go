package buffer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// State is the committed text with its selection and the latest partial
// hypothesis. Every method returns a new State; the receiver is never
// modified.
type State struct {
	Text      string
	Selection Range
	Partial   string
}

// Len returns the committed text length in runes.
func (s State) Len() int {
	return utf8.RuneCountInString(s.Text)
}

// Clamp re-clamps the selection into the committed text bounds.
func (s State) Clamp() State {
	s.Selection = ClampRange(s.Selection, s.Len())
	return s
}

// SelectedText returns the committed text covered by the selection.
func (s State) SelectedText() string {
	s = s.Clamp()
	if s.Selection.Collapsed() {
		return ""
	}
	rs := []rune(s.Text)
	return string(rs[s.Selection.Start:s.Selection.End])
}

// MergeFinal inserts a confirmed fragment followed by a single space at the
// selection start, replacing the selection. When the rune before the
// insertion point is a space and the fragment starts with one, one leading
// space is dropped. The partial hypothesis is cleared.
func (s State) MergeFinal(text string) State {
	s = s.Clamp()
	s.Partial = ""
	if text == "" {
		return s
	}

	rs := []rune(s.Text)
	start, end := s.Selection.Start, s.Selection.End

	insert := text + " "
	if start > 0 && rs[start-1] == ' ' && strings.HasPrefix(insert, " ") {
		insert = insert[1:]
	}

	var sb strings.Builder
	sb.Grow(len(s.Text) + len(insert))
	sb.WriteString(string(rs[:start]))
	sb.WriteString(insert)
	sb.WriteString(string(rs[end:]))

	s.Text = sb.String()
	s.Selection = Cursor(start + utf8.RuneCountInString(insert))
	return s
}

// MergePartial replaces the partial hypothesis. The committed text is left
// untouched.
func (s State) MergePartial(text string) State {
	s.Partial = text
	return s
}

// DeleteLastChar deletes the selection, or the rune before the cursor.
func (s State) DeleteLastChar() State {
	if s.Text == "" {
		return s
	}
	s = s.Clamp()
	rs := []rune(s.Text)
	sel := s.Selection

	switch {
	case !sel.Collapsed():
		s.Text = string(rs[:sel.Start]) + string(rs[sel.End:])
		s.Selection = Cursor(sel.Start)
	case sel.Start > 0:
		s.Text = string(rs[:sel.Start-1]) + string(rs[sel.Start:])
		s.Selection = Cursor(sel.Start - 1)
	}
	return s
}

// DeleteLastWord deletes the word before the cursor, keeping the space that
// precedes it. Whitespace directly before the cursor is skipped first. A
// non-empty selection is deleted instead.
func (s State) DeleteLastWord() State {
	if s.Text == "" {
		return s
	}
	s = s.Clamp()
	if !s.Selection.Collapsed() {
		return s.DeleteLastChar()
	}

	rs := []rune(s.Text)
	cursor := s.Selection.Start
	before := string(rs[:cursor])
	after := string(rs[cursor:])

	trimmed := strings.TrimRightFunc(before, unicode.IsSpace)
	if trimmed == "" {
		s.Text = after
		s.Selection = Cursor(0)
		return s
	}

	newBefore := ""
	if i := strings.LastIndexByte(trimmed, ' '); i >= 0 {
		newBefore = trimmed[:i+1]
	}
	s.Text = newBefore + after
	s.Selection = Cursor(utf8.RuneCountInString(newBefore))
	return s
}

// Clear empties the text, the selection and the partial hypothesis.
func (s State) Clear() State {
	return State{}
}

// SetValue replaces the committed text and selection wholesale. The
// selection is normalized and clamped; no merge rules apply.
func (s State) SetValue(text string, sel Range) State {
	s.Text = text
	s.Selection = ClampRange(sel, utf8.RuneCountInString(text))
	return s
}

// InsertTyped inserts text typed by the user at the cursor, replacing the
// selection. Unlike MergeFinal no spacing rules apply.
func (s State) InsertTyped(text string) State {
	s = s.Clamp()
	rs := []rune(s.Text)
	start, end := s.Selection.Start, s.Selection.End
	next := string(rs[:start]) + text + string(rs[end:])
	return s.SetValue(next, Cursor(start+utf8.RuneCountInString(text)))
}

// MoveCursor moves the cursor by delta runes. With extend, a negative delta
// moves the selection start and a positive one moves the selection end.
// Without extend a non-empty selection collapses onto the edge in the
// direction of travel.
func (s State) MoveCursor(delta int, extend bool) State {
	s = s.Clamp()
	n := s.Len()
	sel := s.Selection

	if extend {
		if delta < 0 {
			sel.Start = clampInt(sel.Start+delta, 0, sel.End)
		} else {
			sel.End = clampInt(sel.End+delta, sel.Start, n)
		}
		s.Selection = sel
		return s
	}

	if !sel.Collapsed() {
		if delta < 0 {
			s.Selection = Cursor(sel.Start)
		} else {
			s.Selection = Cursor(sel.End)
		}
		return s
	}
	s.Selection = Cursor(clampInt(sel.Start+delta, 0, n))
	return s
}
