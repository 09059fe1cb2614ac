package buffer

import "unicode/utf8"

// Display is what the screen renders: a text, a cursor/selection within it
// and, when a partial hypothesis is spliced in, the span it occupies.
type Display struct {
	Text      string
	Selection Range
	Partial   Range // empty unless a hypothesis is shown
}

// Project computes the displayed value. While listening with a non-empty
// partial hypothesis, the hypothesis is spliced in at the selection start
// and the cursor is placed right after it. The state is not modified.
func (s State) Project(listening bool) Display {
	s = s.Clamp()
	if !listening || s.Partial == "" {
		return Display{Text: s.Text, Selection: s.Selection, Partial: Cursor(s.Selection.Start)}
	}

	rs := []rune(s.Text)
	c := s.Selection.Start
	end := c + utf8.RuneCountInString(s.Partial)
	return Display{
		Text:      string(rs[:c]) + s.Partial + string(rs[c:]),
		Selection: Cursor(end),
		Partial:   Range{Start: c, End: end},
	}
}
