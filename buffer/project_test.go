package buffer

import "testing"

func TestProjectSplicesPartial(t *testing.T) {
	s := State{Text: "ab", Selection: Cursor(1), Partial: "X"}
	d := s.Project(true)

	if got, want := d.Text, "aXb"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
	if got, want := d.Selection, Cursor(2); got != want {
		t.Fatalf("selection=%v, want %v", got, want)
	}
	if got, want := d.Partial, (Range{Start: 1, End: 2}); got != want {
		t.Fatalf("partial span=%v, want %v", got, want)
	}
	if got, want := s.Text, "ab"; got != want {
		t.Fatalf("committed text=%q, want %q", got, want)
	}
}

func TestProjectUsesSelectionStart(t *testing.T) {
	s := State{Text: "hola mundo", Selection: Range{Start: 5, End: 10}, Partial: "qué"}
	d := s.Project(true)
	if got, want := d.Text, "hola quémundo"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
	if got, want := d.Selection, Cursor(8); got != want {
		t.Fatalf("selection=%v, want %v", got, want)
	}
}

func TestProjectPassthrough(t *testing.T) {
	for _, tt := range []struct {
		name      string
		s         State
		listening bool
	}{
		{"not listening", State{Text: "ab", Selection: Range{Start: 0, End: 1}, Partial: "X"}, false},
		{"empty partial", State{Text: "ab", Selection: Range{Start: 0, End: 1}}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.s.Project(tt.listening)
			if d.Text != tt.s.Text || d.Selection != tt.s.Selection {
				t.Errorf("got %+v, want text %q selection %v", d, tt.s.Text, tt.s.Selection)
			}
			if !d.Partial.Collapsed() {
				t.Errorf("partial span=%v, want collapsed", d.Partial)
			}
		})
	}
}
