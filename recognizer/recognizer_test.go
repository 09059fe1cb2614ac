package recognizer

import (
	"errors"
	"testing"
)

func TestParseHypothesis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind EventKind
		text string
	}{
		{"partial", `{"partial": "hola mun"}`, EventPartial, "hola mun"},
		{"result", `{"text": "hola mundo"}`, EventResult, "hola mundo"},
		{"empty partial", `{"partial": ""}`, EventPartial, ""},
		{"empty result", `{"text": ""}`, EventResult, ""},
		{"text wins", `{"partial": "ho", "text": "hola"}`, EventResult, "hola"},
		{"extra fields", `{"text": "hola", "result": [{"conf": 1}]}`, EventResult, "hola"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseHypothesis([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseHypothesis(%s): %v", tt.in, err)
			}
			if ev.Kind != tt.kind || ev.Text != tt.text {
				t.Errorf("got %s %q, want %s %q", ev.Kind, ev.Text, tt.kind, tt.text)
			}
		})
	}
}

func TestParseHypothesisErrors(t *testing.T) {
	if _, err := ParseHypothesis([]byte(`{}`)); !errors.Is(err, ErrNoHypothesis) {
		t.Errorf("empty object: err = %v, want ErrNoHypothesis", err)
	}
	if _, err := ParseHypothesis([]byte(`{"text": `)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestEventKindString(t *testing.T) {
	want := map[EventKind]string{
		EventPartial:     "partial",
		EventResult:      "result",
		EventFinalResult: "final_result",
		EventError:       "error",
		EventTimeout:     "timeout",
		EventKind(42):    "event(42)",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("%d.String() = %q, want %q", int(k), k.String(), s)
		}
	}
}
