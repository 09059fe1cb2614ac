package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"dictado/clipboard"
	"dictado/dictation"
	"dictado/recognizer"
)

func newHeadlessController(t *testing.T, fake *recognizer.Fake, cb dictation.Clipboard, granted bool) *dictation.Controller {
	t.Helper()
	ctl := dictation.New(dictation.Options{
		Engine:     fake,
		ModelID:    "es",
		Permission: func() bool { return granted },
		Clipboard:  cb,
	})
	t.Cleanup(ctl.Close)
	return ctl
}

func runScript(t *testing.T, ctl *dictation.Controller, fake *recognizer.Fake, script string) []string {
	t.Helper()
	var out bytes.Buffer
	if err := runHeadless(ctl, fake, strings.NewReader(script), &out); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func TestHeadlessDictation(t *testing.T) {
	fake := recognizer.NewFake()
	mem := &clipboard.Memory{}
	ctl := newHeadlessController(t, fake, mem, true)

	got := runScript(t, ctl, fake, `
LOAD
START
PARTIAL hola
PRINT
RESULT hola
PRINT
FINAL mundo
PRINT
DEL_CHAR
SELECT 0 4
TYPE adiós
PRINT
COPY
CLEAR
PRINT
START
ERROR boom
PRINT
QUIT
PRINT
`)
	want := []string{
		"|0|0|hola|true|ready|",
		"hola |5|5||true|ready|",
		"hola mundo |11|11||false|ready|",
		"adiós mundo|5|5||false|ready|",
		"|0|0||false|ready|",
		"|0|0||false|ready|recognition error: boom",
	}
	if len(got) != len(want) {
		t.Fatalf("output = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if mem.Read() != "adiós mundo" {
		t.Errorf("clipboard = %q", mem.Read())
	}
}

func TestHeadlessTimeoutStops(t *testing.T) {
	fake := recognizer.NewFake()
	ctl := newHeadlessController(t, fake, nil, true)

	got := runScript(t, ctl, fake, "LOAD\nSTART\nPARTIAL algo\nTIMEOUT\nPRINT\n")
	if len(got) != 1 || got[0] != "|0|0||false|ready|" {
		t.Errorf("output = %q", got)
	}
	if s := fake.LastSession(); s == nil || !s.Stopped() {
		t.Error("session not stopped after timeout")
	}
}

func TestHeadlessErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		granted bool
		loadErr error
		want    string
	}{
		{"unknown command", "JUMP\n", true, nil, "ERR unknown command \"JUMP\""},
		{"event while idle", "LOAD\nPARTIAL x\n", true, nil, "ERR not listening"},
		{"bad select", "SELECT a\n", true, nil, "ERR SELECT wants two offsets"},
		{"bad sleep", "SLEEP soon\n", true, nil, "ERR bad SLEEP duration \"soon\""},
		{"copy empty", "COPY\n", true, nil, "ERR copy failed"},
		{"permission denied", "LOAD\nPRINT\n", false, nil, "|0|0||false|unloaded|microphone permission denied"},
		{"load failure", "LOAD\nPRINT\n", true, errors.New("no such model"), "|0|0||false|failed|model load failed: no such model"},
		{"start without model", "START\nPRINT\n", true, nil, "|0|0||false|unloaded|model not loaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := recognizer.NewFake()
			fake.LoadErr = tt.loadErr
			ctl := newHeadlessController(t, fake, &clipboard.Memory{}, tt.granted)
			got := runScript(t, ctl, fake, tt.script)
			if len(got) != 1 || !strings.HasPrefix(got[0], tt.want) {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadlessEventsNeedFakeEngine(t *testing.T) {
	fake := recognizer.NewFake()
	ctl := newHeadlessController(t, fake, nil, true)
	got := runScript(t, ctl, nil, "LOAD\nSTART\nRESULT hola\n")
	if len(got) != 1 || got[0] != "ERR event commands need the fake engine" {
		t.Errorf("output = %q", got)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, cmd, arg string
	}{
		{"PRINT", "PRINT", ""},
		{"partial hola mundo", "PARTIAL", "hola mundo"},
		{"RESULT  dos", "RESULT", " dos"},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.line)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("splitCommand(%q) = %q, %q; want %q, %q", tt.line, cmd, arg, tt.cmd, tt.arg)
		}
	}
}
