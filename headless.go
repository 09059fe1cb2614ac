package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dictado/buffer"
	"dictado/dictation"
	"dictado/log"
	"dictado/recognizer"
)

const (
	headlessEventWait = 2 * time.Second
	headlessLoadWait  = 30 * time.Second
)

var errQuit = errors.New("quit")

// headless drives a controller from a line-oriented command script. Event
// commands are pushed into the active session of the fake engine.
type headless struct {
	ctl     *dictation.Controller
	fake    *recognizer.Fake // nil unless the fake engine is active
	updates <-chan dictation.Snapshot
	out     io.Writer
}

func runHeadless(ctl *dictation.Controller, fake *recognizer.Fake, in io.Reader, out io.Writer) error {
	updates, cancel := ctl.Subscribe()
	defer cancel()
	h := &headless{ctl: ctl, fake: fake, updates: updates, out: out}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := h.exec(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			log.Warnf("headless: %s: %v", line, err)
			fmt.Fprintf(out, "ERR %v\n", err)
		}
	}
	return scanner.Err()
}

func splitCommand(line string) (string, string) {
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToUpper(cmd), arg
}

func (h *headless) exec(line string) error {
	cmd, arg := splitCommand(line)
	switch cmd {
	case "LOAD":
		h.drain()
		h.ctl.LoadModel()
		return h.waitFor(headlessLoadWait, func(s dictation.Snapshot) bool {
			return s.Model != dictation.ModelLoading
		})
	case "START":
		h.ctl.StartListening()
	case "STOP":
		h.ctl.StopListening()
	case "TOGGLE":
		h.ctl.ToggleListening()
	case "PARTIAL":
		return h.emit(recognizer.Event{Kind: recognizer.EventPartial, Text: arg}, false)
	case "RESULT":
		return h.emit(recognizer.Event{Kind: recognizer.EventResult, Text: arg}, false)
	case "FINAL":
		return h.emit(recognizer.Event{Kind: recognizer.EventFinalResult, Text: arg}, true)
	case "ERROR":
		return h.emit(recognizer.Event{Kind: recognizer.EventError, Text: arg}, true)
	case "TIMEOUT":
		return h.emit(recognizer.Event{Kind: recognizer.EventTimeout}, true)
	case "TYPE":
		h.ctl.Type(arg)
	case "SELECT":
		var a, b int
		if _, err := fmt.Sscanf(arg, "%d %d", &a, &b); err != nil {
			return fmt.Errorf("SELECT wants two offsets: %w", err)
		}
		h.ctl.SetValue(h.ctl.Snapshot().Buffer.Text, buffer.Range{Start: a, End: b})
	case "DEL_CHAR":
		h.ctl.DeleteLastChar()
	case "DEL_WORD":
		h.ctl.DeleteLastWord()
	case "CLEAR":
		h.ctl.ClearText()
	case "COPY":
		if !h.ctl.Copy() {
			return errors.New("copy failed")
		}
	case "PRINT":
		fmt.Fprintln(h.out, formatSnapshot(h.ctl.Snapshot()))
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad SLEEP duration %q", arg)
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	case "QUIT":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// emit pushes ev into the running session and waits for the controller to
// publish the resulting state.
func (h *headless) emit(ev recognizer.Event, last bool) error {
	if h.fake == nil {
		return errors.New("event commands need the fake engine")
	}
	sess := h.fake.LastSession()
	if sess == nil || !h.ctl.Snapshot().Listening {
		return errors.New("not listening")
	}
	h.drain()
	if last {
		sess.End(ev)
	} else if !sess.Emit(ev) {
		return errors.New("session is over")
	}
	return h.next(headlessEventWait, func(dictation.Snapshot) bool { return true })
}

func (h *headless) drain() {
	for {
		select {
		case <-h.updates:
		default:
			return
		}
	}
}

func (h *headless) waitFor(d time.Duration, ok func(dictation.Snapshot) bool) error {
	if ok(h.ctl.Snapshot()) {
		return nil
	}
	return h.next(d, ok)
}

// next waits for a published snapshot satisfying ok.
func (h *headless) next(d time.Duration, ok func(dictation.Snapshot) bool) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case s, open := <-h.updates:
			if !open {
				return errors.New("controller closed")
			}
			if ok(s) {
				return nil
			}
		case <-timer.C:
			return errors.New("timed out waiting for the controller")
		}
	}
}

func formatSnapshot(s dictation.Snapshot) string {
	return strings.Join([]string{
		s.Buffer.Text,
		strconv.Itoa(s.Buffer.Selection.Start),
		strconv.Itoa(s.Buffer.Selection.End),
		s.Buffer.Partial,
		strconv.FormatBool(s.Listening),
		s.Model.String(),
		s.LastError,
	}, "|")
}
