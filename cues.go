package main

import (
	"context"

	"dictado/beep"
	"dictado/dictation"
)

// cueFor picks the sound for a transition between two published states.
func cueFor(prev, next dictation.Snapshot) (beep.Cue, bool) {
	newError := next.LastError != "" && next.LastError != prev.LastError
	switch {
	case !prev.Listening && next.Listening:
		return beep.Start, true
	case newError:
		return beep.Error, true
	case prev.Listening && !next.Listening:
		return beep.End, true
	}
	return 0, false
}

// playCues beeps on state changes read from updates until ctx is done or
// the subscription closes.
func playCues(ctx context.Context, updates <-chan dictation.Snapshot, prev dictation.Snapshot, play func(beep.Cue)) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if c, ok := cueFor(prev, s); ok {
				play(c)
			}
			prev = s
		}
	}
}
