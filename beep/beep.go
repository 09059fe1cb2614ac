// Package beep plays short audible cues for dictation state changes.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

const sampleRate = 44100

var disabled atomic.Bool

// Disable silences every later Play call.
func Disable() { disabled.Store(true) }

// Play sounds c without blocking the caller.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(samples(c))
}

func samples(c Cue) []int16 {
	switch c {
	case Start:
		return tone(1200, 0.12, 0.5, 60)
	case End:
		return tone(900, 0.15, 0.5, 40)
	default:
		return doubleTone(350, 0.08, 0.05, 0.6, 30)
	}
}

// tone is a mono sine at freq with an exponential decay envelope.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return out
}

func doubleTone(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tone(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, 2*len(b)+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}
