package recognizer

import "time"

const (
	tickInterval   = 100 * time.Millisecond
	speechMinRatio = 0.10
)

// silenceMonitor tracks per-tick speech over a sliding window and fires once
// the full window has elapsed with too little speech in it.
type silenceMonitor struct {
	windowSz    int
	window      []bool
	ticks       int
	speechCount int
}

func newSilenceMonitor(timeout time.Duration) *silenceMonitor {
	windowSz := int(timeout / tickInterval)
	if windowSz < 1 {
		windowSz = 1
	}
	return &silenceMonitor{windowSz: windowSz, window: make([]bool, windowSz)}
}

func (m *silenceMonitor) Tick(hasSpeech bool) bool {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	if m.ticks < m.windowSz {
		return false
	}
	return float64(m.speechCount)/float64(m.windowSz) < speechMinRatio
}

// watchSilence ticks the monitor from vp until done is closed or the
// timeout fires, in which case onTimeout is called.
func watchSilence(done <-chan struct{}, vp *vadProcessor, timeout time.Duration, onTimeout func()) {
	mon := newSilenceMonitor(timeout)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if mon.Tick(vp.HasSpeechTick()) {
				onTimeout()
				return
			}
		}
	}
}
