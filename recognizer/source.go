package recognizer

import (
	"fmt"
	"sync"

	"dictado/audio"
	"dictado/log"
)

const pumpQueue = 64

// pcmPump hands captured PCM from the audio callback to a writer goroutine.
// For microphones pushes never block and chunks are dropped when the writer
// falls behind. Finite sources block instead so no audio is lost.
type pcmPump struct {
	mu      sync.Mutex
	closed  bool
	ch      chan []byte
	dropped int

	block   bool
	quit    chan struct{}
	pending sync.WaitGroup
}

func newPCMPump(block bool) *pcmPump {
	return &pcmPump{ch: make(chan []byte, pumpQueue), block: block, quit: make(chan struct{})}
}

func (p *pcmPump) push(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if !p.block {
		select {
		case p.ch <- buf:
		default:
			p.dropped++
		}
		p.mu.Unlock()
		return
	}
	p.pending.Add(1)
	p.mu.Unlock()

	defer p.pending.Done()
	select {
	case p.ch <- buf:
	case <-p.quit:
	}
}

// close releases blocked pushes and closes ch. Chunks already queued stay
// readable.
func (p *pcmPump) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	p.pending.Wait()
	close(p.ch)
	if p.dropped > 0 {
		log.Warnf("audio pump dropped %d chunks", p.dropped)
	}
}

// capture wires an audio source to a pump and an optional VAD.
type capture struct {
	dev  audio.CaptureDevice
	pump *pcmPump
	vad  *vadProcessor

	stopOnce sync.Once
}

func openCapture(src audio.Context, deviceName string, silenceTimeout bool) (*capture, error) {
	info, err := audio.FindDevice(src, deviceName)
	if err != nil {
		return nil, err
	}
	dev, err := src.NewCapture(info, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	_, finite := dev.(audio.Finite)
	c := &capture{dev: dev, pump: newPCMPump(finite)}
	if silenceTimeout {
		vp, err := newVADProcessor()
		if err != nil {
			dev.Close()
			return nil, fmt.Errorf("vad: %w", err)
		}
		c.vad = vp
	}

	dev.SetCallback(func(data []byte, _ uint32) {
		if c.vad != nil {
			c.vad.Process(data)
		}
		c.pump.push(data)
	})
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return c, nil
}

// done is closed when a finite source ran out of audio; nil for microphones.
func (c *capture) done() <-chan struct{} {
	if f, ok := c.dev.(audio.Finite); ok {
		return f.AudioDone()
	}
	return nil
}

func (c *capture) stop() {
	c.stopOnce.Do(func() {
		// The pump goes first: a finite source may be blocked in push and
		// Stop waits for it.
		c.pump.close()
		c.dev.Stop()
		c.dev.ClearCallback()
		c.dev.Close()
	})
}
