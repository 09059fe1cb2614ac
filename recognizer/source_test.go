package recognizer

import (
	"sync"

	"dictado/audio"
)

// stubSource is a finite audio.Context that delivers a few chunks of
// silence and then reports the audio as done.
type stubSource struct {
	chunks int
}

func (s *stubSource) Devices() ([]audio.DeviceInfo, error) {
	return []audio.DeviceInfo{{ID: "stub", Name: "stub"}}, nil
}

func (s *stubSource) NewCapture(_ *audio.DeviceInfo, _ audio.CaptureConfig) (audio.CaptureDevice, error) {
	return &stubCapture{chunks: s.chunks, done: make(chan struct{})}, nil
}

func (s *stubSource) Close() {}

type stubCapture struct {
	chunks int
	done   chan struct{}

	mu       sync.Mutex
	cb       audio.DataCallback
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (c *stubCapture) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.done)
		chunk := make([]byte, 640)
		for i := 0; i < c.chunks; i++ {
			c.mu.Lock()
			cb := c.cb
			c.mu.Unlock()
			if cb != nil {
				cb(chunk, uint32(len(chunk)/audio.BytesPerFrame))
			}
		}
	}()
	return nil
}

func (c *stubCapture) Stop() { c.wg.Wait() }

func (c *stubCapture) Close() {}

func (c *stubCapture) DeviceName() string { return "stub" }

func (c *stubCapture) AudioDone() <-chan struct{} { return c.done }

func (c *stubCapture) SetCallback(cb audio.DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *stubCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}
