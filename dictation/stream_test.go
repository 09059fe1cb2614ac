package dictation

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"dictado/audio"
	"dictado/recognizer"
)

// silentMic is a microphone that never delivers audio.
type silentMic struct{}

func (silentMic) Devices() ([]audio.DeviceInfo, error) {
	return []audio.DeviceInfo{{ID: "mic", Name: "mic"}}, nil
}

func (silentMic) NewCapture(_ *audio.DeviceInfo, _ audio.CaptureConfig) (audio.CaptureDevice, error) {
	return silentCapture{}, nil
}

func (silentMic) Close() {}

type silentCapture struct{}

func (silentCapture) Start() error                      { return nil }
func (silentCapture) Stop()                             {}
func (silentCapture) Close()                            {}
func (silentCapture) SetCallback(cb audio.DataCallback) {}
func (silentCapture) ClearCallback()                    {}
func (silentCapture) DeviceName() string                { return "mic" }

// stalledServer accepts TCP connections and never answers the websocket
// upgrade.
func stalledServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return "ws://" + ln.Addr().String()
}

func newStreamController(t *testing.T, url string, dialTimeout time.Duration) *Controller {
	t.Helper()
	engine := recognizer.NewStream(recognizer.StreamConfig{URL: url, APIKey: "k", DialTimeout: dialTimeout}, silentMic{})
	c := New(Options{Engine: engine, ModelID: "nova-3"})
	t.Cleanup(c.Close)
	loadReady(t, c)
	return c
}

func TestStreamHandshakeDoesNotBlockCommands(t *testing.T) {
	c := newStreamController(t, stalledServer(t), 1500*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.StartListening()
		c.ClearText()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("commands blocked while the handshake was pending")
	}
	if !c.Snapshot().Listening {
		t.Fatal("not listening while the handshake is pending")
	}

	s := waitFor(t, c, "handshake timeout", func(s Snapshot) bool { return !s.Listening && s.LastError != "" })
	if !strings.HasPrefix(s.LastError, "recognition error: dial ") {
		t.Errorf("LastError = %q", s.LastError)
	}
}

func TestCloseDuringStreamHandshake(t *testing.T) {
	c := newStreamController(t, stalledServer(t), time.Minute)
	c.StartListening()

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a pending handshake")
	}
}

func TestStopDuringStreamHandshake(t *testing.T) {
	c := newStreamController(t, stalledServer(t), time.Minute)
	c.StartListening()

	done := make(chan struct{})
	go func() {
		c.StopListening()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopListening blocked on a pending handshake")
	}
	if s := c.Snapshot(); s.Listening || s.LastError != "" {
		t.Errorf("snapshot after stop = %+v", s)
	}
}
