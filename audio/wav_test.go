package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, samples []int, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVContextReplaysPCM(t *testing.T) {
	samples := make([]int, 3000)
	for i := range samples {
		samples[i] = i - 1500
	}
	path := writeWAV(t, samples, SampleRate, Channels)

	ctx, err := NewWAVContext(path, false)
	if err != nil {
		t.Fatalf("NewWAVContext: %v", err)
	}
	capture, err := ctx.NewCapture(nil, DefaultCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []byte
	capture.SetCallback(func(data []byte, frameCount uint32) {
		if int(frameCount) != len(data)/BytesPerFrame {
			t.Errorf("frameCount=%d for %d bytes", frameCount, len(data))
		}
		mu.Lock()
		got = append(got, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-capture.(Finite).AudioDone():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for AudioDone")
	}
	capture.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(samples)*2 {
		t.Fatalf("got %d bytes, want %d", len(got), len(samples)*2)
	}
	for i, want := range samples {
		if v := int(int16(binary.LittleEndian.Uint16(got[i*2:]))); v != want {
			t.Fatalf("sample %d = %d, want %d", i, v, want)
		}
	}
}

func TestWAVContextRejectsWrongRate(t *testing.T) {
	path := writeWAV(t, make([]int, 100), 44100, 1)
	if _, err := NewWAVContext(path, false); err == nil {
		t.Fatal("expected error for 44.1 kHz input")
	}
}

func TestWAVCaptureStopBeforeEnd(t *testing.T) {
	path := writeWAV(t, make([]int, SampleRate*5), SampleRate, Channels)
	ctx, err := NewWAVContext(path, true)
	if err != nil {
		t.Fatal(err)
	}
	capture, _ := ctx.NewCapture(nil, DefaultCaptureConfig())
	capture.SetCallback(func([]byte, uint32) {})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		capture.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	capture.Stop() // idempotent
}

type stubContext struct{ devices []DeviceInfo }

func (s stubContext) Devices() ([]DeviceInfo, error) { return s.devices, nil }
func (s stubContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, nil
}
func (s stubContext) Close() {}

func TestFindDevice(t *testing.T) {
	ctx := stubContext{devices: []DeviceInfo{{ID: "01", Name: "USB Mic"}, {ID: "02", Name: "Built-in"}}}

	dev, err := FindDevice(ctx, "Built-in")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.ID != "02" {
		t.Fatalf("got %+v, want Built-in", dev)
	}

	if dev, err := FindDevice(ctx, ""); err != nil || dev != nil {
		t.Fatalf("empty name: got %+v, %v; want nil, nil", dev, err)
	}

	if _, err := FindDevice(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}
