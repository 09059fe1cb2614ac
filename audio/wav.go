package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const wavChunkFrames = 1024

// WAVContext replays a PCM16 mono 16 kHz WAV file as if it were a
// microphone. With realtime the audio is paced at its natural rate.
type WAVContext struct {
	path     string
	pcm      []byte
	realtime bool
}

func NewWAVContext(path string, realtime bool) (*WAVContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate != SampleRate || buf.Format.NumChannels != Channels || d.BitDepth != BitsPerSample {
		return nil, fmt.Errorf("%s: unsupported WAV format (want %d Hz, %d channel, %d-bit)", path, SampleRate, Channels, BitsPerSample)
	}

	pcm := make([]byte, len(buf.Data)*BytesPerFrame)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return &WAVContext{path: path, pcm: pcm, realtime: realtime}, nil
}

func (w *WAVContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: w.path, Name: w.path}}, nil
}

func (w *WAVContext) Close() {}

func (w *WAVContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &WAVCapture{name: w.path, pcm: w.pcm, realtime: w.realtime, audioDone: make(chan struct{})}, nil
}

type WAVCapture struct {
	name      string
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (c *WAVCapture) AudioDone() <-chan struct{} { return c.audioDone }

func (c *WAVCapture) DeviceName() string { return c.name }

func (c *WAVCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *WAVCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *WAVCapture) callback() DataCallback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

func (c *WAVCapture) Start() error {
	c.stopCh = make(chan struct{})
	c.feedDone = make(chan struct{})

	chunkBytes := wavChunkFrames * BytesPerFrame
	interval := time.Duration(wavChunkFrames) * time.Second / time.Duration(SampleRate)

	go func() {
		defer close(c.feedDone)
		defer close(c.audioDone)
		for pos := 0; pos < len(c.pcm); {
			select {
			case <-c.stopCh:
				return
			default:
			}

			end := min(pos+chunkBytes, len(c.pcm))
			if cb := c.callback(); cb != nil {
				chunk := make([]byte, end-pos)
				copy(chunk, c.pcm[pos:end])
				cb(chunk, uint32(len(chunk)/BytesPerFrame))
			}
			pos = end

			if c.realtime {
				select {
				case <-c.stopCh:
					return
				case <-time.After(interval):
				}
			}
		}
	}()
	return nil
}

func (c *WAVCapture) Stop() {
	if c.stopCh == nil {
		return
	}
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	<-c.feedDone
}

func (c *WAVCapture) Close() {}
