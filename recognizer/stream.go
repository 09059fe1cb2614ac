package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"dictado/audio"
	"dictado/log"
)

const (
	defaultStreamURL   = "wss://api.deepgram.com/v1/listen"
	defaultDialTimeout = 10 * time.Second
)

type StreamConfig struct {
	URL    string
	APIKey string
	Device string
	// DialTimeout bounds the websocket handshake. Zero means 10s.
	DialTimeout time.Duration
}

// Stream sends captured audio to a Deepgram-style live transcription
// websocket. Interim messages become partials, is_final messages results.
type Stream struct {
	cfg StreamConfig
	src audio.Context
}

func NewStream(cfg StreamConfig, src audio.Context) *Stream {
	if cfg.URL == "" {
		cfg.URL = defaultStreamURL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Stream{cfg: cfg, src: src}
}

func (s *Stream) Name() string { return "stream" }

func (s *Stream) Load(ctx context.Context, modelID string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.APIKey == "" {
		return nil, errors.New("stream API key not set (DICTADO_STREAM_API_KEY)")
	}
	if _, err := url.Parse(s.cfg.URL); err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}
	return &streamModel{id: modelID, cfg: s.cfg, src: s.src}, nil
}

type streamModel struct {
	id  string
	cfg StreamConfig
	src audio.Context

	mu     sync.Mutex
	closed bool
}

func (m *streamModel) ID() string { return m.id }

func (m *streamModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *streamModel) endpoint(cfg SessionConfig) (string, error) {
	endpoint, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", err
	}
	rate := cfg.SampleRate
	if rate == 0 {
		rate = audio.SampleRate
	}
	q := endpoint.Query()
	if m.id != "" {
		q.Set("model", m.id)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(rate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	q.Set("interim_results", "true")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (m *streamModel) Start(ctx context.Context, cfg SessionConfig) (Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.New("model is closed")
	}

	endpoint, err := m.endpoint(cfg)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+m.cfg.APIKey)

	capt, err := openCapture(m.src, m.cfg.Device, cfg.SilenceTimeout > 0)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &streamSession{
		id:      uuid.NewString(),
		pipe:    newEventPipe(sessionEventBuffer),
		ctx:     sctx,
		cancel:  cancel,
		capture: capt,
	}
	if done := capt.done(); done != nil {
		go func() {
			select {
			case <-done:
				capt.stop()
			case <-sctx.Done():
			}
		}()
	}
	// The handshake runs on the session so a slow server surfaces as an
	// error event instead of blocking the caller.
	s.pipe.spawn(func() {
		if err := s.connect(endpoint, headers, m.cfg.DialTimeout); err != nil {
			if s.ctx.Err() == nil {
				s.finish(Event{Kind: EventError, Err: err})
			}
			return
		}
		go s.sendAudio()
		s.readMessages()
	})
	if capt.vad != nil {
		s.pipe.spawn(func() {
			watchSilence(s.pipe.done, capt.vad, cfg.SilenceTimeout, func() {
				s.finish(Event{Kind: EventTimeout})
			})
		})
	}
	return s, nil
}

type streamResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseStreamMessage maps one server message to an event. ok is false for
// messages that carry no hypothesis (metadata, empty interims).
func parseStreamMessage(data []byte) (ev Event, ok bool, err error) {
	var resp streamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Event{}, false, fmt.Errorf("decode stream message: %w", err)
	}
	if resp.Type != "" && resp.Type != "Results" {
		return Event{}, false, nil
	}
	transcript := ""
	if len(resp.Channel.Alternatives) > 0 {
		transcript = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	}
	if resp.IsFinal {
		if transcript == "" {
			return Event{}, false, nil
		}
		return Event{Kind: EventResult, Text: transcript}, true, nil
	}
	return Event{Kind: EventPartial, Text: transcript}, true, nil
}

type streamSession struct {
	id      string
	pipe    *eventPipe
	ctx     context.Context
	cancel  context.CancelFunc
	capture *capture

	mu       sync.Mutex
	conn     *websocket.Conn
	released bool

	releaseOnce sync.Once
}

func (s *streamSession) ID() string           { return s.id }
func (s *streamSession) Events() <-chan Event { return s.pipe.events }

func (s *streamSession) Stop() {
	s.pipe.close()
	s.release()
	s.pipe.drain()
}

// connect dials the endpoint within timeout. A connection that completes
// after release is closed right away.
func (s *streamSession) connect(endpoint string, headers http.Header, timeout time.Duration) error {
	dctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		conn.CloseNow()
		return context.Canceled
	}
	s.conn = conn
	return nil
}

// sendAudio streams PCM as binary frames. Once the capture stops the server
// is asked to flush and close.
func (s *streamSession) sendAudio() {
	for chunk := range s.capture.pump.ch {
		if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
			return
		}
	}
	if err := s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil && s.ctx.Err() == nil {
		log.Warnf("stream close request failed: %v", err)
	}
}

func (s *streamSession) readMessages() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				s.finish(Event{Kind: EventFinalResult})
				return
			}
			s.finish(Event{Kind: EventError, Err: fmt.Errorf("stream: %w", err)})
			return
		}
		ev, ok, err := parseStreamMessage(data)
		if err != nil {
			log.Warnf("stream message ignored: %v", err)
			continue
		}
		if ok && !s.pipe.emit(ev) {
			return
		}
	}
}

func (s *streamSession) finish(ev Event) {
	s.pipe.emit(ev)
	s.pipe.close()
	s.release()
}

func (s *streamSession) release() {
	s.releaseOnce.Do(func() {
		s.capture.stop()
		s.cancel()
		s.mu.Lock()
		s.released = true
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.CloseNow()
		}
	})
}
