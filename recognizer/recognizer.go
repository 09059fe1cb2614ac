package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrNoHypothesis  = errors.New("hypothesis has neither text nor partial")
)

type EventKind int

const (
	EventPartial     EventKind = iota // provisional hypothesis, overwritten by the next one
	EventResult                       // confirmed text for one utterance
	EventFinalResult                  // last confirmed text; the session is over
	EventError
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventResult:
		return "result"
	case EventFinalResult:
		return "final_result"
	case EventError:
		return "error"
	case EventTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

type hypothesis struct {
	Text    *string `json:"text"`
	Partial *string `json:"partial"`
}

// ParseHypothesis decodes one tagged engine message: {"partial": "..."} is a
// partial hypothesis, {"text": "..."} a confirmed result. When both fields
// are present the message is a result.
func ParseHypothesis(data []byte) (Event, error) {
	var h hypothesis
	if err := json.Unmarshal(data, &h); err != nil {
		return Event{}, fmt.Errorf("decode hypothesis: %w", err)
	}
	switch {
	case h.Text != nil:
		return Event{Kind: EventResult, Text: *h.Text}, nil
	case h.Partial != nil:
		return Event{Kind: EventPartial, Text: *h.Partial}, nil
	default:
		return Event{}, ErrNoHypothesis
	}
}

type SessionConfig struct {
	SampleRate     int
	Language       string
	SilenceTimeout time.Duration // 0 disables the timeout
}

// Engine loads speech models.
type Engine interface {
	Name() string
	Load(ctx context.Context, modelID string) (Model, error)
}

// Model is a loaded speech model. Close releases it; sessions must be
// stopped first.
type Model interface {
	ID() string
	Start(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}

// Session is one listening run. Events is closed once the session ends.
// Stop is idempotent; no event is delivered after it returns.
type Session interface {
	ID() string
	Events() <-chan Event
	Stop()
}
