package recognizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake is a scripted engine. Every session replays Script, then stays open
// for events pushed with FakeSession.Emit until it is stopped or ended.
type Fake struct {
	LoadErr   error
	StartErr  error
	LoadDelay time.Duration
	Script    []Event

	mu       sync.Mutex
	models   []*FakeModel
	sessions []*FakeSession
}

func NewFake(script ...Event) *Fake {
	return &Fake{Script: script}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Load(ctx context.Context, modelID string) (Model, error) {
	if f.LoadDelay > 0 {
		t := time.NewTimer(f.LoadDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	m := &FakeModel{id: modelID, engine: f}
	f.mu.Lock()
	f.models = append(f.models, m)
	f.mu.Unlock()
	return m, nil
}

func (f *Fake) Models() []*FakeModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeModel(nil), f.models...)
}

func (f *Fake) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

// LastSession returns the most recently started session, or nil.
func (f *Fake) LastSession() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type FakeModel struct {
	id     string
	engine *Fake

	mu     sync.Mutex
	closes int
}

func (m *FakeModel) ID() string { return m.id }

func (m *FakeModel) Start(_ context.Context, cfg SessionConfig) (Session, error) {
	if m.engine.StartErr != nil {
		return nil, m.engine.StartErr
	}
	m.mu.Lock()
	closed := m.closes > 0
	m.mu.Unlock()
	if closed {
		return nil, errors.New("model is closed")
	}

	s := &FakeSession{id: uuid.NewString(), cfg: cfg, pipe: newEventPipe(sessionEventBuffer)}
	m.engine.mu.Lock()
	m.engine.sessions = append(m.engine.sessions, s)
	m.engine.mu.Unlock()

	if script := m.engine.Script; len(script) > 0 {
		s.pipe.spawn(func() {
			for _, ev := range script {
				if !s.pipe.emit(ev) {
					return
				}
			}
		})
	}
	return s, nil
}

func (m *FakeModel) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	return nil
}

// Closes reports how many times Close was called.
func (m *FakeModel) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type FakeSession struct {
	id   string
	cfg  SessionConfig
	pipe *eventPipe

	mu      sync.Mutex
	stopped bool
}

func (s *FakeSession) ID() string            { return s.id }
func (s *FakeSession) Events() <-chan Event  { return s.pipe.events }
func (s *FakeSession) Config() SessionConfig { return s.cfg }

// Emit pushes ev to the consumer. It reports false once the session ended.
func (s *FakeSession) Emit(ev Event) bool {
	return s.pipe.emit(ev)
}

// End delivers ev and closes the session, as an engine does when it stops
// on its own (final result, error, timeout).
func (s *FakeSession) End(ev Event) {
	s.pipe.emit(ev)
	s.pipe.close()
}

func (s *FakeSession) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.pipe.close()
	s.pipe.drain()
}

func (s *FakeSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
