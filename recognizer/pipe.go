package recognizer

import "sync"

// eventPipe delivers session events to one consumer. Producers register
// through emit/spawn; once the pipe is closed no further event is accepted
// and the channel is closed after the last producer returns.
type eventPipe struct {
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func newEventPipe(size int) *eventPipe {
	return &eventPipe{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

func (p *eventPipe) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *eventPipe) emit(ev Event) bool {
	if !p.acquire() {
		return false
	}
	defer p.wg.Done()
	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

// spawn runs fn on its own goroutine as a producer.
func (p *eventPipe) spawn(fn func()) bool {
	if !p.acquire() {
		return false
	}
	go func() {
		defer p.wg.Done()
		fn()
	}()
	return true
}

// close stops accepting events. The channel is closed once the last
// producer returns; events already buffered stay readable.
func (p *eventPipe) close() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.done)
	p.mu.Unlock()

	go func() {
		p.wg.Wait()
		close(p.events)
	}()
}

// drain waits for producers and discards undelivered events. It must not
// be called from a producer.
func (p *eventPipe) drain() {
	p.wg.Wait()
	for {
		select {
		case _, ok := <-p.events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
