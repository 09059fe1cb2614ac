package clipboard

import (
	"errors"
	"sync"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility available")

func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// System is the OS clipboard.
type System struct{}

func (System) Copy(text string) error { return Copy(text) }

// Memory is an in-process clipboard for sessions without a display.
type Memory struct {
	mu   sync.Mutex
	text string
}

func (m *Memory) Copy(text string) error {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Default returns the system clipboard when one is reachable, else a
// Memory clipboard.
func Default() interface{ Copy(string) error } {
	if Available() {
		return System{}
	}
	return &Memory{}
}
