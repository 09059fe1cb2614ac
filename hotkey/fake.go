package hotkey

import "sync"

type FakeHotkey struct {
	keydown chan struct{}

	mu           sync.Mutex
	unregistered int
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{keydown: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error { return nil }

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	f.unregistered++
	f.mu.Unlock()
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }

func (f *FakeHotkey) Unregistered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unregistered
}
