package hotkey

import (
	"context"
	"testing"
	"time"
)

func TestListenTogglesOnPress(t *testing.T) {
	hk := NewFake()
	presses := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Listen(ctx, hk, func() { presses <- struct{}{} })
		close(done)
	}()

	hk.SimKeydown()
	hk.SimKeydown()
	for i := 0; i < 2; i++ {
		select {
		case <-presses:
		case <-time.After(2 * time.Second):
			t.Fatalf("press %d not delivered", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	if n := hk.Unregistered(); n != 1 {
		t.Errorf("Unregister called %d times, want 1", n)
	}
}
