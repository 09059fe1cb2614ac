package hotkey

import "context"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
}

// Listen calls onPress for every key press until ctx is done, then
// unregisters hk.
func Listen(ctx context.Context, hk Hotkey, onPress func()) {
	defer hk.Unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			onPress()
		}
	}
}
