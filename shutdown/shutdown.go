package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a copy of parent that is cancelled when the process is
// asked to terminate.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}
