// Cooperative cancellation registry.
//
// Information Hiding:
// - Correlation of external cancel signals to contexts hidden
// - Registry bookkeeping hidden behind register/cancel
package agent

import (
	"context"
	"sync"
)

// cancelRegistry maps in-flight message IDs to their cancel functions so an
// external cancel signal can be correlated to the right run. Cancellation is
// cooperative: the loop observes it at the next step boundary.
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// register derives a cancellable context for a run and tracks it by message
// ID. The returned release must be called when the run ends.
func (r *cancelRegistry) register(ctx context.Context, messageID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancels[messageID] = cancel
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.cancels, messageID)
		r.mu.Unlock()
		cancel()
	}
	return runCtx, release
}

// cancel signals the run for a message ID, if one is in flight.
// Cancelling an unknown or already-finished run is a no-op.
func (r *cancelRegistry) cancel(messageID string) {
	r.mu.Lock()
	cancel, ok := r.cancels[messageID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
}
