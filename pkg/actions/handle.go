package actions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/botforge/scenario/pkg/models"
)

// Handle is a single-shot awaitable for a fire-and-forget action. Once it
// resolves it never changes; any number of goroutines may Wait on it.
type Handle struct {
	// ID uniquely names this dispatch; Action is the dispatched action's
	// name, used by the cache merger to key awaited results.
	ID     string
	Action string

	once   sync.Once
	done   chan struct{}
	result *models.Envelope
}

func newHandle(action string) *Handle {
	return &Handle{
		ID:     uuid.NewString(),
		Action: action,
		done:   make(chan struct{}),
	}
}

// complete resolves the handle exactly once. The result is published before
// done closes, so readers past the channel see it without locking.
func (h *Handle) complete(env *models.Envelope) {
	h.once.Do(func() {
		h.result = env
		close(h.done)
	})
}

// Ready reports whether the result is available.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the action's envelope is available, the context is
// cancelled, or the timeout elapses (timeout <= 0 waits indefinitely).
// A timeout returns a {result: "timeout"} envelope and leaves the
// underlying action running.
func (h *Handle) Wait(ctx context.Context, timeout time.Duration) *models.Envelope {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-h.done:
		return h.result
	case <-timer:
		return models.Timeout("timed out waiting for async action")
	case <-ctx.Done():
		return models.Timeout("context cancelled while waiting for async action")
	}
}
