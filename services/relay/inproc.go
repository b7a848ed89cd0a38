package relaysvc

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

// inProcRelay short-circuits publish to the local handler; single-node
// deployments (and tests) use it when no redis address is configured.
type inProcRelay struct {
	mu     sync.RWMutex
	handle func(core.Event)
}

var _ Forwarder = (*inProcRelay)(nil)

func NewInProcRelay() *inProcRelay {
	return &inProcRelay{}
}

func (r *inProcRelay) Publish(_ context.Context, event core.Event) error {
	r.mu.RLock()
	handle := r.handle
	r.mu.RUnlock()

	if handle != nil {
		handle(event)
	}
	return nil
}

func (r *inProcRelay) StartForwarder(_ context.Context, handle func(core.Event)) {
	r.mu.Lock()
	r.handle = handle
	r.mu.Unlock()
}
