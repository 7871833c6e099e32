package transport

import (
	"sync"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// pendingCalls tracks synchronous requests awaiting an up/response,
// keyed by trace ID.
type pendingCalls struct {
	mu     sync.Mutex
	calls  map[string]chan tsl.Response
	closed bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]chan tsl.Response)}
}

// add registers traceID and returns the channel its reply arrives on.
// It reports false once failAll has run.
func (p *pendingCalls) add(traceID string) (<-chan tsl.Response, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false
	}
	ch := make(chan tsl.Response, 1)
	p.calls[traceID] = ch
	return ch, true
}

// complete delivers res to the waiter for traceID, if any.
func (p *pendingCalls) complete(traceID string, res tsl.Response) bool {
	p.mu.Lock()
	ch, ok := p.calls[traceID]
	delete(p.calls, traceID)
	p.mu.Unlock()
	if ok {
		ch <- res
	}
	return ok
}

func (p *pendingCalls) remove(traceID string) {
	p.mu.Lock()
	delete(p.calls, traceID)
	p.mu.Unlock()
}

// failAll completes every waiter with res and refuses later adds.
func (p *pendingCalls) failAll(res tsl.Response) {
	p.mu.Lock()
	p.closed = true
	calls := p.calls
	p.calls = make(map[string]chan tsl.Response)
	p.mu.Unlock()
	for _, ch := range calls {
		ch <- res
	}
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
