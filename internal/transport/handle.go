package transport

import (
	"context"
	"sync"
)

// PointState is the lifecycle of the native point a Handle owns.
type PointState int

// Point states.
const (
	PointIdle PointState = iota
	PointActive
	PointDraining
	PointReleased
)

// String returns the state name.
func (p PointState) String() string {
	switch p {
	case PointIdle:
		return "idle"
	case PointActive:
		return "active"
	case PointDraining:
		return "draining"
	case PointReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Handle owns at most one Session and tears it down in two phases:
// Release starts an asynchronous drain, ReleasePtr frees the session once
// CheckPointEnable reports false.
//
// Callers serialise Open, Connect, Release, ReleasePtr and ResetState.
// CheckPointEnable, IsConnected and Session may run concurrently with them.
type Handle struct {
	mu       sync.Mutex
	state    PointState
	session  *Session
	drained  chan struct{}
	drainErr error
}

// NewHandle returns an idle handle.
func NewHandle() *Handle {
	return &Handle{}
}

// State returns the current point state.
func (h *Handle) State() PointState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Open creates the Session. It fails with ErrAlreadyOpen while a previous
// session is active or still draining.
func (h *Handle) Open(cfg SessionConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == PointActive || h.state == PointDraining {
		return ErrAlreadyOpen
	}
	s, err := NewSession(cfg)
	if err != nil {
		return err
	}
	h.session = s
	h.state = PointActive
	h.drained = nil
	h.drainErr = nil
	return nil
}

// Connect makes the first connection attempt on the active session.
func (h *Handle) Connect(ctx context.Context) error {
	s, err := h.Session()
	if err != nil {
		return err
	}
	return s.Connect(ctx)
}

// IsConnected reports whether the active session is connected.
func (h *Handle) IsConnected() bool {
	s, err := h.Session()
	return err == nil && s.IsConnected()
}

// Session returns the active session, or ErrPointDisabled.
func (h *Handle) Session() (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != PointActive {
		return nil, ErrPointDisabled
	}
	return h.session, nil
}

// Release starts draining the active session. Other states are left alone.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != PointActive {
		return
	}
	h.state = PointDraining

	done := make(chan struct{})
	h.drained = done
	s := h.session
	go func() {
		err := s.Shutdown()
		h.mu.Lock()
		h.drainErr = err
		h.mu.Unlock()
		close(done)
	}()
}

// CheckPointEnable reports whether the point is still live: active, or
// draining with the drain unfinished.
func (h *Handle) CheckPointEnable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case PointActive:
		return true
	case PointDraining:
		select {
		case <-h.drained:
			return false
		default:
			return true
		}
	default:
		return false
	}
}

// ReleasePtr frees a drained session and returns whatever error the drain
// produced. It fails with ErrNotDrained while the point is still live.
func (h *Handle) ReleasePtr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case PointActive:
		return ErrNotDrained
	case PointDraining:
		select {
		case <-h.drained:
		default:
			return ErrNotDrained
		}
	default:
		return nil
	}

	err := h.drainErr
	h.session = nil
	h.drained = nil
	h.drainErr = nil
	h.state = PointReleased
	return err
}

// ResetState clears connection bookkeeping after ReleasePtr.
func (h *Handle) ResetState() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == PointReleased || h.state == PointIdle {
		h.session = nil
	}
}
