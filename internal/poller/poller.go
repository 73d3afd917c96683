package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"wapair/internal/constants"
	"wapair/internal/gateway"
)

// ChangeFunc receives the new state whenever the provider-reported status
// differs from the last observed one.
type ChangeFunc func(state gateway.ConnectionState)

// StatusChecker is the one gateway call the poller needs.
type StatusChecker interface {
	CheckStatus(ctx context.Context, instanceName string) (gateway.ConnectionState, error)
}

// Poller runs at most one poll loop per instance name. Each loop carries a
// repeating interval timer and a one-shot deadline; reaching a terminal state
// (connected, timeout, error) stops the loop and releases the handle.
type Poller struct {
	mu      sync.Mutex
	handles map[string]*handle

	checker  StatusChecker
	interval time.Duration
	deadline time.Duration
}

// handle.mu serializes callback dispatch with Stop: Stop marks the handle
// stopped under the lock, and dispatch re-checks the mark under the same
// lock, so no callback starts after Stop returned.
type handle struct {
	sessionID string
	startedAt time.Time
	cancel    context.CancelFunc

	mu         sync.Mutex
	lastStatus string
	stopped    bool
}

func New(checker StatusChecker, interval, deadline time.Duration) *Poller {
	return &Poller{
		handles:  make(map[string]*handle),
		checker:  checker,
		interval: interval,
		deadline: deadline,
	}
}

// Start begins polling instanceName. Starting an instance that is already
// polling is a no-op. The provider reports "created" until pairing moves, so
// the change detector is seeded with that.
func (p *Poller) Start(instanceName, sessionID string, onChange ChangeFunc) {
	p.mu.Lock()
	if _, ok := p.handles[instanceName]; ok {
		p.mu.Unlock()
		log.Printf("⚠️ Status poll already running: %s", instanceName)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		sessionID:  sessionID,
		lastStatus: constants.StatusCreated,
		startedAt:  time.Now(),
		cancel:     cancel,
	}
	p.handles[instanceName] = h
	p.mu.Unlock()

	log.Printf("⏱ Status poll started: %s (every %s, deadline %s)", instanceName, p.interval, p.deadline)
	go p.run(ctx, instanceName, h, onChange)
}

// Stop cancels the loop and removes the handle. Stopping an absent instance
// warns and returns.
func (p *Poller) Stop(instanceName string) {
	p.mu.Lock()
	h, ok := p.handles[instanceName]
	if ok {
		delete(p.handles, instanceName)
	}
	p.mu.Unlock()

	if !ok {
		log.Printf("⚠️ Stop for unknown status poll: %s", instanceName)
		return
	}
	h.halt()
	log.Printf("⏹ Status poll stopped: %s (after %s)", instanceName, time.Since(h.startedAt).Round(time.Millisecond))
}

// halt marks the handle stopped and cancels its loop. Waiting for h.mu means
// an in-flight dispatch finishes before halt returns.
func (h *handle) halt() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// StopAll tears down every active loop.
func (p *Poller) StopAll() {
	p.mu.Lock()
	handles := p.handles
	p.handles = make(map[string]*handle)
	p.mu.Unlock()

	for name, h := range handles {
		h.halt()
		log.Printf("⏹ Status poll stopped: %s (after %s)", name, time.Since(h.startedAt).Round(time.Millisecond))
	}
}

func (p *Poller) Active(instanceName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handles[instanceName]
	return ok
}

func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

func (p *Poller) run(ctx context.Context, name string, h *handle, onChange ChangeFunc) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.deadline)
	defer deadline.Stop()

	// first check runs immediately so the initial round-trip does not wait
	// a full interval
	if p.check(ctx, name, h, onChange) {
		p.finish(name, h)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			onChange(gateway.ConnectionState{Connected: false, Status: constants.StatusTimeout})
			h.mu.Unlock()
			p.finish(name, h)
			log.Printf("⌛ Status poll deadline reached: %s", name)
			return
		case <-ticker.C:
			if p.check(ctx, name, h, onChange) {
				p.finish(name, h)
				return
			}
		}
	}
}

// check performs one status round-trip and reports whether the loop reached a
// terminal state. The callback fires only on change, never once the handle is
// stopped.
func (p *Poller) check(ctx context.Context, name string, h *handle, onChange ChangeFunc) bool {
	state, err := p.checker.CheckStatus(ctx, name)
	if err != nil {
		// the adapter degrades failures itself; this is the backstop
		state = gateway.ConnectionState{Connected: false, Status: constants.StatusError}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return true
	}
	if state.Status != h.lastStatus {
		h.lastStatus = state.Status
		onChange(state)
	}
	return state.Connected || state.Status == constants.StatusError
}

// finish releases the handle after the loop reached a terminal state on its
// own; a concurrent Stop may already have removed it.
func (p *Poller) finish(name string, h *handle) {
	p.mu.Lock()
	if cur, ok := p.handles[name]; ok && cur == h {
		delete(p.handles, name)
	}
	p.mu.Unlock()

	h.halt()
	log.Printf("⏹ Status poll finished: %s (after %s)", name, time.Since(h.startedAt).Round(time.Millisecond))
}
