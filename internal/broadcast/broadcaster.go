package broadcast

import (
	"log"
	"sync"

	"wapair/internal/types"
)

// Broadcaster owns at most one event stream per session id. A write to a dead
// transport deregisters the stream instead of surfacing a fault.
type Broadcaster struct {
	mu      sync.RWMutex
	streams map[string]Sink
}

func New() *Broadcaster {
	return &Broadcaster{streams: make(map[string]Sink)}
}

// Subscribe registers the sink for sessionID and watches it for transport
// disconnect. A second subscription for the same session replaces the first.
func (b *Broadcaster) Subscribe(sessionID string, sink Sink) {
	b.mu.Lock()
	if old, ok := b.streams[sessionID]; ok {
		log.Printf("⚠️ Replacing open event stream: %s", sessionID)
		old.Close()
	}
	b.streams[sessionID] = sink
	b.mu.Unlock()

	go func() {
		<-sink.Done()
		if b.deregister(sessionID, sink) {
			log.Printf("📪 Event stream gone: %s", sessionID)
		}
	}()

	log.Printf("📡 Event stream opened: %s", sessionID)
}

// Publish delivers one event; false means no subscriber or a dead transport,
// which the caller treats as nothing to do.
func (b *Broadcaster) Publish(sessionID string, ev types.Event) bool {
	b.mu.RLock()
	sink, ok := b.streams[sessionID]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	if err := sink.Send(ev); err != nil {
		log.Printf("⚠️ Dropping dead event stream %s: %v", sessionID, err)
		sink.Close()
		b.deregister(sessionID, sink)
		return false
	}
	return true
}

// Close optionally delivers one final event, then terminates the stream.
// Closing an unknown session is a no-op.
func (b *Broadcaster) Close(sessionID string, finalEvent *types.Event) {
	b.mu.Lock()
	sink, ok := b.streams[sessionID]
	if ok {
		delete(b.streams, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		log.Printf("⚠️ Close for unknown event stream: %s", sessionID)
		return
	}

	if finalEvent != nil {
		if err := sink.Send(*finalEvent); err != nil {
			log.Printf("⚠️ Final event not delivered to %s: %v", sessionID, err)
		}
	}
	sink.Close()
	log.Printf("📪 Event stream closed: %s", sessionID)
}

// Broadcast fans one event out to the given sessions, or to every open stream
// when none are named. Returns how many streams took the event.
func (b *Broadcaster) Broadcast(ev types.Event, sessionIDs ...string) int {
	if len(sessionIDs) == 0 {
		b.mu.RLock()
		for id := range b.streams {
			sessionIDs = append(sessionIDs, id)
		}
		b.mu.RUnlock()
	}

	delivered := 0
	for _, id := range sessionIDs {
		if b.Publish(id, ev) {
			delivered++
		}
	}
	return delivered
}

// CloseAll terminates every open stream, delivering finalEvent first when set.
func (b *Broadcaster) CloseAll(finalEvent *types.Event) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.streams))
	for id := range b.streams {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	for _, id := range ids {
		b.Close(id, finalEvent)
	}
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

// deregister removes the stream only if sink is still the registered one, so
// a replaced stream's teardown cannot evict its successor.
func (b *Broadcaster) deregister(sessionID string, sink Sink) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.streams[sessionID]; ok && cur == sink {
		delete(b.streams, sessionID)
		return true
	}
	return false
}
