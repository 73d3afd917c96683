package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"wapair/internal/types"
)

// SSESink streams events as server-sent-event frames over a flushable
// ResponseWriter. The handler that created it must block on Done before
// returning, since returning ends the response.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu   sync.Mutex
	done chan struct{}
}

func NewSSESink(w http.ResponseWriter, r *http.Request) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	s := &SSESink{w: w, flusher: flusher, done: make(chan struct{})}

	// initial comment frame: keeps proxies from buffering the stream and
	// tells the client the subscription is live
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	go func() {
		select {
		case <-r.Context().Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

func (s *SSESink) Send(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *SSESink) Done() <-chan struct{} {
	return s.done
}
