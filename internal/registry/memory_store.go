package registry

import (
	"log"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (st *MemoryStore) Put(sessionID, instanceName, status string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.sessions[sessionID] = &Session{
		SessionID:    sessionID,
		InstanceName: instanceName,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	log.Printf("💾 Session registered: %s -> %s (%s)", sessionID, instanceName, status)
}

func (st *MemoryStore) Get(sessionID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

func (st *MemoryStore) FindInstanceName(sessionID string) (string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.InstanceName, true
}

func (st *MemoryStore) UpdateStatus(instanceName, status string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, sess := range st.sessions {
		if sess.InstanceName == instanceName {
			sess.Status = status
			return
		}
	}
	log.Printf("⚠️ Status update for unknown instance: %s (%s)", instanceName, status)
}

func (st *MemoryStore) Remove(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[sessionID]; ok {
		delete(st.sessions, sessionID)
		log.Printf("🗑 Session removed: %s", sessionID)
	}
}

func (st *MemoryStore) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out
}

func (st *MemoryStore) Close() error {
	return nil
}
