package registry

import "time"

// Session maps one client pairing attempt to its provider-side instance.
type Session struct {
	SessionID    string    `json:"session_id"`
	InstanceName string    `json:"instance_name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoreInterface is keyed by session id; status updates arrive keyed by
// instance name because that is all the provider knows about.
type StoreInterface interface {
	Put(sessionID, instanceName, status string)
	Get(sessionID string) (*Session, bool)
	FindInstanceName(sessionID string) (string, bool)
	UpdateStatus(instanceName, status string)
	Remove(sessionID string)
	List() []*Session
	Close() error
}
