package mcp

import "sync"

// SessionRegistry maps work session IDs to MCP client session IDs.
// Populated automatically when clients call any tool that includes session_id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // work session ID → client session ID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a work session with a client session.
// If the work session already has a client, it is overwritten (reconnect).
func (r *SessionRegistry) Register(sessionID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = clientID
}

// ClientFor returns the client session ID for the given work session, if
// connected.
func (r *SessionRegistry) ClientFor(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.sessions[sessionID]
	return cid, ok
}

// Remove deletes all work session mappings for the given client session ID.
// Called when a client disconnects.
func (r *SessionRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, cid := range r.sessions {
		if cid == clientID {
			delete(r.sessions, sid)
		}
	}
}
