package realtime

import "sync"

// Presence tracks which users currently hold open realtime connections.
// Connections are inserted once authenticated and removed on disconnect.
type Presence struct {
	mu          sync.RWMutex
	connections map[string]map[*Client]struct{}
}

func NewPresence() *Presence {
	return &Presence{connections: make(map[string]map[*Client]struct{})}
}

func (p *Presence) Add(userID string, client *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.connections[userID]
	if set == nil {
		set = make(map[*Client]struct{})
		p.connections[userID] = set
	}
	set[client] = struct{}{}
}

func (p *Presence) Remove(userID string, client *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.connections[userID]
	if set == nil {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(p.connections, userID)
	}
}

// Online reports whether the user has at least one live connection.
func (p *Presence) Online(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections[userID]) > 0
}

// OnlineCount returns the number of distinct users currently connected.
func (p *Presence) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}
