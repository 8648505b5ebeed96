package core

import "sync"

// group is a threadsafe set of live sessions subscribed to one room on this
// instance. Iteration snapshots the membership so no lock is held across an
// I/O-bound delivery call.
type group struct {
	mu      sync.RWMutex
	members map[SessionID]*Session
}

func newGroup() *group {
	return &group{members: make(map[SessionID]*Session)}
}

func (g *group) add(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[s.ID] = s
}

// remove is a no-op when the session is not in the group.
func (g *group) remove(sid SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, sid)
}

func (g *group) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

func (g *group) snapshot() []*Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Session, 0, len(g.members))
	for _, s := range g.members {
		out = append(out, s)
	}
	return out
}
