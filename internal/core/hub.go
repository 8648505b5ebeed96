package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/domain"
)

// Hub holds the per-room local groups and an index of sessions by user.
// It is the only in-process shared mutable state of a gateway instance.
// The Hub never closes adapter-owned transports; dropped sessions are
// reported back to the caller.
type Hub struct {
	mu     sync.RWMutex
	groups map[domain.RoomID]*group
	byUser map[domain.UserID]map[SessionID]*Session
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[domain.RoomID]*group),
		byUser: make(map[domain.UserID]map[SessionID]*Session),
	}
}

// Register indexes an identified session. Called once per connection after
// the user is resolved.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID, ok := h.byUser[s.UserID]
	if !ok {
		byID = make(map[SessionID]*Session)
		h.byUser[s.UserID] = byID
	}
	byID[s.ID] = s
	log.Info().Str("module", "core.hub").Str("sid", string(s.ID)).Str("user", string(s.UserID)).Msg("session registered")
}

// Unregister removes the session from the user index and from every group it
// joined. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	for _, roomID := range s.Rooms() {
		h.Unsubscribe(roomID, s)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if byID, ok := h.byUser[s.UserID]; ok {
		delete(byID, s.ID)
		if len(byID) == 0 {
			delete(h.byUser, s.UserID)
		}
	}
	log.Info().Str("module", "core.hub").Str("sid", string(s.ID)).Msg("session unregistered")
}

func (h *Hub) Subscribe(roomID domain.RoomID, s *Session) {
	h.mu.Lock()
	g, ok := h.groups[roomID]
	if !ok {
		g = newGroup()
		h.groups[roomID] = g
	}
	h.mu.Unlock()
	g.add(s)
	s.AddRoom(roomID)
}

// Unsubscribe is idempotent: removing a session that already left the group
// is a no-op.
func (h *Hub) Unsubscribe(roomID domain.RoomID, s *Session) {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	g.remove(s.ID)
	s.RemoveRoom(roomID)
	h.dropIfEmpty(roomID)
}

// Deliver fans a frame out to every session in the room's group except the
// given one. Sends go through each connection's non-blocking sender, so one
// slow client never delays its siblings; overflowing sessions come back in
// Dropped.
func (h *Hub) Deliver(roomID domain.RoomID, except SessionID, data Frame) DeliveryResult {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	res := DeliveryResult{}
	if !ok {
		return res
	}
	for _, s := range g.snapshot() {
		if s.ID == except {
			continue
		}
		if err := s.Sender().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.hub").Str("room", string(roomID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("delivery result")
	return res
}

// SessionsOfUser snapshots all live sessions of one user on this instance.
func (h *Hub) SessionsOfUser(userID domain.UserID) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	byID := h.byUser[userID]
	out := make([]*Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out
}

// DropRoom unsubscribes every local session from the room's group and
// discards the group. Used when a room is deleted elsewhere.
func (h *Hub) DropRoom(roomID domain.RoomID) []*Session {
	h.mu.Lock()
	g, ok := h.groups[roomID]
	delete(h.groups, roomID)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	evicted := g.snapshot()
	for _, s := range evicted {
		s.RemoveRoom(roomID)
	}
	return evicted
}

func (h *Hub) GroupSize(roomID domain.RoomID) int {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return g.size()
}

func (h *Hub) dropIfEmpty(roomID domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.groups[roomID]; ok && g.size() == 0 {
		delete(h.groups, roomID)
	}
}
