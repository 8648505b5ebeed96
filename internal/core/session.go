package core

import (
	"sync"

	"github.com/parley-chat/parley/internal/domain"
)

// Session is the per-connection state: the resolved user (set once at
// identification) and the cached set of subscribed rooms. No keyed bags;
// everything the delivery path needs lives in typed fields.
type Session struct {
	ID     SessionID
	UserID domain.UserID

	sender Sender

	mu    sync.RWMutex
	rooms map[domain.RoomID]struct{}
}

func NewSession(id SessionID, userID domain.UserID, sender Sender) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		sender: sender,
		rooms:  make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) Sender() Sender { return s.sender }

func (s *Session) InRoom(roomID domain.RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) AddRoom(roomID domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = struct{}{}
}

func (s *Session) RemoveRoom(roomID domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *Session) Rooms() []domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}
