// Package gateway drives the per-connection lifecycle of the realtime
// delivery service: identity resolution, subscription to local room groups,
// message fan-out and the handling of bus-origin events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/domain"
)

var (
	// ErrNotInRoom rejects a send to a room outside the cached membership
	// set. The connection stays up.
	ErrNotInRoom = errors.New("not a member of the room")
	// ErrIdentity is fatal to the connection being established.
	ErrIdentity = errors.New("identity resolution failed")
)

// Identity asserts the account behind a bearer credential.
type Identity interface {
	Assert(token string) (string, error)
}

// Directory is the read side of the room directory the gateway consults at
// subscribe time.
type Directory interface {
	GetUserIDForIdentity(ctx context.Context, identity string) (domain.UserID, error)
	GetRoomsForUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error)
}

// Producer appends accepted messages to the shared log.
type Producer interface {
	Publish(ctx context.Context, e bus.Event) error
}

type Gateway struct {
	instanceID string
	hub        *core.Hub
	identity   Identity
	directory  Directory
	producer   Producer
}

func New(instanceID string, hub *core.Hub, identity Identity, directory Directory, producer Producer) *Gateway {
	return &Gateway{
		instanceID: instanceID,
		hub:        hub,
		identity:   identity,
		directory:  directory,
		producer:   producer,
	}
}

func (g *Gateway) InstanceID() string { return g.instanceID }

// Connect takes a fresh transport connection through Connecting ->
// Identified -> Subscribed. Any failure is fatal: the caller must tear the
// transport down and nothing is registered.
func (g *Gateway) Connect(ctx context.Context, token string, sender core.Sender) (*core.Session, error) {
	identity, err := g.identity.Assert(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentity, err)
	}
	userID, err := g.directory.GetUserIDForIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentity, err)
	}
	roomIDs, err := g.directory.GetRoomsForUser(ctx, userID)
	if err != nil {
		// Defaulting to "no rooms" or "all rooms" would be wrong either way.
		return nil, fmt.Errorf("load membership for %s: %w", userID, err)
	}

	s := core.NewSession(core.SessionID(uuid.NewString()), userID, sender)
	g.hub.Register(s)
	for _, roomID := range roomIDs {
		g.hub.Subscribe(roomID, s)
	}
	log.Info().Str("module", "gateway").Str("sid", string(s.ID)).Str("user", string(userID)).Int("rooms", len(roomIDs)).Msg("session subscribed")
	return s, nil
}

// Disconnect unregisters the session from every group it joined. Idempotent.
func (g *Gateway) Disconnect(s *core.Session) {
	g.hub.Unregister(s)
}

// SendMessage validates the sender's cached membership, then concurrently
// publishes to the bus and fans out to local subscribers. Both legs are
// awaited; a failed leg is reported without rolling back the other.
func (g *Gateway) SendMessage(ctx context.Context, s *core.Session, roomID domain.RoomID, content string) error {
	if !s.InRoom(roomID) {
		log.Warn().Str("module", "gateway").Str("sid", string(s.ID)).Str("room", string(roomID)).Msg("send to room outside membership set")
		return ErrNotInRoom
	}
	msg := domain.ChatMessage{
		SenderID: s.UserID,
		RoomID:   roomID,
		Content:  content,
		Time:     time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return g.producer.Publish(ctx, bus.Event{
			Kind:    bus.KindMessage,
			Origin:  g.instanceID,
			Message: &msg,
		})
	})
	eg.Go(func() error {
		res := g.hub.Deliver(roomID, s.ID, EncodeMessageFrame(msg))
		g.kickSlow(res.Dropped)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	return nil
}

// HandleBusEvent is the consumer-loop callback. Message events from this
// instance were already fanned out locally and are skipped; everything else
// is applied to local state.
func (g *Gateway) HandleBusEvent(_ context.Context, e bus.Event) {
	switch e.Kind {
	case bus.KindMessage:
		if e.Origin == g.instanceID {
			return
		}
		res := g.hub.Deliver(e.Message.RoomID, "", EncodeMessageFrame(*e.Message))
		g.kickSlow(res.Dropped)
	case bus.KindRoomDeleted:
		evicted := g.hub.DropRoom(e.RoomDeleted.RoomID)
		notice := EncodeErrorFrame(fmt.Sprintf("room %s was deleted", e.RoomDeleted.RoomID))
		for _, s := range evicted {
			_ = s.Sender().TrySend(notice)
		}
		log.Info().Str("module", "gateway").Str("room", string(e.RoomDeleted.RoomID)).Int("evicted", len(evicted)).Msg("room dropped")
	case bus.KindRoomCreated:
		g.resubscribe(e.RoomCreated.RoomID, e.RoomCreated.UserID)
	case bus.KindMemberAdded:
		g.resubscribe(e.MemberAdded.RoomID, e.MemberAdded.UserID)
	case bus.KindMemberRemoved:
		for _, s := range g.hub.SessionsOfUser(e.MemberRemoved.UserID) {
			g.hub.Unsubscribe(e.MemberRemoved.RoomID, s)
		}
	default:
		log.Warn().Str("module", "gateway").Str("kind", string(e.Kind)).Msg("unhandled bus event")
	}
}

// resubscribe patches the cached room set of any live session of the user,
// closing the gap between a membership change and the next reconnect.
func (g *Gateway) resubscribe(roomID domain.RoomID, userID domain.UserID) {
	for _, s := range g.hub.SessionsOfUser(userID) {
		g.hub.Subscribe(roomID, s)
	}
}

// kickSlow disconnects sessions whose send buffer overflowed. The write pump
// notices the closed transport and the adapter finishes teardown.
func (g *Gateway) kickSlow(dropped []*core.Session) {
	for _, s := range dropped {
		log.Warn().Str("module", "gateway").Str("sid", string(s.ID)).Msg("kicking slow consumer")
		g.hub.Unregister(s)
		s.Sender().Close()
	}
}
