// Package bus bridges gateway instances over a shared ordered log. A message
// accepted by one instance is republished here so that clients connected to
// any other instance still receive it. Room lifecycle changes travel the same
// way so live connections can be patched without a reconnect.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parley-chat/parley/internal/domain"
)

type Kind string

const (
	KindMessage       Kind = "message"
	KindRoomCreated   Kind = "room_created"
	KindRoomDeleted   Kind = "room_deleted"
	KindMemberAdded   Kind = "member_added"
	KindMemberRemoved Kind = "member_removed"
)

var (
	ErrUnknownKind    = errors.New("unknown event kind")
	ErrEmptyPayload   = errors.New("event payload missing")
	ErrPayloadForKind = errors.New("payload does not match event kind")
)

type RoomCreated struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Role   domain.Role   `json:"role"`
}

type RoomDeleted struct {
	RoomID domain.RoomID `json:"room_id"`
}

type MemberAdded struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Role   domain.Role   `json:"role"`
}

type MemberRemoved struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

// Event is the tagged union carried on the log. Exactly one payload pointer
// is non-nil and it matches Kind. Origin is the producing gateway instance;
// management-service events leave it empty.
type Event struct {
	Kind   Kind
	Origin string

	Message       *domain.ChatMessage
	RoomCreated   *RoomCreated
	RoomDeleted   *RoomDeleted
	MemberAdded   *MemberAdded
	MemberRemoved *MemberRemoved
}

// RoomID of the event, used as the partition key so that per-room order
// follows the log's per-partition guarantee.
func (e Event) RoomID() domain.RoomID {
	switch e.Kind {
	case KindMessage:
		if e.Message != nil {
			return e.Message.RoomID
		}
	case KindRoomCreated:
		if e.RoomCreated != nil {
			return e.RoomCreated.RoomID
		}
	case KindRoomDeleted:
		if e.RoomDeleted != nil {
			return e.RoomDeleted.RoomID
		}
	case KindMemberAdded:
		if e.MemberAdded != nil {
			return e.MemberAdded.RoomID
		}
	case KindMemberRemoved:
		if e.MemberRemoved != nil {
			return e.MemberRemoved.RoomID
		}
	}
	return ""
}

// envelope is the wire form: kind and origin up front, payload decoded once
// the kind is known.
type envelope struct {
	Kind    Kind            `json:"kind"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes the event into a partition key and a value payload.
func Encode(e Event) (key, value []byte, err error) {
	var payload any
	switch e.Kind {
	case KindMessage:
		payload = e.Message
	case KindRoomCreated:
		payload = e.RoomCreated
	case KindRoomDeleted:
		payload = e.RoomDeleted
	case KindMemberAdded:
		payload = e.MemberAdded
	case KindMemberRemoved:
		payload = e.MemberRemoved
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if payload == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrEmptyPayload, e.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	value, err = json.Marshal(envelope{Kind: e.Kind, Origin: e.Origin, Payload: raw})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return []byte(e.RoomID()), value, nil
}

// Decode parses one log record back into an Event. The key is only the
// partition key and carries no information the envelope lacks.
func Decode(value []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	e := Event{Kind: env.Kind, Origin: env.Origin}
	var dst any
	switch env.Kind {
	case KindMessage:
		e.Message = &domain.ChatMessage{}
		dst = e.Message
	case KindRoomCreated:
		e.RoomCreated = &RoomCreated{}
		dst = e.RoomCreated
	case KindRoomDeleted:
		e.RoomDeleted = &RoomDeleted{}
		dst = e.RoomDeleted
	case KindMemberAdded:
		e.MemberAdded = &MemberAdded{}
		dst = e.MemberAdded
	case KindMemberRemoved:
		e.MemberRemoved = &MemberRemoved{}
		dst = e.MemberRemoved
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	if len(env.Payload) == 0 {
		return Event{}, fmt.Errorf("%w: %q", ErrEmptyPayload, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return Event{}, fmt.Errorf("%w: %s: %s", ErrPayloadForKind, env.Kind, err)
	}
	return e, nil
}
