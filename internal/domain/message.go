package domain

import (
	"errors"
	"time"
)

const MaxContentLen = 4096

var (
	ErrContentEmpty   = errors.New("message content empty")
	ErrContentTooLong = errors.New("message content too long")
)

// ChatMessage is transient for the delivery path: it exists only as an event
// flowing sender -> local fan-out + bus -> remote fan-out. A durable id is
// assigned by the history store, not here.
type ChatMessage struct {
	SenderID UserID    `json:"sender_id"`
	RoomID   RoomID    `json:"room_id"`
	Content  string    `json:"content"`
	Time     time.Time `json:"time"`
}

func (m ChatMessage) Validate() error {
	if len(m.Content) == 0 {
		return ErrContentEmpty
	}
	if len(m.Content) > MaxContentLen {
		return ErrContentTooLong
	}
	return nil
}
