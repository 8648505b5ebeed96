package domain

import "errors"

type (
	RoomName string
	RoomID   string
)

const MaxRoomNameLen = 64

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type Room struct {
	ID   RoomID   `json:"id"`
	Name RoomName `json:"name"`
}

func (n RoomName) Validate() error {
	if len(n) == 0 {
		return ErrRoomNameEmpty
	}
	if len(n) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}

// Role a user holds inside one room. Admin gates destructive operations.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// Membership binds a user to a room with a role. One role per user per room.
type Membership struct {
	RoomID RoomID `json:"room_id"`
	UserID UserID `json:"user_id"`
	Role   Role   `json:"role"`
}
