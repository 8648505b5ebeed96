package domain

import "errors"

// Authorization and lookup errors shared by the rooms service and the HTTP
// boundary, where they map to 403/404/409 style responses.
var (
	ErrForbidden     = errors.New("operation not permitted")
	ErrRoomNotFound  = errors.New("room not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrNotMember     = errors.New("user is not a member of the room")
	ErrAlreadyMember = errors.New("user is already a member of the room")
	ErrLastAdmin     = errors.New("room would be left without an admin")
)
