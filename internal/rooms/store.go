package rooms

import (
	"context"

	"github.com/parley-chat/parley/internal/domain"
)

// Store is the room directory as the state machine sees it. Atomically must
// run fn against a store view inside a single transaction; the invariant
// repair in RemoveMember relies on that.
type Store interface {
	Atomically(ctx context.Context, fn func(Store) error) error

	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID domain.RoomID) (domain.Room, error)
	RenameRoom(ctx context.Context, roomID domain.RoomID, name domain.RoomName) error
	// DeleteRoom removes the room and cascades its memberships.
	DeleteRoom(ctx context.Context, roomID domain.RoomID) error

	UserByEmail(ctx context.Context, email string) (domain.User, error)

	AddMembership(ctx context.Context, m domain.Membership) error
	GetMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Membership, error)
	RemoveMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	SetRole(ctx context.Context, roomID domain.RoomID, userID domain.UserID, role domain.Role) error
	SetAllRoles(ctx context.Context, roomID domain.RoomID, role domain.Role) error
	CountMembers(ctx context.Context, roomID domain.RoomID) (int, error)
	CountMembersWithRole(ctx context.Context, roomID domain.RoomID, role domain.Role) (int, error)
	ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error)
}
