// Package rooms enforces the membership and role invariants behind every
// room-management operation. Two invariants hold after each call: a
// non-empty room has at least one admin, and a user holds at most one role
// per room.
package rooms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/domain"
)

// Producer publishes room lifecycle events so live gateways can patch the
// subscriptions of already-connected clients.
type Producer interface {
	Publish(ctx context.Context, e bus.Event) error
}

// InviteTokens issues and verifies the invitation artifact that lets a user
// add themself to a room.
type InviteTokens interface {
	IssueInviteToken(roomID domain.RoomID) (string, error)
	VerifyInviteToken(token string) (domain.RoomID, error)
}

type Service struct {
	store    Store
	producer Producer
	invites  InviteTokens
}

func NewService(store Store, producer Producer, invites InviteTokens) *Service {
	return &Service{store: store, producer: producer, invites: invites}
}

// RoomInfo is the member-facing view of a room.
type RoomInfo struct {
	Room    domain.Room         `json:"room"`
	Members []domain.Membership `json:"members"`
}

// Create makes a new room with the creator as its sole admin. No room ever
// exists without an initial admin.
func (s *Service) Create(ctx context.Context, name domain.RoomName, creator domain.UserID) (domain.Room, error) {
	if err := name.Validate(); err != nil {
		return domain.Room{}, err
	}
	room := domain.Room{ID: domain.RoomID(uuid.NewString()), Name: name}
	err := s.store.Atomically(ctx, func(tx Store) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		return tx.AddMembership(ctx, domain.Membership{RoomID: room.ID, UserID: creator, Role: domain.RoleAdmin})
	})
	if err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("module", "rooms").Str("room", string(room.ID)).Str("creator", string(creator)).Msg("room created")
	if err := s.producer.Publish(ctx, bus.Event{
		Kind:        bus.KindRoomCreated,
		RoomCreated: &bus.RoomCreated{RoomID: room.ID, UserID: creator, Role: domain.RoleAdmin},
	}); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// Rename is admin-only.
func (s *Service) Rename(ctx context.Context, roomID domain.RoomID, caller domain.UserID, name domain.RoomName) error {
	if err := name.Validate(); err != nil {
		return err
	}
	return s.store.Atomically(ctx, func(tx Store) error {
		if err := s.requireAdmin(ctx, tx, roomID, caller); err != nil {
			return err
		}
		return tx.RenameRoom(ctx, roomID, name)
	})
}

// Delete is admin-only and cascades membership cleanup.
func (s *Service) Delete(ctx context.Context, roomID domain.RoomID, caller domain.UserID) error {
	err := s.store.Atomically(ctx, func(tx Store) error {
		if err := s.requireAdmin(ctx, tx, roomID, caller); err != nil {
			return err
		}
		return tx.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, bus.Event{
		Kind:        bus.KindRoomDeleted,
		RoomDeleted: &bus.RoomDeleted{RoomID: roomID},
	})
}

// Info returns the room and its members to a caller that belongs to it.
func (s *Service) Info(ctx context.Context, roomID domain.RoomID, caller domain.UserID) (RoomInfo, error) {
	var info RoomInfo
	err := s.store.Atomically(ctx, func(tx Store) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if _, err := tx.GetMembership(ctx, roomID, caller); err != nil {
			if errors.Is(err, domain.ErrNotMember) {
				return domain.ErrForbidden
			}
			return err
		}
		members, err := tx.ListMembers(ctx, roomID)
		if err != nil {
			return err
		}
		info = RoomInfo{Room: room, Members: members}
		return nil
	})
	return info, err
}

// AddMemberByEmail lets an admin add a user directly, bypassing the
// invitation flow. The new member joins as Regular.
func (s *Service) AddMemberByEmail(ctx context.Context, roomID domain.RoomID, caller domain.UserID, email string) (domain.UserID, error) {
	var added domain.UserID
	err := s.store.Atomically(ctx, func(tx Store) error {
		if err := s.requireAdmin(ctx, tx, roomID, caller); err != nil {
			return err
		}
		user, err := tx.UserByEmail(ctx, email)
		if err != nil {
			return err
		}
		added = user.ID
		return tx.AddMembership(ctx, domain.Membership{RoomID: roomID, UserID: user.ID, Role: domain.RoleRegular})
	})
	if err != nil {
		return "", err
	}
	return added, s.publishMemberAdded(ctx, roomID, added)
}

// Invite mints an invitation token for the room. Admin-only.
func (s *Service) Invite(ctx context.Context, roomID domain.RoomID, caller domain.UserID) (string, error) {
	err := s.store.Atomically(ctx, func(tx Store) error {
		return s.requireAdmin(ctx, tx, roomID, caller)
	})
	if err != nil {
		return "", err
	}
	return s.invites.IssueInviteToken(roomID)
}

// Redeem adds the caller to the room named by a valid invitation token.
func (s *Service) Redeem(ctx context.Context, token string, caller domain.UserID) (domain.RoomID, error) {
	roomID, err := s.invites.VerifyInviteToken(token)
	if err != nil {
		return "", domain.ErrForbidden
	}
	err = s.store.Atomically(ctx, func(tx Store) error {
		if _, err := tx.GetRoom(ctx, roomID); err != nil {
			return err
		}
		return tx.AddMembership(ctx, domain.Membership{RoomID: roomID, UserID: caller, Role: domain.RoleRegular})
	})
	if err != nil {
		return "", err
	}
	return roomID, s.publishMemberAdded(ctx, roomID, caller)
}

// RemoveMember removes target from the room. Allowed for self-removal (any
// role) and for an admin removing a non-admin; an admin is never removed by
// anyone but themself. An emptied room is deleted; a non-empty room left
// without admins has every remaining member promoted, in the same
// transaction as the removal.
func (s *Service) RemoveMember(ctx context.Context, roomID domain.RoomID, caller, target domain.UserID) error {
	var roomDeleted bool
	err := s.store.Atomically(ctx, func(tx Store) error {
		if _, err := tx.GetRoom(ctx, roomID); err != nil {
			return err
		}
		callerMem, err := tx.GetMembership(ctx, roomID, caller)
		if err != nil {
			if errors.Is(err, domain.ErrNotMember) {
				return domain.ErrForbidden
			}
			return err
		}
		targetMem, err := tx.GetMembership(ctx, roomID, target)
		if err != nil {
			return err
		}
		selfRemoval := caller == target
		adminRemovingRegular := callerMem.Role == domain.RoleAdmin && targetMem.Role != domain.RoleAdmin
		if !selfRemoval && !adminRemovingRegular {
			return domain.ErrForbidden
		}
		if err := tx.RemoveMembership(ctx, roomID, target); err != nil {
			return err
		}
		remaining, err := tx.CountMembers(ctx, roomID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			roomDeleted = true
			return tx.DeleteRoom(ctx, roomID)
		}
		admins, err := tx.CountMembersWithRole(ctx, roomID, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if admins == 0 {
			log.Info().Str("module", "rooms").Str("room", string(roomID)).Msg("last admin left, promoting remaining members")
			return tx.SetAllRoles(ctx, roomID, domain.RoleAdmin)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.producer.Publish(ctx, bus.Event{
		Kind:          bus.KindMemberRemoved,
		MemberRemoved: &bus.MemberRemoved{RoomID: roomID, UserID: target},
	}); err != nil {
		return err
	}
	if roomDeleted {
		return s.producer.Publish(ctx, bus.Event{
			Kind:        bus.KindRoomDeleted,
			RoomDeleted: &bus.RoomDeleted{RoomID: roomID},
		})
	}
	return nil
}

// ChangeRole promotes or demotes a member. Admin-only. Demoting the last
// admin of a non-empty room is denied outright rather than auto-repaired;
// the promote-all repair belongs to the removal path alone.
func (s *Service) ChangeRole(ctx context.Context, roomID domain.RoomID, caller, target domain.UserID, role domain.Role) error {
	if role != domain.RoleAdmin && role != domain.RoleRegular {
		return domain.ErrForbidden
	}
	return s.store.Atomically(ctx, func(tx Store) error {
		if err := s.requireAdmin(ctx, tx, roomID, caller); err != nil {
			return err
		}
		targetMem, err := tx.GetMembership(ctx, roomID, target)
		if err != nil {
			return err
		}
		if targetMem.Role == role {
			return nil
		}
		if role == domain.RoleRegular && targetMem.Role == domain.RoleAdmin {
			admins, err := tx.CountMembersWithRole(ctx, roomID, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return domain.ErrLastAdmin
			}
		}
		return tx.SetRole(ctx, roomID, target, role)
	})
}

func (s *Service) requireAdmin(ctx context.Context, tx Store, roomID domain.RoomID, caller domain.UserID) error {
	if _, err := tx.GetRoom(ctx, roomID); err != nil {
		return err
	}
	mem, err := tx.GetMembership(ctx, roomID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotMember) {
			return domain.ErrForbidden
		}
		return err
	}
	if mem.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) publishMemberAdded(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return s.producer.Publish(ctx, bus.Event{
		Kind:        bus.KindMemberAdded,
		MemberAdded: &bus.MemberAdded{RoomID: roomID, UserID: userID, Role: domain.RoleRegular},
	})
}
