// Package store persists the room directory: users, rooms and memberships.
// It backs both sides of the system — the management API mutates it through
// the rooms state machine, the gateway reads it at subscribe time.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/rooms"
)

type userModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:254"`
	Username     string `gorm:"size:36"`
	PasswordHash string `gorm:"size:60"`
}

func (userModel) TableName() string { return "users" }

type roomModel struct {
	ID   string `gorm:"primaryKey;size:36"`
	Name string `gorm:"size:64"`
}

func (roomModel) TableName() string { return "rooms" }

type membershipModel struct {
	RoomID string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"primaryKey;size:36;index"`
	Role   string `gorm:"size:16"`
}

func (membershipModel) TableName() string { return "memberships" }

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	if err := db.AutoMigrate(&userModel{}, &roomModel{}, &membershipModel{}); err != nil {
		return nil, fmt.Errorf("migrate directory db: %w", err)
	}
	return &Store{db: db}, nil
}

// Atomically runs fn against a transactional view of the store. Nested calls
// reuse the surrounding transaction.
func (s *Store) Atomically(ctx context.Context, fn func(rooms.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateUser registers an account with its credential hash. Token issuance
// itself lives in the identity package; the directory only stores the
// identity -> user mapping and the hash for login.
func (s *Store) CreateUser(ctx context.Context, u domain.User, passwordHash string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&userModel{}).Where("email = ?", u.Email).Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrEmailTaken
	}
	return s.db.WithContext(ctx).Create(&userModel{
		ID:           string(u.ID),
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: passwordHash,
	}).Error
}

// CredentialsByEmail returns the account and its password hash for login.
func (s *Store) CredentialsByEmail(ctx context.Context, email string) (domain.User, string, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, "", domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, "", err
	}
	return domain.User{ID: domain.UserID(m.ID), Email: m.Email, Username: m.Username}, m.PasswordHash, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: domain.UserID(m.ID), Email: m.Email, Username: m.Username}, nil
}

// GetUserIDForIdentity resolves the asserted identity (email) to a user id.
func (s *Store) GetUserIDForIdentity(ctx context.Context, identity string) (domain.UserID, error) {
	u, err := s.UserByEmail(ctx, identity)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// GetRoomsForUser returns every room the user is a member of.
func (s *Store) GetRoomsForUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("user_id = ?", string(userID)).
		Pluck("room_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.RoomID, len(ids))
	for i, id := range ids {
		out[i] = domain.RoomID(id)
	}
	return out, nil
}

func (s *Store) CreateRoom(ctx context.Context, room domain.Room) error {
	return s.db.WithContext(ctx).Create(&roomModel{ID: string(room.ID), Name: string(room.Name)}).Error
}

func (s *Store) GetRoom(ctx context.Context, roomID domain.RoomID) (domain.Room, error) {
	var m roomModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", string(roomID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{ID: domain.RoomID(m.ID), Name: domain.RoomName(m.Name)}, nil
}

func (s *Store) RenameRoom(ctx context.Context, roomID domain.RoomID, name domain.RoomName) error {
	res := s.db.WithContext(ctx).Model(&roomModel{}).Where("id = ?", string(roomID)).Update("name", string(name))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID domain.RoomID) error {
	if err := s.db.WithContext(ctx).Where("room_id = ?", string(roomID)).Delete(&membershipModel{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", string(roomID)).Delete(&roomModel{}).Error
}

func (s *Store) AddMembership(ctx context.Context, m domain.Membership) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("room_id = ? AND user_id = ?", string(m.RoomID), string(m.UserID)).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrAlreadyMember
	}
	return s.db.WithContext(ctx).Create(&membershipModel{
		RoomID: string(m.RoomID),
		UserID: string(m.UserID),
		Role:   string(m.Role),
	}).Error
}

func (s *Store) GetMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Membership, error) {
	var m membershipModel
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", string(roomID), string(userID)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Membership{}, domain.ErrNotMember
	}
	if err != nil {
		return domain.Membership{}, err
	}
	return domain.Membership{RoomID: roomID, UserID: userID, Role: domain.Role(m.Role)}, nil
}

func (s *Store) RemoveMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	res := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", string(roomID), string(userID)).
		Delete(&membershipModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (s *Store) SetRole(ctx context.Context, roomID domain.RoomID, userID domain.UserID, role domain.Role) error {
	res := s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("room_id = ? AND user_id = ?", string(roomID), string(userID)).
		Update("role", string(role))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (s *Store) SetAllRoles(ctx context.Context, roomID domain.RoomID, role domain.Role) error {
	return s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("room_id = ?", string(roomID)).
		Update("role", string(role)).Error
}

func (s *Store) CountMembers(ctx context.Context, roomID domain.RoomID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("room_id = ?", string(roomID)).
		Count(&count).Error
	return int(count), err
}

func (s *Store) CountMembersWithRole(ctx context.Context, roomID domain.RoomID, role domain.Role) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&membershipModel{}).
		Where("room_id = ? AND role = ?", string(roomID), string(role)).
		Count(&count).Error
	return int(count), err
}

func (s *Store) ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error) {
	var ms []membershipModel
	err := s.db.WithContext(ctx).
		Where("room_id = ?", string(roomID)).
		Order("user_id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Membership, len(ms))
	for i, m := range ms {
		out[i] = domain.Membership{RoomID: domain.RoomID(m.RoomID), UserID: domain.UserID(m.UserID), Role: domain.Role(m.Role)}
	}
	return out, nil
}
