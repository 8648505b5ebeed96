// Package identity verifies the bearer credentials presented at connection
// establishment and the room invitation artifacts issued by room admins.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parley-chat/parley/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	tokenTypeAccess = "access"
	tokenTypeInvite = "invite"
)

type Config struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
	InviteTTL time.Duration
}

type claims struct {
	TokenType string `json:"token_type"`
	RoomID    string `json:"room_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens. The subject of an access token is
// the account identity (email); the user id behind it is resolved through
// the room directory, never trusted from the token itself.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Assert returns the identity behind an access token, or an error when the
// credential cannot be trusted. An error here is fatal to the connection.
func (m *Manager) Assert(token string) (string, error) {
	c, err := m.parse(token)
	if err != nil {
		return "", err
	}
	if c.TokenType != tokenTypeAccess || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

func (m *Manager) IssueAccessToken(identity string) (string, error) {
	return m.sign(claims{
		TokenType:        tokenTypeAccess,
		RegisteredClaims: m.registered(identity, m.cfg.AccessTTL),
	})
}

// IssueInviteToken mints the artifact an admin hands out; whoever presents
// it may add themself to the room as a regular member.
func (m *Manager) IssueInviteToken(roomID domain.RoomID) (string, error) {
	return m.sign(claims{
		TokenType:        tokenTypeInvite,
		RoomID:           string(roomID),
		RegisteredClaims: m.registered("", m.cfg.InviteTTL),
	})
}

func (m *Manager) VerifyInviteToken(token string) (domain.RoomID, error) {
	c, err := m.parse(token)
	if err != nil {
		return "", err
	}
	if c.TokenType != tokenTypeInvite || c.RoomID == "" {
		return "", ErrInvalidToken
	}
	return domain.RoomID(c.RoomID), nil
}

func (m *Manager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    m.cfg.Issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func (m *Manager) sign(c claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (m *Manager) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}
