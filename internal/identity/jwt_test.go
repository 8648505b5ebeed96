package identity

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Secret:    "unit-test-secret",
		Issuer:    "parley-test",
		AccessTTL: time.Minute,
		InviteTTL: time.Hour,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager(testConfig())

	token, err := m.IssueAccessToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	identity, err := m.Assert(token)
	if err != nil {
		t.Fatalf("Assert: %v", err)
	}
	if identity != "alice@example.com" {
		t.Errorf("identity = %q", identity)
	}
}

func TestInviteTokenRoundTrip(t *testing.T) {
	m := NewManager(testConfig())

	token, err := m.IssueInviteToken("room-42")
	if err != nil {
		t.Fatalf("IssueInviteToken: %v", err)
	}
	roomID, err := m.VerifyInviteToken(token)
	if err != nil {
		t.Fatalf("VerifyInviteToken: %v", err)
	}
	if roomID != "room-42" {
		t.Errorf("roomID = %q", roomID)
	}
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	m := NewManager(testConfig())

	invite, _ := m.IssueInviteToken("room-42")
	if _, err := m.Assert(invite); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Assert(invite) err = %v, want ErrInvalidToken", err)
	}

	access, _ := m.IssueAccessToken("alice@example.com")
	if _, err := m.VerifyInviteToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyInviteToken(access) err = %v, want ErrInvalidToken", err)
	}
}

func TestForeignKeyRejected(t *testing.T) {
	m := NewManager(testConfig())
	other := NewManager(Config{Secret: "different-secret", Issuer: "parley-test", AccessTTL: time.Minute})

	token, _ := other.IssueAccessToken("alice@example.com")
	if _, err := m.Assert(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = -time.Minute
	m := NewManager(cfg)

	token, _ := m.IssueAccessToken("alice@example.com")
	if _, err := m.Assert(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	m := NewManager(testConfig())
	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := m.Assert(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Assert(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}
